package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medsupply/indent-backend/internal/prescription/service"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/errors"
	"github.com/medsupply/indent-backend/pkg/httputil"
	"github.com/medsupply/indent-backend/pkg/logger"
)

// PrescriptionHandler exposes prescription dispensing over HTTP.
type PrescriptionHandler struct {
	service *service.PrescriptionService
	logger  *logger.Logger
}

// NewPrescriptionHandler creates a new prescription handler
func NewPrescriptionHandler(svc *service.PrescriptionService, log *logger.Logger) *PrescriptionHandler {
	return &PrescriptionHandler{
		service: svc,
		logger:  log.WithComponent("prescription_handler"),
	}
}

// RegisterRoutes registers the prescription routes
func (h *PrescriptionHandler) RegisterRoutes(r chi.Router, createLimiter func(http.Handler) http.Handler) {
	r.Route("/prescriptions", func(r chi.Router) {
		r.With(createLimiter).Post("/", h.Dispense)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
}

type lineRequest struct {
	MedItemID string `json:"med_item_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type dispenseRequest struct {
	PatientName string        `json:"patient_name" validate:"required,min=2,max=120,safetext"`
	Lines       []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

// Dispense handles POST /prescriptions
func (h *PrescriptionHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	act, ok := actor.FromContext(r.Context())
	if !ok {
		httputil.Error(w, errors.Unauthorized("authentication required"))
		return
	}

	var req dispenseRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := service.DispenseInput{PatientName: req.PatientName}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, service.LineInput{
			MedItemID: line.MedItemID,
			Quantity:  line.Quantity,
		})
	}

	p, err := h.service.Dispense(r.Context(), act, in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, p)
}

// Get handles GET /prescriptions/{id}
func (h *PrescriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	act, ok := actor.FromContext(r.Context())
	if !ok {
		httputil.Error(w, errors.Unauthorized("authentication required"))
		return
	}

	p, err := h.service.Get(r.Context(), act, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, p)
}

// List handles GET /prescriptions
func (h *PrescriptionHandler) List(w http.ResponseWriter, r *http.Request) {
	act, ok := actor.FromContext(r.Context())
	if !ok {
		httputil.Error(w, errors.Unauthorized("authentication required"))
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	prescriptions, total, err := h.service.List(r.Context(), act, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	httputil.JSONWithMeta(w, http.StatusOK, prescriptions, &httputil.Meta{
		Page: page, PerPage: perPage, Total: total, TotalPages: totalPages,
	})
}
