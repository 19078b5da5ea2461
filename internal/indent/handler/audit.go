package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/medsupply/indent-backend/internal/indent/service"
	"github.com/medsupply/indent-backend/pkg/errors"
	"github.com/medsupply/indent-backend/pkg/httputil"
	"github.com/medsupply/indent-backend/pkg/logger"
)

// AuditHandler exposes the read side of the audit trail.
type AuditHandler struct {
	audit     *service.AuditService
	medicines service.MedicineStore
	logger    *logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *service.AuditService, medicines service.MedicineStore, log *logger.Logger) *AuditHandler {
	return &AuditHandler{
		audit:     audit,
		medicines: medicines,
		logger:    log.WithComponent("audit_handler"),
	}
}

// RegisterRoutes registers the audit and catalog routes
func (h *AuditHandler) RegisterRoutes(r chi.Router) {
	r.Get("/audit", h.List)
	r.Get("/medicines", h.ListMedicines)
}

// List handles GET /audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	module := r.URL.Query().Get("module")
	entityID := r.URL.Query().Get("entity_id")
	if module == "" || entityID == "" {
		httputil.Error(w, errors.Validation(map[string]string{
			"module":    "this field is required",
			"entity_id": "this field is required",
		}))
		return
	}

	page, perPage := parsePagination(r)
	entries, total, err := h.audit.ListByEntity(r.Context(), act.PlantID, module, entityID, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, paginationMeta(page, perPage, total))
}

// ListMedicines handles GET /medicines
func (h *AuditHandler) ListMedicines(w http.ResponseWriter, r *http.Request) {
	if _, err := requireActor(r); err != nil {
		httputil.Error(w, err)
		return
	}

	meds, err := h.medicines.List(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, meds)
}
