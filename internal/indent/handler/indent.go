package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/internal/indent/service"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/errors"
	"github.com/medsupply/indent-backend/pkg/httputil"
	"github.com/medsupply/indent-backend/pkg/logger"
)

// IndentHandler exposes the indent lifecycle over HTTP.
type IndentHandler struct {
	service *service.IndentService
	logger  *logger.Logger
}

// NewIndentHandler creates a new indent handler
func NewIndentHandler(svc *service.IndentService, log *logger.Logger) *IndentHandler {
	return &IndentHandler{
		service: svc,
		logger:  log.WithComponent("indent_handler"),
	}
}

// RegisterRoutes registers the indent routes. The create and edit route
// groups are rate limited by the caller.
func (h *IndentHandler) RegisterRoutes(r chi.Router, createLimiter, editLimiter func(http.Handler) http.Handler) {
	r.Route("/indents", func(r chi.Router) {
		r.With(createLimiter).Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.With(editLimiter).Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.With(editLimiter).Post("/{id}/submit", h.Submit)
		r.With(editLimiter).Post("/{id}/decision", h.Decide)
		r.With(createLimiter).Post("/{id}/items", h.AddItem)
	})
	r.Route("/items", func(r chi.Router) {
		r.With(editLimiter).Put("/{id}", h.UpdateItem)
		r.Delete("/{id}", h.DeleteItem)
		r.With(editLimiter).Put("/{id}/reasoned-edit", h.EditItemWithReason)
	})
}

type itemRequest struct {
	MedItemID      string  `json:"med_item_id" validate:"required,uuid"`
	VendorCode     *string `json:"vendor_code,omitempty" validate:"omitempty,max=64,safetext"`
	RaisedQuantity int     `json:"raised_quantity" validate:"required,gt=0"`
	UnitPrice      float64 `json:"unit_price" validate:"gte=0"`
}

func (req itemRequest) toInput() service.ItemInput {
	return service.ItemInput{
		MedItemID:      req.MedItemID,
		VendorCode:     req.VendorCode,
		RaisedQuantity: req.RaisedQuantity,
		UnitPrice:      req.UnitPrice,
	}
}

type createIndentRequest struct {
	Tier     string        `json:"tier" validate:"required,oneof=store compounder"`
	Comments *string       `json:"comments,omitempty" validate:"omitempty,max=500,safetext"`
	Items    []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateIndentRequest struct {
	IndentDate *time.Time `json:"indent_date,omitempty"`
	Comments   *string    `json:"comments,omitempty" validate:"omitempty,max=500,safetext"`
}

type decisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approved rejected"`
	Comments string `json:"comments" validate:"required,min=2,max=500,safetext"`
}

type reasonedEditRequest struct {
	Reason         string   `json:"reason" validate:"required,min=2,max=500,safetext"`
	AvailableStock *int     `json:"available_stock,omitempty" validate:"omitempty,gte=0"`
	UnitPrice      *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	VendorCode     *string  `json:"vendor_code,omitempty" validate:"omitempty,max=64,safetext"`
}

// indentView is the API shape of an indent: the stored header plus its
// projected list label and the caller's resolved permissions.
type indentView struct {
	*domain.Indent
	IndentType  string             `json:"indent_type"`
	Permissions domain.Permissions `json:"permissions"`
	Items       []itemView         `json:"items"`
}

type itemView struct {
	*domain.IndentItem
	PendingQuantity int                `json:"pending_quantity"`
	TotalAmount     float64            `json:"total_amount"`
	Permissions     domain.Permissions `json:"permissions"`
}

func newIndentView(ind *domain.Indent, perms domain.Permissions, act actor.Actor, mode domain.ViewMode) indentView {
	summary := domain.SummarizeItems(ind.Items)
	items := make([]itemView, 0, len(ind.Items))
	for _, item := range ind.Items {
		items = append(items, itemView{
			IndentItem:      item,
			PendingQuantity: item.PendingQuantity(),
			TotalAmount:     item.TotalAmount(),
			Permissions:     domain.ResolveItem(act.Role, ind.IsCreator(act.Username), ind, mode, item, summary),
		})
	}
	return indentView{
		Indent:      ind,
		IndentType:  ind.IndentType(),
		Permissions: perms,
		Items:       items,
	}
}

// Create handles POST /indents
func (h *IndentHandler) Create(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req createIndentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	in := service.CreateIndentInput{
		Tier:     domain.Tier(req.Tier),
		Comments: req.Comments,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, item.toInput())
	}

	ind, err := h.service.CreateIndent(r.Context(), act, in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, ind)
}

// List handles GET /indents
func (h *IndentHandler) List(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	tier := domain.Tier(r.URL.Query().Get("tier"))
	if tier != "" && !tier.Valid() {
		httputil.Error(w, errors.Validation(map[string]string{"tier": "must be store or compounder"}))
		return
	}

	status := domain.Status(r.URL.Query().Get("status"))
	if label := r.URL.Query().Get("type"); label != "" {
		status, err = domain.StatusFromIndentType(label)
		if err != nil {
			httputil.Error(w, err)
			return
		}
	}

	page, perPage := parsePagination(r)
	indents, total, err := h.service.ListIndents(r.Context(), act, tier, status, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, indents, paginationMeta(page, perPage, total))
}

// Get handles GET /indents/{id}
func (h *IndentHandler) Get(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	mode, err := parseMode(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	ind, perms, err := h.service.GetIndent(r.Context(), act, chi.URLParam(r, "id"), mode)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, newIndentView(ind, perms, act, mode))
}

// Update handles PUT /indents/{id}
func (h *IndentHandler) Update(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	mode, err := parseMode(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req updateIndentRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	ind, err := h.service.UpdateIndent(r.Context(), act, chi.URLParam(r, "id"), mode, service.UpdateIndentInput{
		IndentDate: req.IndentDate,
		Comments:   req.Comments,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, ind)
}

// Delete handles DELETE /indents/{id}
func (h *IndentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	mode, err := parseMode(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeleteIndent(r.Context(), act, chi.URLParam(r, "id"), mode); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Submit handles POST /indents/{id}/submit
func (h *IndentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	ind, err := h.service.Submit(r.Context(), act, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, ind)
}

// Decide handles POST /indents/{id}/decision
func (h *IndentHandler) Decide(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req decisionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	ind, err := h.service.Decide(r.Context(), act, chi.URLParam(r, "id"), domain.Status(req.Decision), req.Comments)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, ind)
}

// AddItem handles POST /indents/{id}/items
func (h *IndentHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	mode, err := parseMode(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req itemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.AddItem(r.Context(), act, chi.URLParam(r, "id"), mode, req.toInput())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// UpdateItem handles PUT /items/{id}
func (h *IndentHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	mode, err := parseMode(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req itemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.UpdateItem(r.Context(), act, chi.URLParam(r, "id"), mode, req.toInput())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /items/{id}
func (h *IndentHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	mode, err := parseMode(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeleteItem(r.Context(), act, chi.URLParam(r, "id"), mode); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// EditItemWithReason handles PUT /items/{id}/reasoned-edit
func (h *IndentHandler) EditItemWithReason(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	mode, err := parseMode(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req reasonedEditRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.EditItemWithReason(r.Context(), act, chi.URLParam(r, "id"), mode, req.Reason, service.ReasonedItemInput{
		AvailableStock: req.AvailableStock,
		UnitPrice:      req.UnitPrice,
		VendorCode:     req.VendorCode,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}
