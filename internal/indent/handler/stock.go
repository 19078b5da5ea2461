package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/internal/indent/service"
	"github.com/medsupply/indent-backend/pkg/errors"
	"github.com/medsupply/indent-backend/pkg/httputil"
	"github.com/medsupply/indent-backend/pkg/logger"
)

const expiryDateLayout = "2006-01-02"

// StockHandler exposes the batch ledger: saves, stock queries, the FIFO
// advisory and the expiry report.
type StockHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewStockHandler creates a new stock handler
func NewStockHandler(svc *service.StockService, log *logger.Logger) *StockHandler {
	return &StockHandler{
		service: svc,
		logger:  log.WithComponent("stock_handler"),
	}
}

// RegisterRoutes registers the stock routes
func (h *StockHandler) RegisterRoutes(r chi.Router, editLimiter func(http.Handler) http.Handler) {
	r.Route("/items/{id}/batches", func(r chi.Router) {
		r.Get("/", h.ListBatches)
		r.With(editLimiter).Put("/", h.SaveBatches)
	})
	r.Route("/stock", func(r chi.Router) {
		r.Get("/expiring", h.ExpiringBatches)
		r.Get("/{medItemID}/availability", h.Availability)
		r.Get("/{medItemID}/advisory", h.CheckAdvisory)
		r.Post("/{medItemID}/advisory/decision", h.AdvisoryDecision)
	})
}

type batchRowRequest struct {
	BatchNo          string  `json:"batch_no" validate:"required,max=64,safetext"`
	ExpiryDate       string  `json:"expiry_date" validate:"required"`
	ReceivedQuantity int     `json:"received_quantity" validate:"required,gt=0"`
	VendorCode       *string `json:"vendor_code,omitempty" validate:"omitempty,max=64,safetext"`
}

type saveBatchesRequest struct {
	Rows []batchRowRequest `json:"rows" validate:"dive"`
}

type advisoryDecisionRequest struct {
	SelectedBatchNo string `json:"selected_batch_no" validate:"required,max=64,safetext"`
	EarliestBatchNo string `json:"earliest_batch_no" validate:"required,max=64,safetext"`
	Proceeded       bool   `json:"proceeded"`
}

type saveBatchesResponse struct {
	Item    *domain.IndentItem `json:"item"`
	Batches []*domain.Batch    `json:"batches"`
}

// ListBatches handles GET /items/{id}/batches
func (h *StockHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	batches, err := h.service.BatchesForItem(r.Context(), act, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// SaveBatches handles PUT /items/{id}/batches. An empty row list clears the
// batch set and returns all issued stock upstream.
func (h *StockHandler) SaveBatches(w http.ResponseWriter, r *http.Request) {
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

	var req saveBatchesRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	rows := make([]domain.BatchRow, 0, len(req.Rows))
	for i, row := range req.Rows {
		expiry, err := time.Parse(expiryDateLayout, row.ExpiryDate)
		if err != nil {
			httputil.Error(w, errors.Validation(map[string]string{
				"rows[" + strconv.Itoa(i) + "].expiry_date": "must be a date in YYYY-MM-DD format",
			}))
			return
		}
		rows = append(rows, domain.BatchRow{
			BatchNo:          row.BatchNo,
			ExpiryDate:       expiry,
			ReceivedQuantity: row.ReceivedQuantity,
			VendorCode:       row.VendorCode,
		})
	}

	item, batches, err := h.service.SaveBatches(r.Context(), act, chi.URLParam(r, "id"), mode, rows)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, saveBatchesResponse{Item: item, Batches: batches})
}

// Availability handles GET /stock/{medItemID}/availability
func (h *StockHandler) Availability(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	tier := domain.Tier(r.URL.Query().Get("tier"))
	if tier == "" {
		tier = domain.TierStore
	}
	if !tier.Valid() {
		httputil.Error(w, errors.Validation(map[string]string{"tier": "must be store or compounder"}))
		return
	}

	available, err := h.service.Availability(r.Context(), act, chi.URLParam(r, "medItemID"), tier)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"med_item_id":     chi.URLParam(r, "medItemID"),
		"tier":            tier,
		"available_stock": available,
	})
}

// CheckAdvisory handles GET /stock/{medItemID}/advisory
func (h *StockHandler) CheckAdvisory(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	batchNo := r.URL.Query().Get("batch_no")
	if batchNo == "" {
		httputil.Error(w, errors.Validation(map[string]string{"batch_no": "this field is required"}))
		return
	}

	tier := domain.Tier(r.URL.Query().Get("tier"))
	if tier == "" {
		tier = domain.TierStore
	}
	if !tier.Valid() {
		httputil.Error(w, errors.Validation(map[string]string{"tier": "must be store or compounder"}))
		return
	}

	advisory, err := h.service.CheckBatchSelection(r.Context(), act, chi.URLParam(r, "medItemID"), tier, batchNo)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, advisory)
}

// AdvisoryDecision handles POST /stock/{medItemID}/advisory/decision
func (h *StockHandler) AdvisoryDecision(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req advisoryDecisionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	h.service.ConfirmAdvisoryOverride(r.Context(), act, chi.URLParam(r, "medItemID"), req.SelectedBatchNo, req.EarliestBatchNo, req.Proceeded)
	httputil.NoContent(w)
}

// ExpiringBatches handles GET /stock/expiring
func (h *StockHandler) ExpiringBatches(w http.ResponseWriter, r *http.Request) {
	act, err := requireActor(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	withinDays, _ := strconv.Atoi(r.URL.Query().Get("within_days"))
	batches, err := h.service.ExpiringBatches(r.Context(), act, withinDays)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}
