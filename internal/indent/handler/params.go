package handler

import (
	"net/http"
	"strconv"

	"github.com/medsupply/indent-backend/internal/indent/domain"
	"github.com/medsupply/indent-backend/pkg/actor"
	"github.com/medsupply/indent-backend/pkg/errors"
	"github.com/medsupply/indent-backend/pkg/httputil"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func requireActor(r *http.Request) (actor.Actor, error) {
	act, ok := actor.FromContext(r.Context())
	if !ok {
		return actor.Actor{}, errors.Unauthorized("authentication required")
	}
	return act, nil
}

// parseMode reads the view mode query parameter. Absent means the default
// request view; unknown values are rejected rather than silently downgraded.
func parseMode(r *http.Request) (domain.ViewMode, error) {
	raw := r.URL.Query().Get("mode")
	switch raw {
	case "", string(domain.ModeDefault):
		return domain.ModeDefault, nil
	case string(domain.ModeInventory):
		return domain.ModeInventory, nil
	case string(domain.ModeCompounderInventory):
		return domain.ModeCompounderInventory, nil
	}
	return "", errors.Validation(map[string]string{"mode": "must be default, inventory or compounder-inventory"})
}

func parsePagination(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func paginationMeta(page, perPage int, total int64) *httputil.Meta {
	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}
	return &httputil.Meta{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}
