package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Alecwce/tienda-AR/internal/catalog"
	"github.com/Alecwce/tienda-AR/internal/domain"
)

// CatalogView is the stateful catalog query: search, filters and sort shared
// across requests and persisted between restarts.
type CatalogView interface {
	View() domain.CatalogView
	SetSearchQuery(ctx context.Context, query string) error
	SetFilters(ctx context.Context, patch domain.FilterOptions) error
	ClearFilters(ctx context.Context) error
	SetSortBy(ctx context.Context, sortBy domain.SortOption) error
	Load(ctx context.Context) error
}

type CatalogHandler struct {
	catalog CatalogView
	timeout time.Duration
}

func NewCatalogHandler(catalog CatalogView, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SortRequest struct {
	SortBy string `json:"sortBy"`
}

func (h *CatalogHandler) View(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.catalog.View())
}

func (h *CatalogHandler) SetSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	h.mutate(w, r, func(ctx context.Context) error {
		return h.catalog.SetSearchQuery(ctx, req.Query)
	})
}

// PatchFilters merges the supplied constraints into the current filters.
func (h *CatalogHandler) PatchFilters(w http.ResponseWriter, r *http.Request) {
	var patch domain.FilterOptions
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	for _, s := range patch.Sizes {
		if !s.Valid() {
			respondError(w, http.StatusBadRequest, "invalid_filter", "unknown size "+string(s))
			return
		}
	}
	h.mutate(w, r, func(ctx context.Context) error {
		return h.catalog.SetFilters(ctx, patch)
	})
}

func (h *CatalogHandler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.catalog.ClearFilters)
}

func (h *CatalogHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	var req SortRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	h.mutate(w, r, func(ctx context.Context) error {
		return h.catalog.SetSortBy(ctx, catalog.ParseSortOption(req.SortBy))
	})
}

// Reload fetches the catalog from the product source. A failed reload keeps
// the last good catalog and reports the loader error.
func (h *CatalogHandler) Reload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.Load(ctx); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.catalog.View())
}

func (h *CatalogHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.catalog.View())
}
