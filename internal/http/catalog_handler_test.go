package http

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/Alecwce/tienda-AR/internal/loader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogView_Initial(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/v1/catalog", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decodeBody[domain.CatalogView](t, resp)
	assert.Equal(t, domain.SortPopular, view.SortBy)
	assert.Equal(t, []string{"vv-001", "vv-003", "vv-002"}, productIDs(view.FilteredProducts))
	assert.Equal(t, []string{"vv-001"}, productIDs(view.Featured))
	assert.False(t, view.IsLoading)
}

func TestCatalog_ARFilterThenEmptySearch(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPatch, "/api/v1/catalog/filters", map[string]any{"hasAR": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"vv-001"}, productIDs(decodeBody[domain.CatalogView](t, resp).FilteredProducts))

	resp = env.do(t, http.MethodPut, "/api/v1/catalog/search", SearchRequest{Query: ""})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeBody[domain.CatalogView](t, resp)
	assert.Equal(t, []string{"vv-001"}, productIDs(view.FilteredProducts))
	require.NotNil(t, view.Filters.HasAR)
	assert.True(t, *view.Filters.HasAR)
}

func TestCatalog_PatchMergesFilters(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPatch, "/api/v1/catalog/filters", map[string]any{"brands": []string{"Aurora"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPatch, "/api/v1/catalog/filters", map[string]any{"maxPrice": 90})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decodeBody[domain.CatalogView](t, resp)
	assert.Equal(t, []string{"Aurora"}, view.Filters.Brands)
	require.NotNil(t, view.Filters.MaxPrice)
	assert.Equal(t, 90.0, *view.Filters.MaxPrice)
	assert.Equal(t, []string{"vv-003"}, productIDs(view.FilteredProducts))
}

func TestCatalog_PatchRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPatch, "/api/v1/catalog/filters", map[string]any{"sizes": []string{"XXXL"}})
	assertErrorCode(t, resp, http.StatusBadRequest, "invalid_filter")

	resp = env.do(t, http.MethodPatch, "/api/v1/catalog/filters", map[string]any{"colour": "red"})
	assertErrorCode(t, resp, http.StatusBadRequest, "invalid_request")

	resp = env.do(t, http.MethodPut, "/api/v1/catalog/search", "{")
	assertErrorCode(t, resp, http.StatusBadRequest, "invalid_request")
}

func TestCatalog_ClearFiltersAlsoClearsSearch(t *testing.T) {
	env := newTestEnv(t, nil)

	env.do(t, http.MethodPut, "/api/v1/catalog/search", SearchRequest{Query: "lino"})
	env.do(t, http.MethodPatch, "/api/v1/catalog/filters", map[string]any{"isNew": true})

	resp := env.do(t, http.MethodDelete, "/api/v1/catalog/filters", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decodeBody[domain.CatalogView](t, resp)
	assert.Empty(t, view.SearchQuery)
	assert.True(t, view.Filters.IsEmpty())
	assert.Len(t, view.FilteredProducts, 3)
}

func TestCatalog_SetSort(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPut, "/api/v1/catalog/sort", SortRequest{SortBy: "price-asc"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decodeBody[domain.CatalogView](t, resp)
	assert.Equal(t, domain.SortPriceAsc, view.SortBy)
	assert.Equal(t, []string{"vv-002", "vv-003", "vv-001"}, productIDs(view.FilteredProducts))

	resp = env.do(t, http.MethodPut, "/api/v1/catalog/sort", SortRequest{SortBy: "bogus"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.SortPopular, decodeBody[domain.CatalogView](t, resp).SortBy)
}

func TestCatalog_PersistFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.breakWrites()

	resp := env.do(t, http.MethodPut, "/api/v1/catalog/search", SearchRequest{Query: "seda"})
	assertErrorCode(t, resp, http.StatusServiceUnavailable, "persistence_unavailable")

	assert.Equal(t, "seda", env.catalog.View().SearchQuery)
}

func TestCatalog_Reload(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/v1/catalog/reload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[domain.CatalogView](t, resp).FilteredProducts, 3)
}

func TestCatalog_ReloadFailureKeepsCatalog(t *testing.T) {
	env := newTestEnv(t, nil)
	env.loader.fail(&loader.LoadError{Attempts: 4, Err: errors.New("connection refused")})

	resp := env.do(t, http.MethodPost, "/api/v1/catalog/reload", nil)
	assertErrorCode(t, resp, http.StatusBadGateway, "catalog_unavailable")

	view := env.catalog.View()
	assert.Equal(t, "failed to load products after 4 attempts: connection refused", view.Error)
	assert.Len(t, view.FilteredProducts, 3)
}
