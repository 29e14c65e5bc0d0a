package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Alecwce/tienda-AR/internal/catalog"
	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/go-chi/chi/v5"
)

// ProductCatalog is the read side of the catalog used by product endpoints.
type ProductCatalog interface {
	Products() []domain.Product
	Featured() []domain.Product
	ProductByID(id string) (domain.Product, error)
	Categories() []domain.Category
}

type ProductHandler struct {
	catalog ProductCatalog
}

func NewProductHandler(catalog ProductCatalog) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
	Total    int              `json:"total"`
}

type CategoriesResponse struct {
	Categories []domain.Category `json:"categories"`
}

// List filters and sorts the loaded catalog from query parameters without
// touching the shared catalog view.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filters, err := parseFilterQuery(q.Get)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	products := catalog.DeriveView(h.catalog.Products(), filters, q.Get("q"), catalog.ParseSortOption(q.Get("sort")))
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products, Total: len(products)})
}

func (h *ProductHandler) Featured(w http.ResponseWriter, r *http.Request) {
	products := h.catalog.Featured()
	respondJSON(w, http.StatusOK, &ProductsResponse{Products: products, Total: len(products)})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product id is required")
		return
	}

	product, err := h.catalog.ProductByID(id)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &CategoriesResponse{Categories: h.catalog.Categories()})
}

type filterParamError struct {
	param string
	value string
}

func (e *filterParamError) Error() string {
	return "invalid value " + strconv.Quote(e.value) + " for " + e.param
}

func parseFilterQuery(get func(string) string) (domain.FilterOptions, error) {
	var f domain.FilterOptions

	if v := strings.TrimSpace(get("category")); v != "" {
		c := domain.Category(v)
		f.Category = &c
	}
	for _, param := range []struct {
		name string
		dst  **float64
	}{{"min_price", &f.MinPrice}, {"max_price", &f.MaxPrice}} {
		v := strings.TrimSpace(get(param.name))
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			return domain.FilterOptions{}, &filterParamError{param: param.name, value: v}
		}
		*param.dst = &n
	}
	for _, s := range splitList(get("sizes")) {
		size := domain.Size(strings.ToUpper(s))
		if !size.Valid() {
			return domain.FilterOptions{}, &filterParamError{param: "sizes", value: s}
		}
		f.Sizes = append(f.Sizes, size)
	}
	f.Brands = splitList(get("brands"))
	for _, param := range []struct {
		name string
		dst  **bool
	}{{"has_ar", &f.HasAR}, {"is_new", &f.IsNew}} {
		v := strings.TrimSpace(get(param.name))
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return domain.FilterOptions{}, &filterParamError{param: param.name, value: v}
		}
		*param.dst = &b
	}
	return f, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
