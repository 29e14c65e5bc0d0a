package http

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxLineQuantity = 99

// CartEngine is the cart state holder behind the cart endpoints.
type CartEngine interface {
	State() domain.Cart
	Line(productID string, size domain.Size, color string) (domain.CartItem, bool)
	AddItem(ctx context.Context, product domain.Product, size domain.Size, color string, quantity int) (bool, error)
	RemoveItem(ctx context.Context, productID string, size domain.Size, color string) error
	UpdateQuantity(ctx context.Context, productID string, size domain.Size, color string, quantity int) error
	ClearCart(ctx context.Context) error
	ApplyPromoCode(ctx context.Context, code string) (bool, error)
	RemovePromoCode(ctx context.Context) error
}

// ProductLookup resolves product ids against the loaded catalog.
type ProductLookup interface {
	ProductByID(id string) (domain.Product, error)
}

type CartHandler struct {
	cart     CartEngine
	products ProductLookup
	timeout  time.Duration
}

func NewCartHandler(cart CartEngine, products ProductLookup, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:     cart,
		products: products,
		timeout:  timeout,
	}
}

type AddItemRequest struct {
	ProductID string      `json:"product_id"`
	Size      domain.Size `json:"size"`
	Color     string      `json:"color"`
	Quantity  int         `json:"quantity"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type ApplyPromoRequest struct {
	Code string `json:"code"`
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cart.State())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.Quantity < 1 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.products.ProductByID(req.ProductID)
	if err != nil {
		handleError(w, err)
		return
	}
	if !product.HasSize(req.Size) {
		respondError(w, http.StatusBadRequest, "invalid_size", "size "+string(req.Size)+" is not offered for this product")
		return
	}
	if !product.HasColor(req.Color) {
		respondError(w, http.StatusBadRequest, "invalid_color", "color "+req.Color+" is not offered for this product")
		return
	}

	added, err := h.cart.AddItem(ctx, product, req.Size, req.Color, req.Quantity)
	if err != nil {
		handleError(w, err)
		return
	}
	if !added {
		respondError(w, http.StatusConflict, "insufficient_stock", "not enough stock for the requested quantity")
		return
	}
	respondJSON(w, http.StatusOK, h.cart.State())
}

// UpdateQuantity sets a line's quantity. Zero removes the line; quantities
// above the stock recorded on the line's product are rejected.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, size, color, ok := lineKey(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Quantity < 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 0 and 99")
		return
	}

	line, found := h.cart.Line(productID, size, color)
	if !found {
		respondError(w, http.StatusNotFound, "line_not_found", "cart has no line for this product variant")
		return
	}
	if line.Product.HasLimitedStock() && req.Quantity > *line.Product.Stock {
		respondError(w, http.StatusConflict, "insufficient_stock", "not enough stock for the requested quantity")
		return
	}

	if err := h.cart.UpdateQuantity(ctx, productID, size, color, req.Quantity); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cart.State())
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, size, color, ok := lineKey(w, r)
	if !ok {
		return
	}
	if err := h.cart.RemoveItem(ctx, productID, size, color); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cart.State())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.ClearCart(ctx); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cart.State())
}

func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ApplyPromoRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "invalid_promo_code", "code is required")
		return
	}

	applied, err := h.cart.ApplyPromoCode(ctx, req.Code)
	if err != nil {
		handleError(w, err)
		return
	}
	if !applied {
		respondError(w, http.StatusUnprocessableEntity, "unknown_promo_code", "promo code is not valid")
		return
	}
	respondJSON(w, http.StatusOK, h.cart.State())
}

func (h *CartHandler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.RemovePromoCode(ctx); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.cart.State())
}

// lineKey reads the {product_id}/{size}/{color} path segments. Color names may
// contain spaces and arrive escaped.
func lineKey(w http.ResponseWriter, r *http.Request) (string, domain.Size, string, bool) {
	productID, errID := url.PathUnescape(chi.URLParam(r, "product_id"))
	size, errSize := url.PathUnescape(chi.URLParam(r, "size"))
	color, errColor := url.PathUnescape(chi.URLParam(r, "color"))
	if errID != nil || errSize != nil || errColor != nil || productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_line", "invalid cart line path")
		return "", "", "", false
	}
	return productID, domain.Size(size), color, true
}
