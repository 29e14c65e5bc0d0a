package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Handlers struct {
	Products *ProductHandler
	Catalog  *CatalogHandler
	Cart     *CartHandler
	User     *UserHandler
	Sync     *SyncHandler
}

// NewRouter mounts every endpoint under /api/v1 and the health probe at the root.
func NewRouter(h Handlers, logger *zap.Logger, timeout time.Duration) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(ZapLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.Products.List)
			r.Get("/featured", h.Products.Featured)
			r.Get("/{id}", h.Products.Get)
		})
		r.Get("/categories", h.Products.Categories)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", h.Catalog.View)
			r.Put("/search", h.Catalog.SetSearch)
			r.Patch("/filters", h.Catalog.PatchFilters)
			r.Delete("/filters", h.Catalog.ClearFilters)
			r.Put("/sort", h.Catalog.SetSort)
			r.Post("/reload", h.Catalog.Reload)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{product_id}/{size}/{color}", h.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}/{size}/{color}", h.Cart.RemoveItem)
			r.Post("/promo", h.Cart.ApplyPromo)
			r.Delete("/promo", h.Cart.RemovePromo)
		})

		r.Route("/me", func(r chi.Router) {
			r.Get("/", h.User.Get)
			r.Put("/", h.User.SetUser)
			r.Delete("/", h.User.Logout)
			r.Put("/measurements", h.User.SetMeasurements)
			r.Delete("/measurements", h.User.ClearMeasurements)
			r.Post("/favorites/{product_id}", h.User.ToggleFavorite)
			r.Post("/history", h.User.AddToHistory)
			r.Delete("/history", h.User.ClearHistory)
			r.Post("/ar-tries", h.User.IncrementARTries)
		})

		r.Route("/sync", func(r chi.Router) {
			r.Get("/", h.Sync.Pending)
			r.Post("/drain", h.Sync.Drain)
		})
	})

	return otelhttp.NewHandler(r, "tienda-api")
}
