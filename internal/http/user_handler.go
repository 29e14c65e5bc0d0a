package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/Alecwce/tienda-AR/internal/user"
	"github.com/go-chi/chi/v5"
)

type UserProfile interface {
	Snapshot() user.Profile
	SetUser(ctx context.Context, u *domain.User) error
	Logout(ctx context.Context) error
	SetMeasurements(ctx context.Context, m domain.Measurements) error
	ClearMeasurements(ctx context.Context) error
	ToggleFavorite(ctx context.Context, productID string) (bool, error)
	AddToHistory(ctx context.Context, productID string) error
	ClearHistory(ctx context.Context) error
	IncrementARTries(ctx context.Context) error
}

type UserHandler struct {
	profile UserProfile
	timeout time.Duration
}

func NewUserHandler(profile UserProfile, timeout time.Duration) *UserHandler {
	return &UserHandler{profile: profile, timeout: timeout}
}

type ProfileResponse struct {
	user.Profile
	Authenticated bool `json:"isAuthenticated"`
}

type FavoriteResponse struct {
	ProductID string `json:"product_id"`
	Favorite  bool   `json:"favorite"`
}

type HistoryRequest struct {
	ProductID string `json:"product_id"`
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respondProfile(w)
}

func (h *UserHandler) SetUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if err := decodeJSON(r, &u); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if u.ID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user", "user id is required")
		return
	}
	h.mutate(w, r, func(ctx context.Context) error {
		return h.profile.SetUser(ctx, &u)
	})
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.profile.Logout)
}

func (h *UserHandler) SetMeasurements(w http.ResponseWriter, r *http.Request) {
	var m domain.Measurements
	if err := decodeJSON(r, &m); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	h.mutate(w, r, func(ctx context.Context) error {
		return h.profile.SetMeasurements(ctx, m)
	})
}

func (h *UserHandler) ClearMeasurements(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.profile.ClearMeasurements)
}

func (h *UserHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	favorite, err := h.profile.ToggleFavorite(ctx, productID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, &FavoriteResponse{ProductID: productID, Favorite: favorite})
}

func (h *UserHandler) AddToHistory(w http.ResponseWriter, r *http.Request) {
	var req HistoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	h.mutate(w, r, func(ctx context.Context) error {
		return h.profile.AddToHistory(ctx, req.ProductID)
	})
}

func (h *UserHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.profile.ClearHistory)
}

func (h *UserHandler) IncrementARTries(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.profile.IncrementARTries)
}

func (h *UserHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		handleError(w, err)
		return
	}
	h.respondProfile(w)
}

func (h *UserHandler) respondProfile(w http.ResponseWriter) {
	p := h.profile.Snapshot()
	respondJSON(w, http.StatusOK, &ProfileResponse{Profile: p, Authenticated: p.IsAuthenticated()})
}
