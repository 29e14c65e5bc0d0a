package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Alecwce/tienda-AR/internal/cart"
	"github.com/Alecwce/tienda-AR/internal/catalog"
	"github.com/Alecwce/tienda-AR/internal/loader"
	"github.com/Alecwce/tienda-AR/internal/user"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// handleError maps engine errors to HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var loadErr *loader.LoadError

	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, cart.ErrPersist), errors.Is(err, catalog.ErrPersist), errors.Is(err, user.ErrPersist):
		respondErrorDetails(w, http.StatusServiceUnavailable, "persistence_unavailable",
			"change applied but could not be saved", err.Error())
	case errors.Is(err, user.ErrInvalidMeasurements), errors.Is(err, user.ErrEmptyProductID):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.As(err, &loadErr):
		respondError(w, http.StatusBadGateway, "catalog_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "canceled", "request canceled")
	default:
		zap.L().Error("unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
