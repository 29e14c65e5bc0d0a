package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Alecwce/tienda-AR/internal/offline"
)

type PendingActions interface {
	Pending(ctx context.Context) ([]offline.Action, error)
}

// Flusher pushes queued actions to the remote side.
type Flusher interface {
	Flush(ctx context.Context) (offline.Result, error)
}

type SyncHandler struct {
	queue   PendingActions
	flusher Flusher
	timeout time.Duration
}

// NewSyncHandler builds the sync endpoints. flusher may be nil when no remote
// sync is configured; draining then answers 503.
func NewSyncHandler(queue PendingActions, flusher Flusher, timeout time.Duration) *SyncHandler {
	return &SyncHandler{queue: queue, flusher: flusher, timeout: timeout}
}

type PendingResponse struct {
	Actions []offline.Action `json:"actions"`
	Count   int              `json:"count"`
}

func (h *SyncHandler) Pending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actions, err := h.queue.Pending(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	if actions == nil {
		actions = []offline.Action{}
	}
	respondJSON(w, http.StatusOK, &PendingResponse{Actions: actions, Count: len(actions)})
}

func (h *SyncHandler) Drain(w http.ResponseWriter, r *http.Request) {
	if h.flusher == nil {
		respondError(w, http.StatusServiceUnavailable, "sync_disabled", "remote sync is not configured")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.flusher.Flush(ctx)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
