// Package offline queues state mutations so they can be synchronised with a
// remote backend once it is reachable.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Alecwce/tienda-AR/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmptyAction = errors.New("action name is required")

type Action struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
}

// Processor handles one queued action. Returning false or an error keeps the
// action queued for the next drain.
type Processor func(ctx context.Context, action Action) (bool, error)

type Result struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Queue is a persisted FIFO of actions.
type Queue struct {
	mu      sync.Mutex
	drainMu sync.Mutex
	store   storage.Store
	logger  *zap.Logger
	now     func() time.Time
}

func NewQueue(store storage.Store, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{store: store, logger: logger, now: time.Now}
}

func (q *Queue) Enqueue(ctx context.Context, name string, payload any) (Action, error) {
	if name == "" {
		return Action{}, ErrEmptyAction
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Action{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	action := Action{
		ID:        uuid.NewString(),
		Timestamp: q.now().UnixMilli(),
		Action:    name,
		Payload:   data,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	actions, err := q.load(ctx)
	if err != nil {
		return Action{}, err
	}
	if err := q.save(ctx, append(actions, action)); err != nil {
		return Action{}, err
	}
	return action, nil
}

// Record enqueues an action and drops the result. It lets the queue observe
// cart mutations.
func (q *Queue) Record(ctx context.Context, name string, payload any) error {
	_, err := q.Enqueue(ctx, name, payload)
	return err
}

func (q *Queue) Pending(ctx context.Context) ([]Action, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.store.Delete(ctx, storage.OfflineQueueKey); err != nil {
		return fmt.Errorf("failed to clear offline queue: %w", err)
	}
	return nil
}

// Drain hands every pending action to p in order. Actions p accepts are removed;
// the rest stay queued. Actions enqueued while the drain runs are kept.
func (q *Queue) Drain(ctx context.Context, p Processor) (Result, error) {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	pending, err := q.Pending(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	done := make(map[string]struct{}, len(pending))
	for _, action := range pending {
		if ctx.Err() != nil {
			res.Failed += len(pending) - res.Processed - res.Failed
			break
		}
		ok, err := p(ctx, action)
		if err != nil {
			q.logger.Warn("offline action failed",
				zap.String("action_id", action.ID), zap.String("action", action.Action), zap.Error(err))
		}
		if err != nil || !ok {
			res.Failed++
			continue
		}
		done[action.ID] = struct{}{}
		res.Processed++
	}

	if len(done) == 0 {
		return res, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// re-read: actions may have been enqueued during processing
	current, err := q.load(context.WithoutCancel(ctx))
	if err != nil {
		return res, err
	}
	remaining := make([]Action, 0, len(current))
	for _, action := range current {
		if _, ok := done[action.ID]; !ok {
			remaining = append(remaining, action)
		}
	}
	if err := q.save(context.WithoutCancel(ctx), remaining); err != nil {
		return res, err
	}
	return res, nil
}

// load reads the queue. Callers hold q.mu.
func (q *Queue) load(ctx context.Context) ([]Action, error) {
	data, err := q.store.Get(ctx, storage.OfflineQueueKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []Action{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load offline queue: %w", err)
	}

	var actions []Action
	if err := json.Unmarshal(data, &actions); err != nil {
		q.logger.Warn("persisted offline queue is malformed, starting empty", zap.Error(err))
		return []Action{}, nil
	}
	if actions == nil {
		actions = []Action{}
	}
	return actions, nil
}

// save writes the queue. Callers hold q.mu.
func (q *Queue) save(ctx context.Context, actions []Action) error {
	data, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to encode offline queue: %w", err)
	}
	if err := q.store.Set(ctx, storage.OfflineQueueKey, data); err != nil {
		return fmt.Errorf("failed to persist offline queue: %w", err)
	}
	return nil
}
