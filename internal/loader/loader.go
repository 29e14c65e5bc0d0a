// Package loader fetches raw product records from the product source and maps
// them into catalog products, retrying with exponential backoff.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const loadKey = "products"

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Source returns every raw product record of the remote catalog.
type Source interface {
	FetchProducts(ctx context.Context) ([]domain.RawProduct, error)
}

// LoadError is returned once every attempt has failed.
type LoadError struct {
	Attempts int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load products after %d attempts: %v", e.Attempts, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

type Loader struct {
	source     Source
	maxRetries int
	baseDelay  time.Duration
	breaker    *gobreaker.CircuitBreaker[[]domain.RawProduct]
	sfg        singleflight.Group
	logger     *zap.Logger

	mu     sync.Mutex
	flight *flight
}

// flight is the context of the shared fetch. It is cancelled only once every
// caller waiting on it has gone.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

type Option func(*Loader)

// WithBaseDelay sets the first retry delay. Each further retry doubles it.
func WithBaseDelay(d time.Duration) Option {
	return func(l *Loader) { l.baseDelay = d }
}

func WithMaxRetries(n int) Option {
	return func(l *Loader) { l.maxRetries = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithBreaker replaces the default circuit breaker settings.
func WithBreaker(settings gobreaker.Settings) Option {
	return func(l *Loader) { l.breaker = gobreaker.NewCircuitBreaker[[]domain.RawProduct](settings) }
}

func New(source Source, opts ...Option) *Loader {
	l := &Loader{
		source:     source,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.breaker == nil {
		l.breaker = gobreaker.NewCircuitBreaker[[]domain.RawProduct](gobreaker.Settings{
			Name:    "product-source",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				l.logger.Warn("circuit breaker state changed",
					zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}
	return l
}

// Load fetches and maps the whole catalog. Concurrent calls share one fetch,
// which keeps running while at least one caller still waits for it.
func (l *Loader) Load(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	f := l.flight
	if f == nil {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		l.flight = f
	}
	f.waiters++
	ch := l.sfg.DoChan(loadKey, func() (interface{}, error) {
		products, err := l.load(f.ctx)
		l.mu.Lock()
		l.endFlight(f)
		l.mu.Unlock()
		return products, err
	})
	l.mu.Unlock()

	select {
	case <-ctx.Done():
		l.leave(f)
		return nil, ctx.Err()
	case res := <-ch:
		l.leave(f)
		if res.Err != nil {
			return nil, res.Err
		}
		products := res.Val.([]domain.Product)
		if res.Shared {
			products = append([]domain.Product(nil), products...)
		}
		return products, nil
	}
}

func (l *Loader) leave(f *flight) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f.waiters--
	if f.waiters == 0 {
		f.cancel()
		l.endFlight(f)
	}
}

// endFlight detaches f so the next Load starts a fresh fetch. Callers hold l.mu.
func (l *Loader) endFlight(f *flight) {
	if l.flight == f {
		l.flight = nil
		l.sfg.Forget(loadKey)
	}
}

func (l *Loader) load(ctx context.Context) ([]domain.Product, error) {
	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		if attempt > 0 {
			delay := l.baseDelay << (attempt - 1)
			l.logger.Info("retrying product load",
				zap.Duration("delay", delay), zap.Int("attempt", attempt), zap.Int("max_retries", l.maxRetries))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		raw, err := l.breaker.Execute(func() ([]domain.RawProduct, error) {
			return l.source.FetchProducts(ctx)
		})
		if err == nil {
			return l.mapAll(raw), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		l.logger.Warn("product load attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return nil, &LoadError{Attempts: l.maxRetries + 1, Err: lastErr}
}

// mapAll maps every record, dropping invalid products and repeated ids.
func (l *Loader) mapAll(raw []domain.RawProduct) []domain.Product {
	products := make([]domain.Product, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		p := MapRaw(r)
		if err := p.Validate(); err != nil {
			l.logger.Warn("skipping invalid product", zap.String("product_id", r.ID), zap.Error(err))
			continue
		}
		if _, dup := seen[p.ID]; dup {
			l.logger.Warn("skipping duplicate product", zap.String("product_id", p.ID))
			continue
		}
		seen[p.ID] = struct{}{}
		products = append(products, p)
	}
	return products
}
