package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockSource struct {
	m       sync.Mutex
	records []domain.RawProduct
	errs    []error // returned in order, then records
	calls   []time.Time
	block   chan struct{}
}

func (s *mockSource) FetchProducts(ctx context.Context) ([]domain.RawProduct, error) {
	s.m.Lock()
	s.calls = append(s.calls, time.Now())
	n := len(s.calls)
	block := s.block
	s.m.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.m.Lock()
	defer s.m.Unlock()
	if n <= len(s.errs) {
		return nil, s.errs[n-1]
	}
	return s.records, nil
}

func (s *mockSource) callCount() int {
	s.m.Lock()
	defer s.m.Unlock()
	return len(s.calls)
}

func rawRecords() []domain.RawProduct {
	stock := 5
	return []domain.RawProduct{
		{ID: "a", Name: "Vestido", Price: 59.9, Category: "vestidos", Stock: &stock, CreatedAt: "2024-05-01T10:00:00Z"},
		{ID: "b", Name: "Blusa", Price: 39.9, Category: "tops"},
	}
}

func TestLoad_FirstAttemptSucceeds(t *testing.T) {
	src := &mockSource{records: rawRecords()}
	sut := New(src, WithBaseDelay(time.Millisecond))

	products, err := sut.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "a", products[0].ID)
	assert.Equal(t, 1, src.callCount())
}

func TestLoad_RecoversAfterTransientFailures(t *testing.T) {
	src := &mockSource{
		records: rawRecords(),
		errs:    []error{errors.New("timeout"), errors.New("connection reset")},
	}
	sut := New(src, WithBaseDelay(time.Millisecond))

	products, err := sut.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 3, src.callCount())
}

func TestLoad_GivesUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("relation \"products\" does not exist")
	src := &mockSource{errs: []error{boom, boom, boom, boom, boom}}
	sut := New(src, WithBaseDelay(time.Millisecond))

	_, err := sut.Load(context.Background())
	require.Error(t, err)

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, 4, loadErr.Attempts)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, `failed to load products after 4 attempts: relation "products" does not exist`, err.Error())
	assert.Equal(t, 4, src.callCount())
}

func TestLoad_BackoffDoubles(t *testing.T) {
	boom := errors.New("unavailable")
	src := &mockSource{errs: []error{boom, boom, boom, boom}}
	base := 10 * time.Millisecond
	sut := New(src, WithBaseDelay(base))

	_, err := sut.Load(context.Background())
	require.Error(t, err)

	require.Len(t, src.calls, 4)
	for i, want := range []time.Duration{base, 2 * base, 4 * base} {
		gap := src.calls[i+1].Sub(src.calls[i])
		assert.GreaterOrEqual(t, gap, want, "retry %d", i+1)
	}
}

func TestLoad_CancelDuringBackoffStopsRetrying(t *testing.T) {
	src := &mockSource{errs: []error{errors.New("unavailable")}}
	sut := New(src, WithBaseDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := sut.Load(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("load did not stop after cancellation")
	}
	assert.Equal(t, 1, src.callCount())
}

func TestLoad_CancelledBeforeStart(t *testing.T) {
	src := &mockSource{errs: []error{context.Canceled}}
	sut := New(src, WithBaseDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sut.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	var loadErr *LoadError
	assert.False(t, errors.As(err, &loadErr))
}

func TestLoad_ConcurrentCallsShareOneFetch(t *testing.T) {
	src := &mockSource{records: rawRecords(), block: make(chan struct{})}
	sut := New(src, WithBaseDelay(time.Millisecond))

	var wg sync.WaitGroup
	results := make([][]domain.Product, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			products, err := sut.Load(context.Background())
			assert.NoError(t, err)
			results[i] = products
		}(i)
	}

	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.block)
	wg.Wait()

	assert.Equal(t, 1, src.callCount())
	for _, products := range results {
		assert.Len(t, products, 2)
	}
}

func TestLoad_CallerLeavingDoesNotCancelSharedFetch(t *testing.T) {
	src := &mockSource{records: rawRecords(), block: make(chan struct{})}
	sut := New(src, WithBaseDelay(time.Millisecond))

	leaving, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := sut.Load(leaving)
		first <- err
	}()
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)

	type result struct {
		products []domain.Product
		err      error
	}
	second := make(chan result, 1)
	go func() {
		products, err := sut.Load(context.Background())
		second <- result{products, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(src.block)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Len(t, res.products, 2)
	case <-time.After(time.Second):
		t.Fatal("remaining caller never got the shared result")
	}
	assert.Equal(t, 1, src.callCount())
}

func TestLoad_NewCallAfterAbandonedFetchStartsFresh(t *testing.T) {
	src := &mockSource{records: rawRecords(), block: make(chan struct{})}
	sut := New(src, WithBaseDelay(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := sut.Load(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return src.callCount() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(src.block)
	products, err := sut.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 2, src.callCount())
}

func TestLoad_OpenBreakerFailsFast(t *testing.T) {
	src := &mockSource{errs: []error{errors.New("down"), errors.New("down"), errors.New("down")}}
	sut := New(src,
		WithBaseDelay(time.Millisecond),
		WithMaxRetries(2),
		WithBreaker(gobreaker.Settings{
			Name:        "test",
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 },
		}),
	)

	_, err := sut.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 1, src.callCount(), "open breaker must not reach the source")
}

func TestLoad_SkipsInvalidAndDuplicateRecords(t *testing.T) {
	negative := -1
	records := append(rawRecords(),
		domain.RawProduct{ID: "", Name: "no id"},
		domain.RawProduct{ID: "c", Price: -5},
		domain.RawProduct{ID: "d", Stock: &negative},
		domain.RawProduct{ID: "a", Name: "duplicate"},
	)
	sut := New(&mockSource{records: records}, WithBaseDelay(time.Millisecond))

	products, err := sut.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Vestido", products[0].Name)
	assert.Equal(t, "b", products[1].ID)
}
