package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Alecwce/tienda-AR/internal/cart"
	"github.com/Alecwce/tienda-AR/internal/catalog"
	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/Alecwce/tienda-AR/internal/offline"
	"github.com/Alecwce/tienda-AR/internal/storage"
	"github.com/Alecwce/tienda-AR/internal/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLoader struct {
	m        sync.RWMutex
	products []domain.Product
	err      error
}

func (l *staticLoader) Load(context.Context) ([]domain.Product, error) {
	l.m.RLock()
	defer l.m.RUnlock()
	if l.err != nil {
		return nil, l.err
	}
	out := make([]domain.Product, len(l.products))
	for i, p := range l.products {
		out[i] = p.Clone()
	}
	return out, nil
}

func (l *staticLoader) fail(err error) {
	l.m.Lock()
	defer l.m.Unlock()
	l.err = err
}

// switchableStore fails every write once broken is set.
type switchableStore struct {
	*storage.MemoryStore
	m      sync.RWMutex
	broken bool
}

func (s *switchableStore) Set(ctx context.Context, key string, value []byte) error {
	s.m.RLock()
	broken := s.broken
	s.m.RUnlock()
	if broken {
		return errors.New("disk full")
	}
	return s.MemoryStore.Set(ctx, key, value)
}

func (s *switchableStore) breakWrites() {
	s.m.Lock()
	defer s.m.Unlock()
	s.broken = true
}

type mockFlusher struct {
	m     sync.RWMutex
	res   offline.Result
	err   error
	calls int
}

func (f *mockFlusher) Flush(context.Context) (offline.Result, error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls++
	return f.res, f.err
}

func (f *mockFlusher) callCount() int {
	f.m.RLock()
	defer f.m.RUnlock()
	return f.calls
}

type testEnv struct {
	server  *httptest.Server
	loader  *staticLoader
	store   *switchableStore
	catalog *catalog.Store
	cart    *cart.Engine
	user    *user.Store
	queue   *offline.Queue
}

func intPtr(v int) *int { return &v }

func fixtureProducts() []domain.Product {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return []domain.Product{
		{
			ID: "vv-001", Name: "Vestido Midi Seda", Brand: "Aurora", Price: 100,
			Category: domain.CategoryDresses, Sizes: []domain.Size{domain.SizeS, domain.SizeM},
			Colors: []domain.Color{{Name: "Negro", Hex: "#000000"}, {Name: "Rojo claro", Hex: "#ff8080"}},
			HasAR: true, IsFeatured: true, Rating: 4.8, ReviewCount: 120, Stock: intPtr(5),
			Tags: []string{"seda"}, CreatedAt: base,
		},
		{
			ID: "vv-002", Name: "Top Lino", Brand: "Costa", Price: 50,
			Category: domain.CategoryTops, Sizes: []domain.Size{domain.SizeM},
			Colors: []domain.Color{{Name: "Blanco", Hex: "#ffffff"}},
			IsNew: true, Rating: 4.1, ReviewCount: 30, Tags: []string{"verano"},
			CreatedAt: base.Add(24 * time.Hour),
		},
		{
			ID: "vv-003", Name: "Pantalón Sastre", Brand: "Aurora", Price: 80,
			Category: domain.CategoryTrousers, Sizes: []domain.Size{domain.SizeL},
			Colors: []domain.Color{{Name: "Gris", Hex: "#808080"}},
			Rating: 4.5, ReviewCount: 60, Stock: intPtr(0), Tags: []string{},
			CreatedAt: base.Add(48 * time.Hour),
		},
	}
}

func newTestEnv(t *testing.T, flusher Flusher) *testEnv {
	t.Helper()

	env := &testEnv{
		loader: &staticLoader{products: fixtureProducts()},
		store:  &switchableStore{MemoryStore: storage.NewMemoryStore()},
	}
	env.queue = offline.NewQueue(env.store, nil)
	env.catalog = catalog.NewStore(env.loader, env.store, nil)
	env.cart = cart.NewEngine(env.store, nil, env.queue, nil)
	env.user = user.NewStore(env.store, nil)
	require.NoError(t, env.catalog.Load(context.Background()))

	timeout := 5 * time.Second
	router := NewRouter(Handlers{
		Products: NewProductHandler(env.catalog),
		Catalog:  NewCatalogHandler(env.catalog, timeout),
		Cart:     NewCartHandler(env.cart, env.catalog, timeout),
		User:     NewUserHandler(env.user, timeout),
		Sync:     NewSyncHandler(env.queue, flusher, timeout),
	}, nil, timeout)

	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func assertErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	errResp := decodeBody[ErrorResponse](t, resp)
	assert.Equal(t, code, errResp.Code)
	assert.NotEmpty(t, errResp.Error)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decodeBody[map[string]string](t, resp))
}

func TestRequestID_PropagatedOrAssigned(t *testing.T) {
	env := newTestEnv(t, nil)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-from-client")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "req-from-client", resp.Header.Get("X-Request-ID"))

	resp = env.do(t, http.MethodGet, "/health", nil)
	assert.Regexp(t, `^req-\d+$`, resp.Header.Get("X-Request-ID"))
}

func TestRequestIDMiddleware_StoresIDInContext(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getRequestID(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("X-Request-ID", "abc")
	handler.ServeHTTP(httptest.NewRecorder(), request)

	assert.Equal(t, "abc", seen)
	assert.Empty(t, getRequestID(context.Background()))
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/v1/orders", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", catalog.ErrProductNotFound, http.StatusNotFound, "not_found"},
		{"cart persist", cart.ErrPersist, http.StatusServiceUnavailable, "persistence_unavailable"},
		{"catalog persist", catalog.ErrPersist, http.StatusServiceUnavailable, "persistence_unavailable"},
		{"user persist", user.ErrPersist, http.StatusServiceUnavailable, "persistence_unavailable"},
		{"bad measurements", user.ErrInvalidMeasurements, http.StatusBadRequest, "invalid_argument"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			handleError(recorder, tt.err)

			assert.Equal(t, tt.status, recorder.Code)
			var response ErrorResponse
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&response))
			assert.Equal(t, tt.code, response.Code)
		})
	}
}
