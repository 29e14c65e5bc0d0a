package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/Alecwce/tienda-AR/internal/storage"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrPersist         = errors.New("failed to persist catalog view")
)

// ProductLoader fetches the full product catalog.
type ProductLoader interface {
	Load(ctx context.Context) ([]domain.Product, error)
}

type persistedView struct {
	SearchQuery string               `json:"searchQuery"`
	Filters     domain.FilterOptions `json:"filters"`
	SortBy      domain.SortOption    `json:"sortBy"`
}

// Store holds the loaded catalog and the current view query. The derived product
// list is recomputed whenever the catalog or the query changes.
type Store struct {
	mu        sync.RWMutex
	persistMu sync.Mutex
	products  []domain.Product
	byID      map[string]int
	featured  []domain.Product
	query     persistedView
	filtered  []domain.Product
	isLoading bool
	loadErr   string
	listeners []func([]domain.Product)

	loader ProductLoader
	store  storage.Store
	logger *zap.Logger
}

func NewStore(loader ProductLoader, store storage.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		byID:     make(map[string]int),
		featured: []domain.Product{},
		query:    persistedView{SortBy: domain.SortPopular},
		filtered: []domain.Product{},
		loader:   loader,
		store:    store,
		logger:   logger,
	}
}

// OnLoad registers fn to be called with the new catalog after every successful load.
func (s *Store) OnLoad(fn func([]domain.Product)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Load fetches the catalog and replaces it wholesale. On failure the previous
// catalog is kept and the view's error is set. A cancelled ctx leaves the view as it was.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	prevErr := s.loadErr
	s.isLoading = true
	s.loadErr = ""
	s.mu.Unlock()

	products, err := s.loader.Load(ctx)

	s.mu.Lock()
	if err != nil {
		s.isLoading = false
		if ctx.Err() != nil {
			s.loadErr = prevErr
			s.mu.Unlock()
			return err
		}
		s.loadErr = err.Error()
		s.mu.Unlock()
		s.logger.Error("catalog load failed", zap.Error(err))
		return err
	}

	s.products = products
	s.byID = make(map[string]int, len(products))
	for i, p := range products {
		s.byID[p.ID] = i
	}
	s.featured = featured(products)
	s.isLoading = false
	s.refresh()
	featuredCount := len(s.featured)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	s.logger.Info("catalog loaded", zap.Int("products", len(products)), zap.Int("featured", featuredCount))
	for _, fn := range listeners {
		fn(products)
	}
	return nil
}

func (s *Store) SetSearchQuery(ctx context.Context, query string) error {
	return s.update(ctx, func(v *persistedView) { v.SearchQuery = query })
}

// SetFilters merges the constraints set in patch into the current filters.
func (s *Store) SetFilters(ctx context.Context, patch domain.FilterOptions) error {
	return s.update(ctx, func(v *persistedView) { v.Filters = v.Filters.Merge(patch) })
}

func (s *Store) ReplaceFilters(ctx context.Context, filters domain.FilterOptions) error {
	return s.update(ctx, func(v *persistedView) { v.Filters = domain.FilterOptions{}.Merge(filters) })
}

// ClearFilters resets the filters and the search query.
func (s *Store) ClearFilters(ctx context.Context) error {
	return s.update(ctx, func(v *persistedView) {
		v.Filters = domain.FilterOptions{}
		v.SearchQuery = ""
	})
}

func (s *Store) SetSortBy(ctx context.Context, sortBy domain.SortOption) error {
	return s.update(ctx, func(v *persistedView) { v.SortBy = ParseSortOption(string(sortBy)) })
}

// update applies a query change and writes it through. persistMu spans both
// steps so storage sees the snapshots in the order they were made.
func (s *Store) update(ctx context.Context, apply func(*persistedView)) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	apply(&s.query)
	s.refresh()
	data, err := json.Marshal(s.query)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := s.store.Set(ctx, storage.CatalogViewKey, data); err != nil {
		s.logger.Warn("catalog view write-through failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// refresh recomputes the derived list. Callers hold s.mu.
func (s *Store) refresh() {
	s.filtered = DeriveView(s.products, s.query.Filters, s.query.SearchQuery, s.query.SortBy)
}

// Restore reads the persisted view query. Missing or malformed data keeps the defaults.
func (s *Store) Restore(ctx context.Context) error {
	data, err := s.store.Get(ctx, storage.CatalogViewKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load catalog view: %w", err)
	}

	var v persistedView
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn("persisted catalog view is malformed, using defaults", zap.Error(err))
		return nil
	}
	v.SortBy = ParseSortOption(string(v.SortBy))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = v
	s.refresh()
	return nil
}

func (s *Store) View() domain.CatalogView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.CatalogView{
		SearchQuery:      s.query.SearchQuery,
		Filters:          domain.FilterOptions{}.Merge(s.query.Filters),
		SortBy:           s.query.SortBy,
		FilteredProducts: append([]domain.Product{}, s.filtered...),
		Featured:         append([]domain.Product{}, s.featured...),
		IsLoading:        s.isLoading,
		Error:            s.loadErr,
	}
}

func (s *Store) Products() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product{}, s.products...)
}

func (s *Store) Featured() []domain.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Product{}, s.featured...)
}

func (s *Store) ProductByID(id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return s.products[idx].Clone(), nil
}

func (s *Store) Categories() []domain.Category {
	return append([]domain.Category(nil), domain.AllCategories...)
}
