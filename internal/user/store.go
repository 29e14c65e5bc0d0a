// Package user keeps the shopper's persisted profile: identity, body
// measurements, favorites, recently viewed products and usage stats.
package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Alecwce/tienda-AR/internal/domain"
	"github.com/Alecwce/tienda-AR/internal/storage"
	"go.uber.org/zap"
)

const MaxHistoryItems = 20

var (
	ErrPersist             = errors.New("failed to persist user profile")
	ErrInvalidMeasurements = errors.New("measurements must not be negative")
	ErrEmptyProductID      = errors.New("product id is required")
)

// Profile is the persisted user record.
type Profile struct {
	User         *domain.User         `json:"user"`
	Measurements *domain.Measurements `json:"measurements"`
	Favorites    []string             `json:"favorites"`
	History      []string             `json:"history"`
	Stats        domain.UserStats     `json:"stats"`
}

func (p Profile) IsAuthenticated() bool {
	return p.User != nil
}

func (p Profile) clone() Profile {
	c := p
	if p.User != nil {
		u := *p.User
		u.Favorites = append([]string(nil), p.User.Favorites...)
		u.History = append([]string(nil), p.User.History...)
		if p.User.Measurements != nil {
			m := *p.User.Measurements
			u.Measurements = &m
		}
		c.User = &u
	}
	if p.Measurements != nil {
		m := *p.Measurements
		c.Measurements = &m
	}
	c.Favorites = append([]string{}, p.Favorites...)
	c.History = append([]string{}, p.History...)
	return c
}

type Store struct {
	mu      sync.Mutex
	profile Profile
	store   storage.Store
	logger  *zap.Logger
}

func NewStore(store storage.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		profile: Profile{Favorites: []string{}, History: []string{}},
		store:   store,
		logger:  logger,
	}
}

func (s *Store) Snapshot() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.clone()
}

// SetUser signs the user in and adopts their favorites. A nil user clears them.
func (s *Store) SetUser(ctx context.Context, u *domain.User) error {
	return s.update(ctx, func(p *Profile) {
		if u == nil {
			p.User = nil
			p.Favorites = []string{}
		} else {
			copied := *u
			p.User = &copied
			p.Favorites = append([]string{}, u.Favorites...)
		}
		p.Stats.FavoriteCount = len(p.Favorites)
	})
}

// Logout forgets the user but keeps the locally stored measurements and history.
func (s *Store) Logout(ctx context.Context) error {
	return s.update(ctx, func(p *Profile) { p.User = nil })
}

func (s *Store) SetMeasurements(ctx context.Context, m domain.Measurements) error {
	if err := validateMeasurements(m); err != nil {
		return err
	}
	return s.update(ctx, func(p *Profile) { p.Measurements = &m })
}

func (s *Store) ClearMeasurements(ctx context.Context) error {
	return s.update(ctx, func(p *Profile) { p.Measurements = nil })
}

// ToggleFavorite adds or removes productID and reports whether it is now a favorite.
func (s *Store) ToggleFavorite(ctx context.Context, productID string) (bool, error) {
	if productID == "" {
		return false, ErrEmptyProductID
	}
	var favorite bool
	err := s.update(ctx, func(p *Profile) {
		favorites := make([]string, 0, len(p.Favorites)+1)
		for _, id := range p.Favorites {
			if id != productID {
				favorites = append(favorites, id)
			}
		}
		favorite = len(favorites) == len(p.Favorites)
		if favorite {
			favorites = append(favorites, productID)
		}
		p.Favorites = favorites
		p.Stats.FavoriteCount = len(favorites)
	})
	return favorite, err
}

func (s *Store) IsFavorite(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.profile.Favorites {
		if id == productID {
			return true
		}
	}
	return false
}

// AddToHistory moves productID to the front of the recently viewed list.
func (s *Store) AddToHistory(ctx context.Context, productID string) error {
	if productID == "" {
		return ErrEmptyProductID
	}
	return s.update(ctx, func(p *Profile) {
		history := make([]string, 0, MaxHistoryItems)
		history = append(history, productID)
		for _, id := range p.History {
			if id != productID && len(history) < MaxHistoryItems {
				history = append(history, id)
			}
		}
		p.History = history
	})
}

func (s *Store) ClearHistory(ctx context.Context) error {
	return s.update(ctx, func(p *Profile) { p.History = []string{} })
}

func (s *Store) IncrementARTries(ctx context.Context) error {
	return s.update(ctx, func(p *Profile) { p.Stats.ARTriesCount++ })
}

// update holds mu through the write so the persisted profile never lags the one in memory.
func (s *Store) update(ctx context.Context, apply func(*Profile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	apply(&s.profile)
	data, err := json.Marshal(s.profile)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := s.store.Set(ctx, storage.UserKey, data); err != nil {
		s.logger.Warn("user profile write-through failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// Restore loads the persisted profile. Missing or malformed data keeps the defaults.
func (s *Store) Restore(ctx context.Context) error {
	data, err := s.store.Get(ctx, storage.UserKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("persisted user profile is malformed, using defaults", zap.Error(err))
		return nil
	}
	if p.Favorites == nil {
		p.Favorites = []string{}
	}
	if p.History == nil {
		p.History = []string{}
	}
	if len(p.History) > MaxHistoryItems {
		p.History = p.History[:MaxHistoryItems]
	}
	p.Stats.FavoriteCount = len(p.Favorites)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
	return nil
}

func validateMeasurements(m domain.Measurements) error {
	values := []float64{m.Height, m.Weight, m.Bust, m.Waist, m.Hips}
	if m.ShoulderWidth != nil {
		values = append(values, *m.ShoulderWidth)
	}
	if m.ArmLength != nil {
		values = append(values, *m.ArmLength)
	}
	for _, v := range values {
		if v < 0 {
			return ErrInvalidMeasurements
		}
	}
	return nil
}
