package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/importer"
	"trade-journal/internal/models"
)

// MemoryStore keeps trades and custom profiles in memory. It backs dry runs
// and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	trades   map[string]models.Trade
	order    []string
	profiles map[string]importer.Profile
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trades:   make(map[string]models.Trade),
		profiles: make(map[string]importer.Profile),
		now:      time.Now,
	}
}

// Seed inserts trades as-is, keeping their ids.
func (m *MemoryStore) Seed(trades ...models.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range trades {
		if _, ok := m.trades[t.ID]; !ok {
			m.order = append(m.order, t.ID)
		}
		m.trades[t.ID] = cloneTrade(t)
	}
}

// List returns matching trades ordered by entry time, then insertion order.
func (m *MemoryStore) List(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var trades []models.Trade
	for _, id := range m.order {
		t := m.trades[id]
		if filter.Matches(t) {
			trades = append(trades, cloneTrade(t))
		}
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].EntryDateTime.Before(trades[j].EntryDateTime)
	})
	if filter.Limit > 0 && len(trades) > filter.Limit {
		trades = trades[:filter.Limit]
	}
	return trades, nil
}

// Get returns a copy of the trade with the given id.
func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Trade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trades[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTradeNotFound, id)
	}
	t = cloneTrade(t)
	return &t, nil
}

// Create stores candidate under a new id.
func (m *MemoryStore) Create(ctx context.Context, candidate models.ParsedTrade) (models.Trade, error) {
	if err := ctx.Err(); err != nil {
		return models.Trade{}, err
	}
	t := models.FromCandidate(uuid.NewString(), candidate, m.now().UTC())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[t.ID] = t
	m.order = append(m.order, t.ID)
	return cloneTrade(t), nil
}

// Update applies update to the stored trade.
func (m *MemoryStore) Update(ctx context.Context, id string, update models.TradeUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrTradeNotFound, id)
	}
	update.Apply(&t)
	t.UpdatedAt = m.now().UTC()
	m.trades[id] = t
	return nil
}

// Delete removes a trade.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trades[id]; !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrTradeNotFound, id)
	}
	delete(m.trades, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

// SaveProfile inserts or replaces a custom profile.
func (m *MemoryStore) SaveProfile(ctx context.Context, profile importer.Profile) error {
	if !profile.IsCustom() {
		return apperrors.ErrBuiltInProfile
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[strings.TrimPrefix(profile.Key, importer.CustomPrefix)] = profile.Clone()
	return nil
}

// GetProfile returns a custom profile by id, with or without the custom: prefix.
func (m *MemoryStore) GetProfile(ctx context.Context, id string) (*importer.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[strings.TrimPrefix(id, importer.CustomPrefix)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrProfileNotFound, id)
	}
	p = p.Clone()
	return &p, nil
}

// ListProfiles returns custom profiles sorted by name.
func (m *MemoryStore) ListProfiles(ctx context.Context) ([]importer.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	profiles := make([]importer.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		profiles = append(profiles, p.Clone())
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})
	return profiles, nil
}

// DeleteProfile removes a custom profile.
func (m *MemoryStore) DeleteProfile(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.TrimPrefix(id, importer.CustomPrefix)
	if _, ok := m.profiles[key]; !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrProfileNotFound, id)
	}
	delete(m.profiles, key)
	return nil
}

func cloneTrade(t models.Trade) models.Trade {
	t.Tags = append([]string(nil), t.Tags...)
	t.Mistakes = append([]string(nil), t.Mistakes...)
	t.Images = append([]string(nil), t.Images...)
	return t
}
