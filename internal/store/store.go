// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"trade-journal/internal/importer"
	"trade-journal/internal/models"
)

// TradeStore defines the interface for journaled trade persistence.
type TradeStore interface {
	List(ctx context.Context, filter TradeFilter) ([]models.Trade, error)
	Get(ctx context.Context, id string) (*models.Trade, error)
	Create(ctx context.Context, candidate models.ParsedTrade) (models.Trade, error)
	Update(ctx context.Context, id string, update models.TradeUpdate) error
	Delete(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}

// ProfileStore persists user-created import profiles. Ids are stored
// without the custom: prefix.
type ProfileStore interface {
	SaveProfile(ctx context.Context, profile importer.Profile) error
	GetProfile(ctx context.Context, id string) (*importer.Profile, error)
	ListProfiles(ctx context.Context) ([]importer.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	AccountID string
	Market    string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}

// Matches reports whether t passes the filter, ignoring Limit.
func (f TradeFilter) Matches(t models.Trade) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	if f.Market != "" && t.Market != f.Market {
		return false
	}
	if !f.StartDate.IsZero() && t.EntryDateTime.Before(f.StartDate) {
		return false
	}
	if !f.EndDate.IsZero() && t.EntryDateTime.After(f.EndDate) {
		return false
	}
	return true
}
