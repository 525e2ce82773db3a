package importer

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

const (
	// DefaultMatchWindow is how far apart two entry times may be and still
	// describe the same trade.
	DefaultMatchWindow = 60 * time.Minute
	// ImportedTag marks trades created by an import.
	ImportedTag = "Imported"
)

// TradeWriter is the subset of the trade store the reconciler writes to.
type TradeWriter interface {
	Create(ctx context.Context, candidate models.ParsedTrade) (models.Trade, error)
	Update(ctx context.Context, id string, update models.TradeUpdate) error
}

// Result counts the outcome of a reconcile batch.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Reconciler merges parsed candidates into an existing trade history.
type Reconciler struct {
	writer      TradeWriter
	window      time.Duration
	importedTag string
	logger      zerolog.Logger
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithMatchWindow overrides DefaultMatchWindow.
func WithMatchWindow(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithImportedTag overrides ImportedTag.
func WithImportedTag(tag string) ReconcilerOption {
	return func(r *Reconciler) {
		if tag != "" {
			r.importedTag = tag
		}
	}
}

// WithLogger sets the reconciler's logger.
func WithLogger(logger zerolog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// NewReconciler creates a Reconciler writing through w.
func NewReconciler(w TradeWriter, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		writer:      w,
		window:      DefaultMatchWindow,
		importedTag: ImportedTag,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile processes candidates in order. A candidate updates the first
// existing trade with the same market and direction whose entry time is
// within the match window and that no earlier candidate in this batch has
// claimed; otherwise it is created.
//
// Writes are sequential. If a write fails the counts so far are returned
// together with a *errors.ReconcileError; earlier writes stay applied.
func (r *Reconciler) Reconcile(ctx context.Context, candidates []models.ParsedTrade, existing []models.Trade) (Result, error) {
	var result Result
	matched := make(map[string]bool)

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return result, apperrors.NewReconcileError(i, c.Market, "cancel", result.Created, result.Updated, err)
		}

		target := r.findMatch(c, existing, matched)
		if target != nil {
			matched[target.ID] = true
			if err := r.writer.Update(ctx, target.ID, mergeUpdate(c, *target)); err != nil {
				return result, apperrors.NewReconcileError(i, c.Market, "update", result.Created, result.Updated, err)
			}
			result.Updated++
			r.logger.Debug().
				Str("trade_id", target.ID).
				Str("market", c.Market).
				Time("entry", c.EntryDateTime).
				Msg("Merged imported trade")
			continue
		}

		created, err := r.writer.Create(ctx, r.newTrade(c))
		if err != nil {
			return result, apperrors.NewReconcileError(i, c.Market, "create", result.Created, result.Updated, err)
		}
		result.Created++
		r.logger.Debug().
			Str("trade_id", created.ID).
			Str("market", c.Market).
			Time("entry", c.EntryDateTime).
			Msg("Created imported trade")
	}

	r.logger.Info().
		Int("candidates", len(candidates)).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Msg("Reconcile complete")
	return result, nil
}

func (r *Reconciler) findMatch(c models.ParsedTrade, existing []models.Trade, matched map[string]bool) *models.Trade {
	for i := range existing {
		t := &existing[i]
		if matched[t.ID] {
			continue
		}
		if t.Market != c.Market || t.Direction != c.Direction {
			continue
		}
		delta := t.EntryDateTime.Sub(c.EntryDateTime)
		if delta < 0 {
			delta = -delta
		}
		if delta < r.window {
			return t
		}
	}
	return nil
}

// mergeUpdate overwrites execution facts only. A missing or zero exit price
// keeps the stored one.
func mergeUpdate(c models.ParsedTrade, existing models.Trade) models.TradeUpdate {
	entry := c.EntryDateTime
	contracts := c.Contracts
	u := models.TradeUpdate{
		EntryPrice:    c.EntryPrice,
		ExitPrice:     c.ExitPrice,
		EntryDateTime: &entry,
		ExitTime:      c.ExitTime,
		PnL:           c.PnL,
		Contracts:     &contracts,
	}
	if c.ExitPrice == nil || *c.ExitPrice == 0 {
		u.ExitPrice = existing.ExitPrice
	}
	return u
}

func (r *Reconciler) newTrade(c models.ParsedTrade) models.ParsedTrade {
	tags := make([]string, 0, len(c.Tags)+1)
	tags = append(tags, c.Tags...)
	if !slices.Contains(tags, r.importedTag) {
		tags = append(tags, r.importedTag)
	}
	c.Tags = tags
	c.Status = models.StatusClosed
	return c
}
