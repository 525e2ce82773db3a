package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// fakeWriter applies reconcile writes to an in-memory trade list.
type fakeWriter struct {
	trades  []models.Trade
	updates map[string]models.TradeUpdate
	nextID  int
	failAt  int // fail the nth write (1-based); 0 never fails
	writes  int
}

func newFakeWriter(existing ...models.Trade) *fakeWriter {
	return &fakeWriter{trades: existing, updates: make(map[string]models.TradeUpdate)}
}

func (f *fakeWriter) write() error {
	f.writes++
	if f.failAt > 0 && f.writes == f.failAt {
		return errors.New("write failed")
	}
	return nil
}

func (f *fakeWriter) Create(_ context.Context, c models.ParsedTrade) (models.Trade, error) {
	if err := f.write(); err != nil {
		return models.Trade{}, err
	}
	f.nextID++
	t := models.FromCandidate(fmt.Sprintf("new-%d", f.nextID), c, time.Now())
	f.trades = append(f.trades, t)
	return t, nil
}

func (f *fakeWriter) Update(_ context.Context, id string, u models.TradeUpdate) error {
	if err := f.write(); err != nil {
		return err
	}
	for i := range f.trades {
		if f.trades[i].ID == id {
			u.Apply(&f.trades[i])
			f.updates[id] = u
			return nil
		}
	}
	return apperrors.ErrTradeNotFound
}

func (f *fakeWriter) created() []models.Trade {
	var out []models.Trade
	for _, t := range f.trades {
		if len(t.ID) > 4 && t.ID[:4] == "new-" {
			out = append(out, t)
		}
	}
	return out
}

var baseTime = time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)

func candidate(market string, dir models.Direction, entry time.Time, price float64) models.ParsedTrade {
	return models.ParsedTrade{
		Market:        market,
		Direction:     dir,
		Contracts:     1,
		EntryPrice:    models.Float(price),
		EntryDateTime: entry,
	}
}

func journaled(id, market string, dir models.Direction, entry time.Time) models.Trade {
	return models.Trade{
		ID:            id,
		Market:        market,
		Direction:     dir,
		EntryDateTime: entry,
		EntryPrice:    100,
		ExitPrice:     models.Float(105),
		Contracts:     1,
		Status:        models.StatusClosed,
		Setup:         "ORB",
		NotesRaw:      "great setup",
		Tags:          []string{"A+"},
	}
}

func TestReconcileCreatesNewTrades(t *testing.T) {
	w := newFakeWriter()
	r := NewReconciler(w)

	c := candidate("NQ", models.Long, baseTime, 18000)
	c.Tags = []string{"Imported", "gap"}
	res, err := r.Reconcile(context.Background(), []models.ParsedTrade{
		c,
		candidate("ES", models.Short, baseTime, 5000),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, Result{Created: 2}, res)

	created := w.created()
	require.Len(t, created, 2)
	assert.Equal(t, []string{"Imported", "gap"}, created[0].Tags)
	assert.Equal(t, []string{ImportedTag}, created[1].Tags)
	for _, tr := range created {
		assert.Equal(t, models.StatusClosed, tr.Status)
	}
}

func TestReconcileMergePreservesJournal(t *testing.T) {
	existing := journaled("t1", "NQ", models.Long, baseTime)
	w := newFakeWriter(existing)
	r := NewReconciler(w)

	c := candidate("NQ", models.Long, baseTime.Add(10*time.Minute), 18010)
	c.Contracts = 2
	c.PnL = models.Float(400)
	c.Setup = "from csv"
	c.NotesRaw = "from csv"

	res, err := r.Reconcile(context.Background(), []models.ParsedTrade{c}, []models.Trade{existing})

	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1}, res)

	got := w.trades[0]
	assert.Equal(t, 18010.0, got.EntryPrice)
	assert.Equal(t, 2, got.Contracts)
	assert.True(t, c.EntryDateTime.Equal(got.EntryDateTime))
	assert.InDelta(t, 400, *got.PnL, 1e-9)
	assert.InDelta(t, 105, *got.ExitPrice, 1e-9, "missing exit keeps stored exit")

	assert.Equal(t, "ORB", got.Setup)
	assert.Equal(t, "great setup", got.NotesRaw)
	assert.Equal(t, []string{"A+"}, got.Tags)
}

func TestReconcileZeroExitKeepsStoredExit(t *testing.T) {
	existing := journaled("t1", "NQ", models.Long, baseTime)
	w := newFakeWriter(existing)

	c := candidate("NQ", models.Long, baseTime, 100)
	c.ExitPrice = models.Float(0)
	_, err := NewReconciler(w).Reconcile(context.Background(), []models.ParsedTrade{c}, []models.Trade{existing})
	require.NoError(t, err)
	assert.InDelta(t, 105, *w.trades[0].ExitPrice, 1e-9)

	c.ExitPrice = models.Float(110)
	_, err = NewReconciler(w).Reconcile(context.Background(), []models.ParsedTrade{c}, w.trades)
	require.NoError(t, err)
	assert.InDelta(t, 110, *w.trades[0].ExitPrice, 1e-9)
}

func TestReconcileMatchRequiresMarketDirectionAndWindow(t *testing.T) {
	existing := []models.Trade{journaled("t1", "NQ", models.Long, baseTime)}

	tests := []struct {
		name string
		c    models.ParsedTrade
		want Result
	}{
		{"same trade", candidate("NQ", models.Long, baseTime, 1), Result{Updated: 1}},
		{"just inside window", candidate("NQ", models.Long, baseTime.Add(-59*time.Minute), 1), Result{Updated: 1}},
		{"exactly at window", candidate("NQ", models.Long, baseTime.Add(60*time.Minute), 1), Result{Created: 1}},
		{"other direction", candidate("NQ", models.Short, baseTime, 1), Result{Created: 1}},
		{"other market", candidate("ES", models.Long, baseTime, 1), Result{Created: 1}},
		{"market is case sensitive", candidate("nq", models.Long, baseTime, 1), Result{Created: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newFakeWriter(existing...)
			res, err := NewReconciler(w).Reconcile(context.Background(), []models.ParsedTrade{tt.c}, existing)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestReconcileCustomWindowAndTag(t *testing.T) {
	existing := []models.Trade{journaled("t1", "NQ", models.Long, baseTime)}
	w := newFakeWriter(existing...)
	r := NewReconciler(w, WithMatchWindow(5*time.Minute), WithImportedTag("csv"))

	res, err := r.Reconcile(context.Background(), []models.ParsedTrade{
		candidate("NQ", models.Long, baseTime.Add(10*time.Minute), 1),
	}, existing)

	require.NoError(t, err)
	assert.Equal(t, Result{Created: 1}, res)
	assert.Equal(t, []string{"csv"}, w.created()[0].Tags)
}

func TestReconcileClaimsEachTradeOnce(t *testing.T) {
	existing := []models.Trade{journaled("t1", "NQ", models.Long, baseTime)}
	w := newFakeWriter(existing...)

	batch := []models.ParsedTrade{
		candidate("NQ", models.Long, baseTime.Add(1*time.Minute), 1),
		candidate("NQ", models.Long, baseTime.Add(2*time.Minute), 2),
		candidate("NQ", models.Long, baseTime.Add(3*time.Minute), 3),
	}
	res, err := NewReconciler(w).Reconcile(context.Background(), batch, existing)

	require.NoError(t, err)
	assert.Equal(t, Result{Created: 2, Updated: 1}, res)
	assert.Equal(t, 1.0, w.trades[0].EntryPrice, "first candidate claims the match")
}

func TestReconcileIsIdempotent(t *testing.T) {
	w := newFakeWriter()
	r := NewReconciler(w)
	batch := []models.ParsedTrade{
		candidate("NQ", models.Long, baseTime, 1),
		candidate("NQ", models.Long, baseTime.Add(30*time.Minute), 2),
		candidate("ES", models.Short, baseTime, 3),
	}

	first, err := r.Reconcile(context.Background(), batch, nil)
	require.NoError(t, err)
	assert.Equal(t, Result{Created: 3}, first)

	second, err := r.Reconcile(context.Background(), batch, append([]models.Trade(nil), w.trades...))
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 3}, second)
	assert.Len(t, w.trades, 3)
}

func TestReconcileWriteFailureReturnsPartialCounts(t *testing.T) {
	existing := []models.Trade{journaled("t1", "NQ", models.Long, baseTime)}
	w := newFakeWriter(existing...)
	w.failAt = 3

	batch := []models.ParsedTrade{
		candidate("NQ", models.Long, baseTime, 1),
		candidate("ES", models.Long, baseTime, 2),
		candidate("CL", models.Long, baseTime, 3),
		candidate("GC", models.Long, baseTime, 4),
	}
	res, err := NewReconciler(w).Reconcile(context.Background(), batch, existing)

	require.Error(t, err)
	assert.Equal(t, Result{Created: 1, Updated: 1}, res)

	var rerr *apperrors.ReconcileError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 2, rerr.Index)
	assert.Equal(t, "CL", rerr.Market)
	assert.Equal(t, "create", rerr.Op)
	assert.Equal(t, 1, rerr.Created)
	assert.Equal(t, 1, rerr.Updated)
	assert.Len(t, w.trades, 2, "earlier writes stay applied")
}

func TestReconcileStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newFakeWriter()
	res, err := NewReconciler(w).Reconcile(ctx, []models.ParsedTrade{candidate("NQ", models.Long, baseTime, 1)}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, w.trades)
}

// Property: reconciling a batch against the trades a previous run of the
// same batch produced creates nothing.
func TestProperty_ReconcileReimportCreatesNothing(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	markets := []string{"NQ", "ES", "CL"}

	properties.Property("second import only updates", prop.ForAll(
		func(offsets []int, sides []bool) bool {
			var batch []models.ParsedTrade
			for i, off := range offsets {
				dir := models.Long
				if i < len(sides) && sides[i] {
					dir = models.Short
				}
				batch = append(batch, candidate(markets[i%len(markets)], dir, baseTime.Add(time.Duration(off)*time.Minute), float64(i+1)))
			}

			w := newFakeWriter()
			r := NewReconciler(w)
			first, err := r.Reconcile(context.Background(), batch, nil)
			if err != nil || first.Created != len(batch) {
				return false
			}
			second, err := r.Reconcile(context.Background(), batch, append([]models.Trade(nil), w.trades...))
			return err == nil && second.Created == 0 && second.Updated == len(batch)
		},
		gen.SliceOf(gen.IntRange(0, 24*60)),
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
