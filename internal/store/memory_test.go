package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/models"
)

func TestMemoryStoreSeedKeepsIDs(t *testing.T) {
	m := NewMemoryStore()
	m.Seed(models.Trade{ID: "t1", Market: "NQ", EntryDateTime: day, Tags: []string{"A+"}})

	got, err := m.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "NQ", got.Market)

	got.Tags[0] = "mutated"
	again, err := m.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A+"}, again.Tags, "callers get copies")
}

func TestMemoryStoreHonorsCancellation(t *testing.T) {
	m := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Create(ctx, sampleCandidate("NQ", day))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = m.List(ctx, TradeFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}
