package importer

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/models"
)

func scenarioTrade(direction models.Direction) models.ParsedTrade {
	return models.ParsedTrade{
		Market:     "NQ",
		Direction:  direction,
		Contracts:  2,
		EntryPrice: models.Float(100),
		PlannedSL:  models.Float(95),
		PlannedTP:  models.Float(110),
		ExitPrice:  models.Float(108),
		MAEPrice:   models.Float(97),
		MFEPrice:   models.Float(109),
		PnL:        models.Float(320),
	}
}

func TestComputeMetricsLongScenario(t *testing.T) {
	tr := scenarioTrade(models.Long)

	ComputeMetrics(&tr, DefaultMultipliers())
	m := tr.Metrics

	require.NotNil(t, m.Risk)
	assert.InDelta(t, 5*2*20.0, *m.Risk, 1e-9)
	require.NotNil(t, m.PlannedRR)
	assert.InDelta(t, 2.0, *m.PlannedRR, 1e-9)
	require.NotNil(t, m.AchievedR)
	assert.InDelta(t, 1.6, *m.AchievedR, 1e-9)
	require.NotNil(t, m.MAER)
	assert.InDelta(t, 0.6, *m.MAER, 1e-9)
	require.NotNil(t, m.HeatPercent)
	assert.InDelta(t, 60, *m.HeatPercent, 1e-9)
	require.NotNil(t, m.MFER)
	assert.InDelta(t, 1.8, *m.MFER, 1e-9)
	require.NotNil(t, m.ProfitCapturePercent)
	assert.InDelta(t, 88.888, *m.ProfitCapturePercent, 0.01)
	require.NotNil(t, m.Win)
	assert.True(t, *m.Win)
}

func TestComputeMetricsShortMirrorsLong(t *testing.T) {
	tr := models.ParsedTrade{
		Market:     "ES",
		Direction:  models.Short,
		Contracts:  1,
		EntryPrice: models.Float(100),
		PlannedSL:  models.Float(105),
		PlannedTP:  models.Float(90),
		ExitPrice:  models.Float(92),
		MAEPrice:   models.Float(103),
		MFEPrice:   models.Float(91),
		PnL:        models.Float(-10),
	}

	ComputeMetrics(&tr, DefaultMultipliers())
	m := tr.Metrics

	assert.InDelta(t, 5*50.0, *m.Risk, 1e-9)
	assert.InDelta(t, 2.0, *m.PlannedRR, 1e-9)
	assert.InDelta(t, 1.6, *m.AchievedR, 1e-9)
	assert.InDelta(t, 0.6, *m.MAER, 1e-9)
	assert.InDelta(t, 60, *m.HeatPercent, 1e-9)
	assert.InDelta(t, 1.8, *m.MFER, 1e-9)
	assert.InDelta(t, 88.888, *m.ProfitCapturePercent, 0.01)
	assert.False(t, *m.Win)
}

func TestComputeMetricsPartialInputs(t *testing.T) {
	t.Run("no stop leaves risk metrics nil", func(t *testing.T) {
		tr := scenarioTrade(models.Long)
		tr.PlannedSL = nil

		ComputeMetrics(&tr, DefaultMultipliers())

		assert.NotNil(t, tr.Metrics.Win)
		assert.Nil(t, tr.Metrics.Risk)
		assert.Nil(t, tr.Metrics.AchievedR)
		assert.Nil(t, tr.Metrics.MFER)
		assert.Nil(t, tr.Metrics.ProfitCapturePercent)
	})

	t.Run("zero risk distance", func(t *testing.T) {
		tr := scenarioTrade(models.Long)
		tr.PlannedSL = models.Float(100)

		ComputeMetrics(&tr, DefaultMultipliers())

		assert.InDelta(t, 0, *tr.Metrics.Risk, 1e-9)
		assert.InDelta(t, 0, *tr.Metrics.PlannedRR, 1e-9)
		assert.Nil(t, tr.Metrics.AchievedR)
		assert.Nil(t, tr.Metrics.MAER)
		assert.Nil(t, tr.Metrics.MFER)
		require.NotNil(t, tr.Metrics.ProfitCapturePercent)
		assert.InDelta(t, 88.888, *tr.Metrics.ProfitCapturePercent, 0.01)
	})

	t.Run("adverse excursion never below zero", func(t *testing.T) {
		tr := scenarioTrade(models.Long)
		tr.MAEPrice = models.Float(101)

		ComputeMetrics(&tr, DefaultMultipliers())

		assert.Equal(t, 0.0, *tr.Metrics.MAER)
		assert.Equal(t, 0.0, *tr.Metrics.HeatPercent)
	})

	t.Run("favorable excursion may be negative", func(t *testing.T) {
		tr := scenarioTrade(models.Long)
		tr.MFEPrice = models.Float(99)

		ComputeMetrics(&tr, DefaultMultipliers())

		assert.InDelta(t, -0.2, *tr.Metrics.MFER, 1e-9)
		assert.Nil(t, tr.Metrics.ProfitCapturePercent)
	})

	t.Run("missing entry price computes nothing", func(t *testing.T) {
		tr := scenarioTrade(models.Long)
		tr.EntryPrice = nil

		ComputeMetrics(&tr, DefaultMultipliers())

		assert.Equal(t, models.Metrics{}, tr.Metrics)
	})
}

func TestMultiplierLookup(t *testing.T) {
	m := DefaultMultipliers()

	tests := map[string]float64{
		"NQ":            20,
		"es":            50,
		"MNQ":           2,
		"MESM4":         5,
		"CME_MINI:NQ1!": 20,
		"NYMEX:CL1!":    10,
		"ES 03-24":      50,
		"GCZ23":         10,
		"MNQH4":         2,
		"RTY":           DefaultMultiplier,
		"ZB":            DefaultMultiplier,
	}
	for market, want := range tests {
		assert.Equal(t, want, m.Lookup(market), "Lookup(%q)", market)
	}

	custom := m.With(map[string]float64{"rty": 50, "nq": 21})
	assert.Equal(t, 50.0, custom.Lookup("RTYU4"))
	assert.Equal(t, 21.0, custom.Lookup("NQ"))
	assert.Equal(t, 20.0, m.Lookup("NQ"), "With must not mutate the receiver")
}

func TestRootSymbol(t *testing.T) {
	for in, want := range map[string]string{
		"CME_MINI:MNQ1!": "MNQ",
		"NQ":             "NQ",
		"NQZ4":           "NQ",
		"MESU24":         "MES",
		"ES 12-24":       "ES",
	} {
		assert.Equal(t, want, RootSymbol(in), in)
	}
}

// Property: a Short trade mirrored around its entry price yields the same
// R-multiples as the Long original.
func TestProperty_MetricsDirectionSymmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("mirrored short matches long", prop.ForAll(
		func(entry, stop, exit, mae, mfe float64) bool {
			long := models.ParsedTrade{
				Market: "NQ", Direction: models.Long, Contracts: 1,
				EntryPrice: models.Float(entry),
				PlannedSL:  models.Float(entry - stop),
				ExitPrice:  models.Float(entry + exit),
				MAEPrice:   models.Float(entry - mae),
				MFEPrice:   models.Float(entry + mfe),
			}
			short := models.ParsedTrade{
				Market: "NQ", Direction: models.Short, Contracts: 1,
				EntryPrice: models.Float(entry),
				PlannedSL:  models.Float(entry + stop),
				ExitPrice:  models.Float(entry - exit),
				MAEPrice:   models.Float(entry + mae),
				MFEPrice:   models.Float(entry - mfe),
			}
			ComputeMetrics(&long, DefaultMultipliers())
			ComputeMetrics(&short, DefaultMultipliers())

			near := func(a, b *float64) bool {
				if a == nil || b == nil {
					return a == b
				}
				d := *a - *b
				return d < 1e-6 && d > -1e-6
			}
			return near(long.Metrics.Risk, short.Metrics.Risk) &&
				near(long.Metrics.AchievedR, short.Metrics.AchievedR) &&
				near(long.Metrics.MAER, short.Metrics.MAER) &&
				near(long.Metrics.MFER, short.Metrics.MFER) &&
				near(long.Metrics.ProfitCapturePercent, short.Metrics.ProfitCapturePercent)
		},
		gen.Float64Range(1000, 20000),
		gen.Float64Range(1, 50),
		gen.Float64Range(-50, 100),
		gen.Float64Range(0, 50),
		gen.Float64Range(1, 100),
	))

	properties.TestingRun(t)
}
