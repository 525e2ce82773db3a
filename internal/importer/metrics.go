package importer

import (
	"math"
	"regexp"
	"strings"

	"trade-journal/internal/models"
)

// DefaultMultiplier applies to markets missing from the multiplier table.
const DefaultMultiplier = 20.0

// Multipliers maps a market root symbol to its dollar value per point per
// contract.
type Multipliers map[string]float64

// DefaultMultipliers returns the shipped multiplier table.
func DefaultMultipliers() Multipliers {
	return Multipliers{
		"NQ":  20,
		"ES":  50,
		"MNQ": 2,
		"MES": 5,
		"CL":  10,
		"GC":  10,
	}
}

// With returns a copy of m with overrides applied on top.
func (m Multipliers) With(overrides map[string]float64) Multipliers {
	out := make(Multipliers, len(m)+len(overrides))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range overrides {
		out[strings.ToUpper(k)] = v
	}
	return out
}

var contractMonth = regexp.MustCompile(`^([A-Z0-9]+?)[FGHJKMNQUVXZ]\d{1,2}$`)

// Lookup resolves the multiplier for market. The exact symbol is tried first,
// then its root: "CME_MINI:NQ1!" -> NQ, "ES 03-24" -> ES, "MNQH4" -> MNQ.
func (m Multipliers) Lookup(market string) float64 {
	symbol := strings.ToUpper(strings.TrimSpace(market))
	if v, ok := m[symbol]; ok {
		return v
	}
	root := RootSymbol(symbol)
	if v, ok := m[root]; ok {
		return v
	}
	return DefaultMultiplier
}

// RootSymbol strips exchange prefixes, continuous-contract suffixes and
// contract month codes from a futures symbol.
func RootSymbol(market string) string {
	s := strings.ToUpper(strings.TrimSpace(market))
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	if strings.HasSuffix(s, "!") {
		return strings.TrimRight(strings.TrimSuffix(s, "!"), "0123456789")
	}
	if m := contractMonth.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// ComputeMetrics fills the derived risk fields of t. It needs an entry
// price, contracts and a market; otherwise t is left unchanged.
func ComputeMetrics(t *models.ParsedTrade, multipliers Multipliers) {
	if t.EntryPrice == nil || t.Contracts == 0 || t.Market == "" {
		return
	}
	entry := *t.EntryPrice
	sign := t.Direction.Sign()
	multiplier := multipliers.Lookup(t.Market)

	if t.PnL != nil {
		win := *t.PnL > 0
		t.Metrics.Win = &win
	}

	if t.PlannedSL == nil {
		return
	}
	riskPoints := math.Abs(entry - *t.PlannedSL)
	t.Metrics.Risk = models.Float(riskPoints * float64(t.Contracts) * multiplier)

	if t.PlannedTP != nil {
		rr := 0.0
		if riskPoints != 0 {
			rr = math.Abs(*t.PlannedTP-entry) / riskPoints
		}
		t.Metrics.PlannedRR = &rr
	}

	if t.ExitPrice != nil && riskPoints > 0 {
		realized := (*t.ExitPrice - entry) * sign
		t.Metrics.AchievedR = models.Float(realized / riskPoints)
	}

	if t.MAEPrice != nil && riskPoints > 0 {
		adverse := (entry - *t.MAEPrice) * sign
		t.Metrics.MAER = models.Float(math.Max(0, adverse/riskPoints))
		t.Metrics.HeatPercent = models.Float(math.Max(0, adverse/riskPoints*100))
	}

	if t.MFEPrice == nil {
		return
	}
	favorable := (*t.MFEPrice - entry) * sign
	if riskPoints > 0 {
		t.Metrics.MFER = models.Float(favorable / riskPoints)
	}
	// capture needs a stop but not a non-zero stop distance
	if t.ExitPrice != nil && favorable > 0 {
		realized := (*t.ExitPrice - entry) * sign
		t.Metrics.ProfitCapturePercent = models.Float(realized / favorable * 100)
	}
}
