package models

import "time"

// Direction represents the side of a futures position.
type Direction string

const (
	Long  Direction = "Long"
	Short Direction = "Short"
)

// Sign returns +1 for Long and -1 for Short.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

// TradeStatus represents the lifecycle state of a journaled trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
)

// Trade represents a journaled trade as persisted by the trade store.
type Trade struct {
	ID            string      `json:"id"`
	AccountID     string      `json:"accountId,omitempty"`
	Market        string      `json:"market"`
	Direction     Direction   `json:"direction"`
	EntryDateTime time.Time   `json:"entryDateTime"`
	ExitTime      *time.Time  `json:"exitTime,omitempty"`
	EntryPrice    float64     `json:"entryPrice"`
	ExitPrice     *float64    `json:"exitPrice,omitempty"`
	PnL           *float64    `json:"pnl,omitempty"`
	Contracts     int         `json:"contracts"`
	Status        TradeStatus `json:"status"`

	DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	PlannedSL       *float64 `json:"plannedSL,omitempty"`
	PlannedTP       *float64 `json:"plannedTP,omitempty"`
	MAEPrice        *float64 `json:"maePrice,omitempty"`
	MFEPrice        *float64 `json:"mfePrice,omitempty"`
	Metrics         Metrics  `json:"metrics"`

	// Journaling fields. Imports never touch these on merge.
	Setup     string    `json:"setup,omitempty"`
	NotesRaw  string    `json:"notesRaw,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Mistakes  []string  `json:"mistakes,omitempty"`
	Images    []string  `json:"images,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Metrics holds the risk and performance figures derived from a trade's
// planned levels and excursions. Nil means "not computable".
type Metrics struct {
	Risk                 *float64 `json:"risk,omitempty"`
	PlannedRR            *float64 `json:"plannedRR,omitempty"`
	AchievedR            *float64 `json:"achievedR,omitempty"`
	Win                  *bool    `json:"win,omitempty"`
	MAER                 *float64 `json:"maeR,omitempty"`
	MFER                 *float64 `json:"mfeR,omitempty"`
	HeatPercent          *float64 `json:"heatPercent,omitempty"`
	ProfitCapturePercent *float64 `json:"profitCapturePercent,omitempty"`
}

// ParsedTrade is a trade candidate produced by the CSV parser that has not
// been persisted yet.
type ParsedTrade struct {
	Market        string    `json:"market"`
	Direction     Direction `json:"direction"`
	Contracts     int       `json:"contracts"`
	EntryPrice    *float64  `json:"entryPrice,omitempty"`
	EntryDateTime time.Time `json:"entryDateTime"`

	ExitPrice       *float64   `json:"exitPrice,omitempty"`
	PnL             *float64   `json:"pnl,omitempty"`
	ExitTime        *time.Time `json:"exitTime,omitempty"`
	DurationSeconds *float64   `json:"durationSeconds,omitempty"`
	Setup           string     `json:"setup,omitempty"`
	NotesRaw        string     `json:"notesRaw,omitempty"`
	PlannedSL       *float64   `json:"plannedSL,omitempty"`
	PlannedTP       *float64   `json:"plannedTP,omitempty"`
	MAEPrice        *float64   `json:"maePrice,omitempty"`
	MFEPrice        *float64   `json:"mfePrice,omitempty"`

	Metrics   Metrics     `json:"metrics"`
	Tags      []string    `json:"tags,omitempty"`
	Status    TradeStatus `json:"status,omitempty"`
	AccountID string      `json:"accountId,omitempty"`
}

// TradeUpdate is a partial update of a trade's execution facts.
// Nil pointers leave the stored value unchanged.
type TradeUpdate struct {
	EntryPrice    *float64
	ExitPrice     *float64
	EntryDateTime *time.Time
	ExitTime      *time.Time
	PnL           *float64
	Contracts     *int
}

// Apply copies the non-nil fields of u onto t.
func (u TradeUpdate) Apply(t *Trade) {
	if u.EntryPrice != nil {
		t.EntryPrice = *u.EntryPrice
	}
	if u.ExitPrice != nil {
		v := *u.ExitPrice
		t.ExitPrice = &v
	}
	if u.EntryDateTime != nil {
		t.EntryDateTime = *u.EntryDateTime
	}
	if u.ExitTime != nil {
		v := *u.ExitTime
		t.ExitTime = &v
	}
	if u.PnL != nil {
		v := *u.PnL
		t.PnL = &v
	}
	if u.Contracts != nil {
		t.Contracts = *u.Contracts
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// FromCandidate builds a stored trade from a parsed candidate.
func FromCandidate(id string, c ParsedTrade, now time.Time) Trade {
	t := Trade{
		ID:              id,
		AccountID:       c.AccountID,
		Market:          c.Market,
		Direction:       c.Direction,
		EntryDateTime:   c.EntryDateTime,
		ExitTime:        c.ExitTime,
		ExitPrice:       c.ExitPrice,
		PnL:             c.PnL,
		Contracts:       c.Contracts,
		Status:          c.Status,
		DurationSeconds: c.DurationSeconds,
		PlannedSL:       c.PlannedSL,
		PlannedTP:       c.PlannedTP,
		MAEPrice:        c.MAEPrice,
		MFEPrice:        c.MFEPrice,
		Metrics:         c.Metrics,
		Setup:           c.Setup,
		NotesRaw:        c.NotesRaw,
		Tags:            append([]string(nil), c.Tags...),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if c.EntryPrice != nil {
		t.EntryPrice = *c.EntryPrice
	}
	if t.Status == "" {
		t.Status = StatusClosed
	}
	return t
}
