package importer

import (
	"math"

	"trade-journal/internal/models"
)

// Parser applies an import profile to CSV text.
type Parser struct {
	Profile     Profile
	Multipliers Multipliers
	Dates       DateParser
}

// NewParser creates a parser with the default multiplier table.
func NewParser(profile Profile) *Parser {
	return &Parser{
		Profile:     profile,
		Multipliers: DefaultMultipliers(),
	}
}

// Parse returns the trade candidates found in text. Rows missing a required
// field after coercion are dropped without error.
func (p *Parser) Parse(text string) []models.ParsedTrade {
	return p.ParseWithReport(text).Trades
}

// RowIssue describes a problem with one data row. Line is 1-based and counts
// non-blank lines, so the header is line 1.
type RowIssue struct {
	Line    int          `json:"line"`
	Field   models.Field `json:"field,omitempty"`
	Column  string       `json:"column,omitempty"`
	Value   string       `json:"value,omitempty"`
	Message string       `json:"message"`
	Dropped bool         `json:"dropped"`
}

// Report is the result of a parse with diagnostics for preview.
type Report struct {
	Headers      []string             `json:"headers"`
	Unmapped     []string             `json:"unmapped,omitempty"`
	Rows         int                  `json:"rows"`
	Trades       []models.ParsedTrade `json:"trades"`
	Issues       []RowIssue           `json:"issues,omitempty"`
	MissingField []models.Field       `json:"missingFields,omitempty"`
}

// Dropped counts rows that produced no candidate.
func (r Report) Dropped() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Dropped {
			n++
		}
	}
	return n
}

var requiredFields = []models.Field{
	models.FieldMarket,
	models.FieldDirection,
	models.FieldEntryDateTime,
	models.FieldEntryPrice,
	models.FieldContracts,
}

// ParseWithReport parses text like Parse and also records rows that were
// dropped and cells that degraded to a default value.
func (p *Parser) ParseWithReport(text string) Report {
	rows := Tokenize(text, p.Profile.Delimiter)
	report := Report{Trades: []models.ParsedTrade{}}
	if len(rows) == 0 {
		return report
	}

	header := rows[0]
	report.Headers = header
	index := p.columnIndex(header)
	for _, h := range header {
		if _, ok := p.Profile.ColumnMappings[h]; !ok {
			report.Unmapped = append(report.Unmapped, h)
		}
	}
	mapped := make(map[models.Field]bool, len(index))
	for _, f := range index {
		mapped[f] = true
	}
	for _, f := range requiredFields {
		if !mapped[f] {
			report.MissingField = append(report.MissingField, f)
		}
	}

	multipliers := p.Multipliers
	if multipliers == nil {
		multipliers = DefaultMultipliers()
	}

	for i, row := range rows[1:] {
		line := i + 2
		report.Rows++
		candidate, present, issues := p.parseRow(header, row, index, line)
		report.Issues = append(report.Issues, issues...)

		if missing := missingRequired(candidate, present); missing != "" {
			report.Issues = append(report.Issues, RowIssue{
				Line:    line,
				Field:   missing,
				Message: "missing required field",
				Dropped: true,
			})
			continue
		}
		ComputeMetrics(&candidate, multipliers)
		report.Trades = append(report.Trades, candidate)
	}
	return report
}

// columnIndex maps header positions to fields. Only verbatim header matches
// count. When two columns feed the same field the rightmost one wins.
func (p *Parser) columnIndex(header []string) map[int]models.Field {
	byField := make(map[models.Field]int)
	for i, h := range header {
		field, ok := p.Profile.ColumnMappings[h]
		if !ok || field == "" {
			continue
		}
		byField[field] = i
	}
	index := make(map[int]models.Field, len(byField))
	for field, i := range byField {
		index[i] = field
	}
	return index
}

// parseRow coerces the mapped cells of one row. Empty or missing cells leave
// their field absent.
func (p *Parser) parseRow(header, row []string, index map[int]models.Field, line int) (models.ParsedTrade, map[models.Field]bool, []RowIssue) {
	var t models.ParsedTrade
	var issues []RowIssue
	present := make(map[models.Field]bool)

	for col := 0; col < len(row); col++ {
		field, ok := index[col]
		if !ok || row[col] == "" {
			continue
		}
		raw := row[col]
		present[field] = true

		switch field.Kind() {
		case models.KindNumber:
			v, ok := parseNumber(raw)
			if !ok {
				issues = append(issues, RowIssue{Line: line, Field: field, Column: header[col], Value: raw, Message: "not a number, using 0"})
			}
			assignNumber(&t, field, v)
		case models.KindDirection:
			t.Direction = ParseDirection(raw)
		case models.KindDate:
			ts, ok := p.Dates.parse(raw, p.Profile.DateFormat)
			if !ok {
				ts = p.Dates.now()
				issues = append(issues, RowIssue{Line: line, Field: field, Column: header[col], Value: raw, Message: "unrecognized date, using current time"})
			}
			ts = ts.UTC()
			if field == models.FieldExitTime {
				t.ExitTime = &ts
			} else {
				t.EntryDateTime = ts
			}
		default:
			switch field {
			case models.FieldMarket:
				t.Market = raw
			case models.FieldSetup:
				t.Setup = raw
			case models.FieldNotesRaw:
				t.NotesRaw = raw
			}
		}
	}
	return t, present, issues
}

func assignNumber(t *models.ParsedTrade, field models.Field, v float64) {
	switch field {
	case models.FieldEntryPrice:
		t.EntryPrice = models.Float(v)
	case models.FieldExitPrice:
		t.ExitPrice = models.Float(v)
	case models.FieldContracts:
		t.Contracts = int(math.Round(v))
	case models.FieldPnL:
		t.PnL = models.Float(v)
	case models.FieldDurationSeconds:
		t.DurationSeconds = models.Float(v)
	case models.FieldPlannedSL:
		t.PlannedSL = models.Float(v)
	case models.FieldPlannedTP:
		t.PlannedTP = models.Float(v)
	case models.FieldMAEPrice:
		t.MAEPrice = models.Float(v)
	case models.FieldMFEPrice:
		t.MFEPrice = models.Float(v)
	}
}

// missingRequired returns the first required field the candidate lacks.
func missingRequired(t models.ParsedTrade, present map[models.Field]bool) models.Field {
	switch {
	case t.Market == "":
		return models.FieldMarket
	case !present[models.FieldDirection] || t.Direction == "":
		return models.FieldDirection
	case !present[models.FieldEntryDateTime] || t.EntryDateTime.IsZero():
		return models.FieldEntryDateTime
	case t.EntryPrice == nil:
		return models.FieldEntryPrice
	case t.Contracts <= 0:
		return models.FieldContracts
	}
	return ""
}
