package models

// Field is a canonical trade field name used as the target of an import
// profile's column mapping.
type Field string

const (
	FieldMarket          Field = "market"
	FieldDirection       Field = "direction"
	FieldEntryDateTime   Field = "entryDateTime"
	FieldExitTime        Field = "exitTime"
	FieldEntryPrice      Field = "entryPrice"
	FieldExitPrice       Field = "exitPrice"
	FieldContracts       Field = "contracts"
	FieldPnL             Field = "pnl"
	FieldDurationSeconds Field = "durationSeconds"
	FieldSetup           Field = "setup"
	FieldNotesRaw        Field = "notesRaw"
	FieldPlannedSL       Field = "plannedSL"
	FieldPlannedTP       Field = "plannedTP"
	FieldMAEPrice        Field = "maePrice"
	FieldMFEPrice        Field = "mfePrice"
)

// Fields lists the canonical vocabulary in display order.
var Fields = []Field{
	FieldMarket,
	FieldDirection,
	FieldEntryDateTime,
	FieldExitTime,
	FieldEntryPrice,
	FieldExitPrice,
	FieldContracts,
	FieldPnL,
	FieldDurationSeconds,
	FieldSetup,
	FieldNotesRaw,
	FieldPlannedSL,
	FieldPlannedTP,
	FieldMAEPrice,
	FieldMFEPrice,
}

// Kind describes how a raw cell is coerced for a field.
type Kind int

const (
	KindText Kind = iota
	KindNumber
	KindDirection
	KindDate
)

// Kind returns the coercion kind for f. Unknown fields are text.
func (f Field) Kind() Kind {
	switch f {
	case FieldEntryPrice, FieldExitPrice, FieldContracts, FieldPnL,
		FieldDurationSeconds, FieldPlannedSL, FieldPlannedTP, FieldMAEPrice, FieldMFEPrice:
		return KindNumber
	case FieldDirection:
		return KindDirection
	case FieldEntryDateTime, FieldExitTime:
		return KindDate
	default:
		return KindText
	}
}

// Valid reports whether f belongs to the canonical vocabulary.
func (f Field) Valid() bool {
	for _, known := range Fields {
		if f == known {
			return true
		}
	}
	return false
}
