package importer

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trade-journal/internal/models"
)

var numberStripper = strings.NewReplacer("$", "", "€", "", "£", "", ",", "")

// ParseNumber converts a numeric cell, tolerating currency symbols, thousands
// separators and whitespace. Unparseable input yields 0.
func ParseNumber(raw string) float64 {
	v, ok := parseNumber(raw)
	if !ok {
		return 0
	}
	return v
}

func parseNumber(raw string) (float64, bool) {
	cleaned := strings.Join(strings.Fields(numberStripper.Replace(raw)), "")
	if cleaned == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	v := d.InexactFloat64()
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// ParseDirection maps broker side markers onto a Direction. Unknown values
// default to Long. "0" means Short while "1" means Long; exports that encode
// side as a boolean flag depend on this.
func ParseDirection(raw string) models.Direction {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy", "b", "1":
		return models.Long
	case "short", "sell", "s", "-1", "0":
		return models.Short
	}
	return models.Long
}

var (
	dateSeparators = regexp.MustCompile(`[/\-. T,:]+`)
	meridiemSuffix = regexp.MustCompile(`(?i)(am|pm)\s*$`)
)

// isoLayouts are tried when a value carries the ISO "T" marker.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// DateParser coerces date cells using a profile's format token string.
// The zero value parses in the local time zone and falls back to time.Now.
type DateParser struct {
	Location *time.Location
	Now      func() time.Time
}

// ParseDateString parses raw with format using the local time zone.
func ParseDateString(raw, format string) time.Time {
	return DateParser{}.Parse(raw, format)
}

// Parse returns raw as a UTC instant. Values that cannot be resolved fall
// back to the current time.
func (p DateParser) Parse(raw, format string) time.Time {
	t, ok := p.parse(raw, format)
	if !ok {
		return p.now().UTC()
	}
	return t.UTC()
}

func (p DateParser) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	return time.Local
}

func (p DateParser) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p DateParser) parse(raw, format string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if strings.Contains(raw, "T") {
		for _, layout := range isoLayouts {
			if t, err := time.ParseInLocation(layout, raw, p.location()); err == nil {
				return t, true
			}
		}
	}

	var nums []int
	fourDigitFirst := false
	for _, tok := range dateSeparators.Split(raw, -1) {
		tok = strings.TrimRight(tok, "AaPpMm")
		if n, err := strconv.Atoi(tok); err == nil {
			if len(nums) == 0 {
				fourDigitFirst = len(tok) == 4
			}
			nums = append(nums, n)
		}
	}
	if len(nums) < 3 {
		return time.Time{}, false
	}

	year, month, day := orderDateParts(nums, format, fourDigitFirst)
	if year < 100 {
		year += 2000
	}

	clock := [3]int{}
	for i := 0; i < 3 && 3+i < len(nums); i++ {
		clock[i] = nums[3+i]
	}
	hour, minute, second := clock[0], clock[1], clock[2]

	if m := meridiemSuffix.FindStringSubmatch(raw); m != nil {
		switch strings.ToLower(m[1]) {
		case "pm":
			if hour < 12 {
				hour += 12
			}
		case "am":
			if hour == 12 {
				hour = 0
			}
		}
	}

	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, p.location())
	if t.Day() != day {
		// day overflowed the month, e.g. 31 April
		return time.Time{}, false
	}
	return t, true
}

// orderDateParts assigns the first three numeric tokens to year, month and
// day. When format names all of y, m and d their first positions decide the
// slots: the year token sits in the y slot, while the month is read from the
// d slot and the day from the m slot, so "DD/MM/YYYY" reads 05/03/2024 as
// 3 May and "MM/DD/YYYY" reads it as 5 March. Journals already imported
// depend on that reading. Without all three letters a four-digit first token
// means Y-M-D and anything else is read as US M-D-Y.
func orderDateParts(nums []int, format string, fourDigitFirst bool) (year, month, day int) {
	f := strings.ToLower(format)
	yi, mi, di := strings.IndexByte(f, 'y'), strings.IndexByte(f, 'm'), strings.IndexByte(f, 'd')

	var order []byte
	if yi >= 0 && mi >= 0 && di >= 0 {
		parts := []struct {
			letter byte
			pos    int
		}{{'y', yi}, {'m', mi}, {'d', di}}
		sort.SliceStable(parts, func(i, j int) bool { return parts[i].pos < parts[j].pos })
		for _, part := range parts {
			switch part.letter {
			case 'm':
				order = append(order, 'd')
			case 'd':
				order = append(order, 'm')
			default:
				order = append(order, 'y')
			}
		}
	} else if fourDigitFirst {
		order = []byte{'y', 'm', 'd'}
	} else {
		order = []byte{'m', 'd', 'y'}
	}

	for i, letter := range order {
		switch letter {
		case 'y':
			year = nums[i]
		case 'm':
			month = nums[i]
		case 'd':
			day = nums[i]
		}
	}
	return year, month, day
}
