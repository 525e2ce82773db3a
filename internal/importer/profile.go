package importer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// CustomPrefix namespaces user-created profile keys.
const CustomPrefix = "custom:"

// Profile is a named parsing configuration for one broker's export shape.
type Profile struct {
	Key        string
	Name       string
	Delimiter  rune
	DateFormat string
	// ColumnMappings maps a verbatim CSV header to a canonical field.
	// An empty value means the column is ignored.
	ColumnMappings map[string]models.Field
	BuiltIn        bool
}

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	mappings := make(map[string]models.Field, len(p.ColumnMappings))
	for k, v := range p.ColumnMappings {
		mappings[k] = v
	}
	p.ColumnMappings = mappings
	return p
}

// IsCustom reports whether the profile was authored by the user.
func (p Profile) IsCustom() bool {
	return strings.HasPrefix(p.Key, CustomPrefix)
}

// Validate checks the delimiter, that every mapped field is canonical and
// that no field is fed by more than one column.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.NewProfileError(p.Key, "name", "name is required")
	}
	if _, err := ParseDelimiter(DelimiterName(p.Delimiter)); err != nil {
		return apperrors.NewProfileError(p.Key, "delimiter", err.Error())
	}

	seen := make(map[models.Field]string)
	headers := make([]string, 0, len(p.ColumnMappings))
	for h := range p.ColumnMappings {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	for _, h := range headers {
		field := p.ColumnMappings[h]
		if field == "" {
			continue
		}
		if !field.Valid() {
			return apperrors.NewProfileError(p.Key, h, fmt.Sprintf("unknown field %q", field))
		}
		if prev, ok := seen[field]; ok {
			return apperrors.NewProfileError(p.Key, h, fmt.Sprintf("field %q already mapped from column %q", field, prev))
		}
		seen[field] = h
	}
	return nil
}

// NewCustomProfile creates a user profile with a generated key.
func NewCustomProfile(name string, delim rune, dateFormat string, mappings map[string]models.Field) Profile {
	p := Profile{
		Key:        CustomPrefix + uuid.NewString(),
		Name:       name,
		Delimiter:  delim,
		DateFormat: dateFormat,
	}
	p.ColumnMappings = make(map[string]models.Field, len(mappings))
	for k, v := range mappings {
		p.ColumnMappings[k] = v
	}
	return p
}

// Built-in exports write US month-first or ISO dates, which the order guess
// reads without a format.
var builtInProfiles = []Profile{
	{
		Key:       "tradovate",
		Name:      "Tradovate",
		Delimiter: ',',
		BuiltIn:   true,
		ColumnMappings: map[string]models.Field{
			"Contract":   models.FieldMarket,
			"B/S":        models.FieldDirection,
			"filledQty":  models.FieldContracts,
			"avgPrice":   models.FieldEntryPrice,
			"Fill Time":  models.FieldEntryDateTime,
			"Text":       models.FieldNotesRaw,
			"orderId":    "",
			"Account":    "",
			"Status":     "",
			"Stop Price": "",
		},
	},
	{
		Key:       "ninjatrader",
		Name:      "NinjaTrader",
		Delimiter: ',',
		BuiltIn:   true,
		ColumnMappings: map[string]models.Field{
			"Instrument":      models.FieldMarket,
			"Market pos.":     models.FieldDirection,
			"Qty":             models.FieldContracts,
			"Entry price":     models.FieldEntryPrice,
			"Exit price":      models.FieldExitPrice,
			"Entry time":      models.FieldEntryDateTime,
			"Exit time":       models.FieldExitTime,
			"Profit":          models.FieldPnL,
			"Strategy":        models.FieldSetup,
			"Entry name":      models.FieldNotesRaw,
			"Trade number":    "",
			"Account":         "",
			"Commission":      "",
			"Cum. net profit": "",
			"MAE":             "",
			"MFE":             "",
		},
	},
	{
		Key:       "tradingview",
		Name:      "TradingView",
		Delimiter: ',',
		BuiltIn:   true,
		ColumnMappings: map[string]models.Field{
			"Symbol":       models.FieldMarket,
			"Side":         models.FieldDirection,
			"Qty":          models.FieldContracts,
			"Fill Price":   models.FieldEntryPrice,
			"Placing Time": models.FieldEntryDateTime,
			"Closing Time": models.FieldExitTime,
			"Stop Price":   "",
			"Limit Price":  "",
			"Order ID":     "",
			"Commission":   "",
		},
	},
}

// BuiltInProfiles returns copies of the shipped broker profiles.
func BuiltInProfiles() []Profile {
	out := make([]Profile, 0, len(builtInProfiles))
	for _, p := range builtInProfiles {
		out = append(out, p.Clone())
	}
	return out
}

// BuiltInProfile looks up a shipped profile by key.
func BuiltInProfile(key string) (Profile, bool) {
	for _, p := range builtInProfiles {
		if p.Key == key {
			return p.Clone(), true
		}
	}
	return Profile{}, false
}

// ProfileSource provides user-created profiles, keyed without the custom:
// prefix.
type ProfileSource interface {
	GetProfile(ctx context.Context, id string) (*Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
}

// Registry resolves profile keys against the built-ins and an optional
// custom profile source.
type Registry struct {
	custom ProfileSource
}

// NewRegistry creates a registry. custom may be nil.
func NewRegistry(custom ProfileSource) *Registry {
	return &Registry{custom: custom}
}

// Resolve returns the profile for key ("tradovate" or "custom:<id>").
func (r *Registry) Resolve(ctx context.Context, key string) (Profile, error) {
	if p, ok := BuiltInProfile(strings.ToLower(key)); ok {
		return p, nil
	}
	if strings.HasPrefix(key, CustomPrefix) && r.custom != nil {
		p, err := r.custom.GetProfile(ctx, strings.TrimPrefix(key, CustomPrefix))
		if err != nil {
			return Profile{}, apperrors.Wrapf(err, "resolving profile %s", key)
		}
		return p.Clone(), nil
	}
	return Profile{}, fmt.Errorf("%w: %s", apperrors.ErrProfileNotFound, key)
}

// List returns built-ins followed by custom profiles sorted by name.
func (r *Registry) List(ctx context.Context) ([]Profile, error) {
	profiles := BuiltInProfiles()
	if r.custom == nil {
		return profiles, nil
	}
	custom, err := r.custom.ListProfiles(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "listing custom profiles")
	}
	sort.SliceStable(custom, func(i, j int) bool { return custom[i].Name < custom[j].Name })
	return append(profiles, custom...), nil
}

// Detect reports whether header carries a column for every required field
// under p's mappings.
func (p Profile) Detect(header []string) bool {
	mapped := make(map[models.Field]bool)
	for _, h := range header {
		if f := p.ColumnMappings[h]; f != "" {
			mapped[f] = true
		}
	}
	for _, f := range requiredFields {
		if !mapped[f] {
			return false
		}
	}
	return true
}

// Detect returns every known profile that can parse a file with header.
func (r *Registry) Detect(ctx context.Context, header []string) ([]Profile, error) {
	profiles, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var matches []Profile
	for _, p := range profiles {
		if p.Detect(header) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// profileDocument is the on-disk YAML shape of a custom profile.
type profileDocument struct {
	Name       string            `yaml:"name"`
	Delimiter  string            `yaml:"delimiter"`
	DateFormat string            `yaml:"date_format"`
	Columns    map[string]string `yaml:"columns"`
}

// LoadProfileYAML decodes a custom profile definition and assigns it a new
// key. A missing delimiter defaults to a comma.
func LoadProfileYAML(data []byte) (Profile, error) {
	var doc profileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Profile{}, apperrors.Wrap(err, "decoding profile yaml")
	}
	if doc.Delimiter == "" {
		doc.Delimiter = ","
	}
	delim, err := ParseDelimiter(doc.Delimiter)
	if err != nil {
		return Profile{}, apperrors.NewProfileError(doc.Name, "delimiter", err.Error())
	}

	mappings := make(map[string]models.Field, len(doc.Columns))
	for header, field := range doc.Columns {
		mappings[header] = models.Field(field)
	}
	p := NewCustomProfile(doc.Name, delim, doc.DateFormat, mappings)
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// MarshalProfileYAML encodes p in the format LoadProfileYAML reads.
func MarshalProfileYAML(p Profile) ([]byte, error) {
	doc := profileDocument{
		Name:       p.Name,
		Delimiter:  DelimiterName(p.Delimiter),
		DateFormat: p.DateFormat,
		Columns:    make(map[string]string, len(p.ColumnMappings)),
	}
	for header, field := range p.ColumnMappings {
		doc.Columns[header] = string(field)
	}
	return yaml.Marshal(doc)
}
