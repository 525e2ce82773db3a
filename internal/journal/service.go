// Package journal wires the CSV importer to the trade store.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/importer"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
	"trade-journal/internal/store"
)

// Service runs imports against a trade store.
type Service struct {
	trades      store.TradeStore
	registry    *importer.Registry
	multipliers importer.Multipliers
	dates       importer.DateParser
	window      time.Duration
	importedTag string
	logger      zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMultipliers replaces the contract multiplier table.
func WithMultipliers(m importer.Multipliers) Option {
	return func(s *Service) { s.multipliers = m }
}

// WithLocation sets the zone for dates without an offset.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.dates.Location = loc }
}

// WithClock sets the time source used when a date cell cannot be parsed.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.dates.Now = now }
}

// WithMatchWindow sets the reconcile match window.
func WithMatchWindow(d time.Duration) Option {
	return func(s *Service) { s.window = d }
}

// WithImportedTag sets the tag given to created trades.
func WithImportedTag(tag string) Option {
	return func(s *Service) { s.importedTag = tag }
}

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service. profiles may be nil when only built-in
// profiles are needed.
func NewService(trades store.TradeStore, profiles importer.ProfileSource, opts ...Option) *Service {
	s := &Service{
		trades:      trades,
		registry:    importer.NewRegistry(profiles),
		multipliers: importer.DefaultMultipliers(),
		window:      importer.DefaultMatchWindow,
		importedTag: importer.ImportedTag,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Profiles returns the registry used to resolve profile keys.
func (s *Service) Profiles() *importer.Registry {
	return s.registry
}

// Request describes one import run.
type Request struct {
	Text       string
	ProfileKey string
	AccountID  string
	Source     string // file name, for logging
	DryRun     bool
	Strict     bool
}

// Summary reports what an import found and wrote.
type Summary struct {
	Profile string          `json:"profile"`
	Account string          `json:"account,omitempty"`
	Found   int             `json:"found"`
	Dropped int             `json:"dropped"`
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	DryRun  bool            `json:"dryRun"`
	Report  importer.Report `json:"report"`
}

// Preview parses text with the named profile without touching the store.
func (s *Service) Preview(ctx context.Context, text, profileKey string) (importer.Report, error) {
	profile, err := s.registry.Resolve(ctx, profileKey)
	if err != nil {
		return importer.Report{}, err
	}
	return s.parser(profile).ParseWithReport(text), nil
}

// Import parses req.Text and reconciles the candidates against the
// account's existing trades. With DryRun the writes go to a scratch copy
// of the account so the counts are exact but nothing is persisted. When
// reconcile fails part-way the summary carries the partial counts.
func (s *Service) Import(ctx context.Context, req Request) (Summary, error) {
	logger := logging.WithAccount(logging.WithProfile(logging.FromContext(ctx, s.logger), req.ProfileKey), req.AccountID)
	summary := Summary{Profile: req.ProfileKey, Account: req.AccountID, DryRun: req.DryRun}

	if s.trades == nil {
		return summary, apperrors.ErrStoreUnavailable
	}

	report, err := s.Preview(ctx, req.Text, req.ProfileKey)
	if err != nil {
		return summary, err
	}
	summary.Report = report
	summary.Found = len(report.Trades)
	summary.Dropped = report.Dropped()
	logging.LogImport(logger, req.Source, req.ProfileKey, report.Rows, summary.Found, summary.Dropped)

	if req.Strict && len(report.Issues) > 0 {
		return summary, fmt.Errorf("%w: %d row issue(s)", apperrors.ErrImportRejected, len(report.Issues))
	}
	if summary.Found == 0 {
		return summary, nil
	}

	existing, err := s.trades.List(ctx, store.TradeFilter{AccountID: req.AccountID})
	if err != nil {
		return summary, apperrors.Wrap(err, "listing existing trades")
	}

	candidates := make([]models.ParsedTrade, len(report.Trades))
	for i, c := range report.Trades {
		c.AccountID = req.AccountID
		candidates[i] = c
	}

	var writer importer.TradeWriter = s.trades
	if req.DryRun {
		scratch := store.NewMemoryStore()
		scratch.Seed(existing...)
		writer = scratch
	}

	reconciler := importer.NewReconciler(writer,
		importer.WithMatchWindow(s.window),
		importer.WithImportedTag(s.importedTag),
		importer.WithLogger(logger),
	)

	start := time.Now()
	result, err := reconciler.Reconcile(ctx, candidates, existing)
	summary.Created = result.Created
	summary.Updated = result.Updated
	logging.LogReconcile(logger, req.AccountID, result.Created, result.Updated, time.Since(start), err)
	return summary, err
}

func (s *Service) parser(profile importer.Profile) *importer.Parser {
	p := importer.NewParser(profile)
	p.Multipliers = s.multipliers
	p.Dates = s.dates
	return p
}
