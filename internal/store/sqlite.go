// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	apperrors "trade-journal/internal/errors"
	"trade-journal/internal/importer"
	"trade-journal/internal/models"
)

// SQLiteStore implements TradeStore and ProfileStore using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	now   func() time.Time
	retry RetryConfig
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:    db,
		now:   time.Now,
		retry: DefaultRetryConfig(),
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Journaled trades
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL DEFAULT '',
		market TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_time DATETIME NOT NULL,
		exit_time DATETIME,
		entry_price REAL NOT NULL,
		exit_price REAL,
		pnl REAL,
		contracts INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'CLOSED',
		duration_seconds REAL,
		planned_sl REAL,
		planned_tp REAL,
		mae_price REAL,
		mfe_price REAL,
		metrics TEXT,
		setup TEXT,
		notes_raw TEXT,
		tags TEXT,
		mistakes TEXT,
		images TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- User-created import profiles
	CREATE TABLE IF NOT EXISTS import_profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		delimiter TEXT NOT NULL,
		date_format TEXT,
		column_mappings TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trades_account ON trades(account_id);
	CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market);
	CREATE INDEX IF NOT EXISTS idx_trades_entry_time ON trades(entry_time);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Trades Methods
// ============================================================================

const tradeColumns = "id, account_id, market, direction, entry_time, exit_time, entry_price, exit_price, pnl, contracts, status, duration_seconds, planned_sl, planned_tp, mae_price, mfe_price, metrics, setup, notes_raw, tags, mistakes, images, created_at, updated_at"

// Create stores a new trade built from candidate and returns it with its
// generated id.
func (s *SQLiteStore) Create(ctx context.Context, candidate models.ParsedTrade) (models.Trade, error) {
	t := models.FromCandidate(uuid.NewString(), candidate, s.now().UTC())

	metrics, _ := json.Marshal(t.Metrics)
	tags, _ := json.Marshal(t.Tags)
	mistakes, _ := json.Marshal(t.Mistakes)
	images, _ := json.Marshal(t.Images)

	err := retry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO trades (`+tradeColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.AccountID, t.Market, t.Direction, t.EntryDateTime.UTC(), utcPtr(t.ExitTime), t.EntryPrice, t.ExitPrice, t.PnL, t.Contracts, t.Status, t.DurationSeconds, t.PlannedSL, t.PlannedTP, t.MAEPrice, t.MFEPrice, string(metrics), t.Setup, t.NotesRaw, string(tags), string(mistakes), string(images), t.CreatedAt, t.UpdatedAt)
		return err
	})
	if err != nil {
		return models.Trade{}, fmt.Errorf("failed to create trade: %w", err)
	}
	return t, nil
}

// List retrieves trades ordered by entry time.
func (s *SQLiteStore) List(ctx context.Context, filter TradeFilter) ([]models.Trade, error) {
	query := "SELECT " + tradeColumns + " FROM trades WHERE 1=1"
	args := []interface{}{}

	if filter.AccountID != "" {
		query += " AND account_id = ?"
		args = append(args, filter.AccountID)
	}
	if filter.Market != "" {
		query += " AND market = ?"
		args = append(args, filter.Market)
	}
	if !filter.StartDate.IsZero() {
		query += " AND entry_time >= ?"
		args = append(args, filter.StartDate.UTC())
	}
	if !filter.EndDate.IsZero() {
		query += " AND entry_time <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	query += " ORDER BY entry_time ASC, created_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	return trades, rows.Err()
}

// Get retrieves a single trade by id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Trade, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+tradeColumns+" FROM trades WHERE id = ?", id)
	t, err := scanTrade(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTradeNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Update applies a partial update to the trade's execution facts.
func (s *SQLiteStore) Update(ctx context.Context, id string, update models.TradeUpdate) error {
	return retry(ctx, s.retry, func() error {
		return s.update(ctx, id, update)
	})
}

func (s *SQLiteStore) update(ctx context.Context, id string, update models.TradeUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := scanTrade(tx.QueryRowContext(ctx, "SELECT "+tradeColumns+" FROM trades WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", apperrors.ErrTradeNotFound, id)
	}
	if err != nil {
		return err
	}

	update.Apply(&t)
	t.UpdatedAt = s.now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE trades SET entry_price = ?, exit_price = ?, entry_time = ?, exit_time = ?, pnl = ?, contracts = ?, updated_at = ?
		WHERE id = ?
	`, t.EntryPrice, t.ExitPrice, t.EntryDateTime.UTC(), utcPtr(t.ExitTime), t.PnL, t.Contracts, t.UpdatedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete removes a trade.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	var result sql.Result
	err := retry(ctx, s.retry, func() (err error) {
		result, err = s.db.ExecContext(ctx, "DELETE FROM trades WHERE id = ?", id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrTradeNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (models.Trade, error) {
	var t models.Trade
	var exitTime sql.NullTime
	var exitPrice, pnl, duration, plannedSL, plannedTP, mae, mfe sql.NullFloat64
	var metricsJSON, setup, notes, tagsJSON, mistakesJSON, imagesJSON sql.NullString

	err := row.Scan(&t.ID, &t.AccountID, &t.Market, &t.Direction, &t.EntryDateTime, &exitTime, &t.EntryPrice, &exitPrice, &pnl, &t.Contracts, &t.Status, &duration, &plannedSL, &plannedTP, &mae, &mfe, &metricsJSON, &setup, &notes, &tagsJSON, &mistakesJSON, &imagesJSON, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, err
	}
	if err != nil {
		return t, fmt.Errorf("failed to scan trade: %w", err)
	}

	if exitTime.Valid {
		v := exitTime.Time.UTC()
		t.ExitTime = &v
	}
	t.EntryDateTime = t.EntryDateTime.UTC()
	t.ExitPrice = nullFloat(exitPrice)
	t.PnL = nullFloat(pnl)
	t.DurationSeconds = nullFloat(duration)
	t.PlannedSL = nullFloat(plannedSL)
	t.PlannedTP = nullFloat(plannedTP)
	t.MAEPrice = nullFloat(mae)
	t.MFEPrice = nullFloat(mfe)
	t.Setup = setup.String
	t.NotesRaw = notes.String

	columns := []struct {
		name string
		raw  sql.NullString
		dest interface{}
	}{
		{"metrics", metricsJSON, &t.Metrics},
		{"tags", tagsJSON, &t.Tags},
		{"mistakes", mistakesJSON, &t.Mistakes},
		{"images", imagesJSON, &t.Images},
	}
	for _, c := range columns {
		if !c.raw.Valid || c.raw.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(c.raw.String), c.dest); err != nil {
			return t, fmt.Errorf("failed to decode %s of trade %s: %w", c.name, t.ID, err)
		}
	}
	return t, nil
}

// utcPtr normalizes optional timestamps so stored values sort as text.
func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

// ============================================================================
// Import Profile Methods
// ============================================================================

// SaveProfile inserts or replaces a custom profile.
func (s *SQLiteStore) SaveProfile(ctx context.Context, profile importer.Profile) error {
	if !profile.IsCustom() {
		return apperrors.ErrBuiltInProfile
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	mappings, _ := json.Marshal(profile.ColumnMappings)

	err := retry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR REPLACE INTO import_profiles (id, name, delimiter, date_format, column_mappings, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, strings.TrimPrefix(profile.Key, importer.CustomPrefix), profile.Name, importer.DelimiterName(profile.Delimiter), profile.DateFormat, string(mappings), s.now().UTC())
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save import profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a custom profile by id.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*importer.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, delimiter, date_format, column_mappings FROM import_profiles WHERE id = ?
	`, strings.TrimPrefix(id, importer.CustomPrefix))
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrProfileNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProfiles retrieves all custom profiles.
func (s *SQLiteStore) ListProfiles(ctx context.Context) ([]importer.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, delimiter, date_format, column_mappings FROM import_profiles ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query import profiles: %w", err)
	}
	defer rows.Close()

	var profiles []importer.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// DeleteProfile removes a custom profile.
func (s *SQLiteStore) DeleteProfile(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM import_profiles WHERE id = ?", strings.TrimPrefix(id, importer.CustomPrefix))
	if err != nil {
		return fmt.Errorf("failed to delete import profile: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrProfileNotFound, id)
	}
	return nil
}

func scanProfile(row rowScanner) (importer.Profile, error) {
	var p importer.Profile
	var id, delim, mappingsJSON string
	var dateFormat sql.NullString

	err := row.Scan(&id, &p.Name, &delim, &dateFormat, &mappingsJSON)
	if err == sql.ErrNoRows {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("failed to scan import profile: %w", err)
	}

	p.Key = importer.CustomPrefix + id
	p.DateFormat = dateFormat.String
	if r, err := importer.ParseDelimiter(delim); err == nil {
		p.Delimiter = r
	}
	if err := json.Unmarshal([]byte(mappingsJSON), &p.ColumnMappings); err != nil {
		return p, fmt.Errorf("failed to decode column mappings: %w", err)
	}
	return p, nil
}
