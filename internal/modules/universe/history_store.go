package universe

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/advisor/internal/domain"
	_ "github.com/mattn/go-sqlite3" // SQLite driver for the history store
	"github.com/rs/zerolog"
)

// historySchema is the single source of truth for history.db.
// Dates are Unix timestamps at UTC midnight. Rate levels are annualized
// percent figures as published (4.50 means 4.5%/year); de-annualization
// happens in the normalization pipeline, never here.
const historySchema = `
CREATE TABLE IF NOT EXISTS prices (
    symbol TEXT NOT NULL,
    date INTEGER NOT NULL,
    value REAL NOT NULL,
    PRIMARY KEY (symbol, date)
);

CREATE INDEX IF NOT EXISTS idx_prices_symbol ON prices(symbol);

CREATE TABLE IF NOT EXISTS fx_rates (
    pair TEXT NOT NULL,
    date INTEGER NOT NULL,
    rate REAL NOT NULL,
    PRIMARY KEY (pair, date)
);

CREATE TABLE IF NOT EXISTS rate_levels (
    series TEXT NOT NULL,
    date INTEGER NOT NULL,
    annual_rate_pct REAL NOT NULL,
    PRIMARY KEY (series, date)
);

CREATE TABLE IF NOT EXISTS import_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source TEXT NOT NULL,
    files_imported INTEGER NOT NULL,
    rows_imported INTEGER NOT NULL,
    started_at INTEGER NOT NULL,
    completed_at INTEGER NOT NULL
);
`

// HistoryStore provides access to the raw market-data store (history.db).
// It holds its own connection, separate from the modernc-backed databases.
type HistoryStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenHistoryStore opens (creating if necessary) the history database at
// the given path and ensures its schema exists.
func OpenHistoryStore(path string, log zerolog.Logger) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return NewHistoryStore(db, log), nil
}

// NewHistoryStore wraps an existing connection. Used by tests with
// in-memory databases.
func NewHistoryStore(db *sql.DB, log zerolog.Logger) *HistoryStore {
	return &HistoryStore{
		db:  db,
		log: log.With().Str("component", "history_store").Logger(),
	}
}

// InitSchema ensures the history tables exist on the wrapped connection.
func (h *HistoryStore) InitSchema() error {
	_, err := h.db.Exec(historySchema)
	return err
}

// Close closes the underlying connection.
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

// DB exposes the underlying connection for maintenance jobs.
func (h *HistoryStore) DB() *sql.DB {
	return h.db
}

// UpsertPrices writes a batch of price observations for one symbol in a
// single transaction.
func (h *HistoryStore) UpsertPrices(symbol string, points []domain.PricePoint) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if Commit succeeds

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO prices (symbol, date, value) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	symbol = normalizeSymbol(symbol)
	for _, p := range points {
		if _, err := stmt.Exec(symbol, dayStart(p.Date), p.Value); err != nil {
			return fmt.Errorf("failed to insert price for %s at %s: %w", symbol, p.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	h.log.Debug().Str("symbol", symbol).Int("count", len(points)).Msg("Upserted prices")
	return nil
}

// PriceSeries fetches the full price series for a symbol in date order.
func (h *HistoryStore) PriceSeries(symbol string) ([]domain.PricePoint, error) {
	return h.queryPoints(
		"SELECT date, value FROM prices WHERE symbol = ? ORDER BY date",
		normalizeSymbol(symbol),
	)
}

// UpsertFXRates writes a batch of FX fixings for a currency pair,
// quoted as units of the pair's second currency per one unit of its
// first (e.g. "USDILS": ILS per USD).
func (h *HistoryStore) UpsertFXRates(pair string, points []domain.PricePoint) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO fx_rates (pair, date, rate) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	pair = normalizeSymbol(pair)
	for _, p := range points {
		if _, err := stmt.Exec(pair, dayStart(p.Date), p.Value); err != nil {
			return fmt.Errorf("failed to insert FX rate for %s: %w", pair, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	h.log.Debug().Str("pair", pair).Int("count", len(points)).Msg("Upserted FX rates")
	return nil
}

// FXSeries fetches the full fixing series for a currency pair in date order.
func (h *HistoryStore) FXSeries(pair string) ([]domain.PricePoint, error) {
	return h.queryPoints(
		"SELECT date, rate FROM fx_rates WHERE pair = ? ORDER BY date",
		normalizeSymbol(pair),
	)
}

// UpsertRateLevels writes a batch of annualized rate levels (percent, as
// published) for a named series such as the policy rate.
func (h *HistoryStore) UpsertRateLevels(series string, points []domain.PricePoint) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO rate_levels (series, date, annual_rate_pct) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	series = normalizeSymbol(series)
	for _, p := range points {
		if _, err := stmt.Exec(series, dayStart(p.Date), p.Value); err != nil {
			return fmt.Errorf("failed to insert rate level for %s: %w", series, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	h.log.Debug().Str("series", series).Int("count", len(points)).Msg("Upserted rate levels")
	return nil
}

// RateSeries fetches the full annualized-percent rate series in date order.
func (h *HistoryStore) RateSeries(series string) ([]domain.PricePoint, error) {
	return h.queryPoints(
		"SELECT date, annual_rate_pct FROM rate_levels WHERE series = ? ORDER BY date",
		normalizeSymbol(series),
	)
}

// ImportRun records one completed data import.
type ImportRun struct {
	ID          int64
	Source      string
	Files       int
	Rows        int
	StartedAt   time.Time
	CompletedAt time.Time
}

// RecordImportRun persists a completed import run.
func (h *HistoryStore) RecordImportRun(run ImportRun) error {
	_, err := h.db.Exec(`
		INSERT INTO import_runs (source, files_imported, rows_imported, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.Source, run.Files, run.Rows, run.StartedAt.Unix(), run.CompletedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to record import run: %w", err)
	}
	return nil
}

// LastImportRun returns the most recent import run, or nil if no import
// has ever completed.
func (h *HistoryStore) LastImportRun() (*ImportRun, error) {
	var run ImportRun
	var started, completed int64

	err := h.db.QueryRow(`
		SELECT id, source, files_imported, rows_imported, started_at, completed_at
		FROM import_runs
		ORDER BY completed_at DESC, id DESC
		LIMIT 1
	`).Scan(&run.ID, &run.Source, &run.Files, &run.Rows, &started, &completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last import run: %w", err)
	}

	run.StartedAt = time.Unix(started, 0).UTC()
	run.CompletedAt = time.Unix(completed, 0).UTC()
	return &run, nil
}

// Coverage summarizes stored observations for one symbol.
type Coverage struct {
	Symbol       string    `json:"symbol"`
	Observations int       `json:"observations"`
	FirstDate    time.Time `json:"first_date"`
	LastDate     time.Time `json:"last_date"`
}

// PriceCoverage reports per-symbol observation counts and date spans
// for everything in the prices table.
func (h *HistoryStore) PriceCoverage() ([]Coverage, error) {
	rows, err := h.db.Query(`
		SELECT symbol, COUNT(*), MIN(date), MAX(date)
		FROM prices
		GROUP BY symbol
		ORDER BY symbol
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query price coverage: %w", err)
	}
	defer rows.Close()

	var out []Coverage
	for rows.Next() {
		var c Coverage
		var first, last int64
		if err := rows.Scan(&c.Symbol, &c.Observations, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan coverage: %w", err)
		}
		c.FirstDate = time.Unix(first, 0).UTC()
		c.LastDate = time.Unix(last, 0).UTC()
		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coverage: %w", err)
	}

	return out, nil
}

func (h *HistoryStore) queryPoints(query string, key string) ([]domain.PricePoint, error) {
	rows, err := h.db.Query(query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query series %s: %w", key, err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var dateUnix int64
		var value float64
		if err := rows.Scan(&dateUnix, &value); err != nil {
			return nil, fmt.Errorf("failed to scan point for %s: %w", key, err)
		}
		points = append(points, domain.PricePoint{
			Date:  time.Unix(dateUnix, 0).UTC(),
			Value: value,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating series %s: %w", key, err)
	}

	return points, nil
}

// dayStart truncates a timestamp to UTC midnight so one calendar day
// maps to exactly one row.
func dayStart(t time.Time) int64 {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Unix()
}
