// Package universe manages the investable asset registry and the raw
// market-data store the normalization pipeline reads from.
package universe

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/advisor/internal/domain"
	"github.com/rs/zerolog"
)

// assetColumns is the column list for the assets table.
// Used to avoid SELECT * which can break when schema changes.
const assetColumns = `symbol, name, class, region, currency, active`

// AssetRepository handles asset registry operations on universe.db.
type AssetRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAssetRepository creates a new asset repository.
func NewAssetRepository(db *sql.DB, log zerolog.Logger) *AssetRepository {
	return &AssetRepository{
		db:  db,
		log: log.With().Str("repo", "assets").Logger(),
	}
}

// GetBySymbol returns an asset by symbol, or nil if not found.
func (r *AssetRepository) GetBySymbol(symbol string) (*domain.Asset, error) {
	query := "SELECT " + assetColumns + " FROM assets WHERE symbol = ?"

	row := r.db.QueryRow(query, normalizeSymbol(symbol))
	asset, err := scanAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query asset by symbol: %w", err)
	}

	return &asset, nil
}

// List returns all assets ordered by symbol. When activeOnly is set,
// inactive assets are excluded.
func (r *AssetRepository) List(activeOnly bool) ([]domain.Asset, error) {
	query := "SELECT " + assetColumns + " FROM assets"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY symbol"

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	var assets []domain.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}

	return assets, nil
}

// Upsert inserts or replaces an asset.
func (r *AssetRepository) Upsert(asset domain.Asset) error {
	now := time.Now().Unix()

	_, err := r.db.Exec(`
		INSERT INTO assets (symbol, name, class, region, currency, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			name = excluded.name,
			class = excluded.class,
			region = excluded.region,
			currency = excluded.currency,
			active = excluded.active,
			updated_at = excluded.updated_at
	`,
		normalizeSymbol(asset.Symbol),
		asset.Name,
		string(asset.Class),
		string(asset.Region),
		strings.ToUpper(asset.Currency),
		boolToInt(asset.Active),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert asset %s: %w", asset.Symbol, err)
	}

	return nil
}

// SetActive flips the active flag for an asset.
func (r *AssetRepository) SetActive(symbol string, active bool) error {
	result, err := r.db.Exec(
		"UPDATE assets SET active = ?, updated_at = ? WHERE symbol = ?",
		boolToInt(active), time.Now().Unix(), normalizeSymbol(symbol),
	)
	if err != nil {
		return fmt.Errorf("failed to update asset %s: %w", symbol, err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("asset %s not found", symbol)
	}

	return nil
}

// Count returns the number of registered assets.
func (r *AssetRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM assets").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count assets: %w", err)
	}
	return count, nil
}

// scanner abstracts sql.Row and sql.Rows for scanAsset.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(s scanner) (domain.Asset, error) {
	var a domain.Asset
	var class, region string
	var active int

	if err := s.Scan(&a.Symbol, &a.Name, &class, &region, &a.Currency, &active); err != nil {
		return domain.Asset{}, err
	}

	a.Class = domain.AssetClass(class)
	a.Region = domain.Region(region)
	a.Active = active != 0

	return a, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
