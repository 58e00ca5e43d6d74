package universe

import (
	"fmt"

	"github.com/aristath/advisor/internal/domain"
	"github.com/rs/zerolog"
)

// defaultAssets is the starter universe registered on first boot: the
// local Tel Aviv market plus the usual liquid internationals, covering
// every asset class the allocation model knows about.
var defaultAssets = []domain.Asset{
	{Symbol: "TA35", Name: "Tel Aviv 35 Index", Class: domain.ClassEquity, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
	{Symbol: "TA125", Name: "Tel Aviv 125 Index", Class: domain.ClassEquity, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
	{Symbol: "TELBOND60", Name: "Tel-Bond 60 Corporate Bond Index", Class: domain.ClassBond, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
	{Symbol: "GOVBOND", Name: "Israel Government Bond Index", Class: domain.ClassBond, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
	{Symbol: "MAKAM", Name: "Bank of Israel Short-Term Bills", Class: domain.ClassCash, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
	{Symbol: "SPY", Name: "S&P 500 ETF", Class: domain.ClassEquity, Region: domain.RegionInternational, Currency: "USD", Active: true},
	{Symbol: "QQQ", Name: "Nasdaq 100 ETF", Class: domain.ClassEquity, Region: domain.RegionInternational, Currency: "USD", Active: true},
	{Symbol: "AGG", Name: "US Aggregate Bond ETF", Class: domain.ClassBond, Region: domain.RegionInternational, Currency: "USD", Active: true},
	{Symbol: "GLD", Name: "Gold Trust", Class: domain.ClassCommodity, Region: domain.RegionInternational, Currency: "USD", Active: true},
	{Symbol: "VNQ", Name: "Real Estate ETF", Class: domain.ClassRealEstate, Region: domain.RegionInternational, Currency: "USD", Active: true},
}

// SeedDefaults registers the starter universe if the registry is empty.
// An already-populated registry is left untouched.
func SeedDefaults(repo *AssetRepository, log zerolog.Logger) error {
	count, err := repo.Count()
	if err != nil {
		return fmt.Errorf("failed to check asset count: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, asset := range defaultAssets {
		if err := repo.Upsert(asset); err != nil {
			return fmt.Errorf("failed to seed asset %s: %w", asset.Symbol, err)
		}
	}

	log.Info().Int("count", len(defaultAssets)).Msg("Seeded default asset universe")
	return nil
}
