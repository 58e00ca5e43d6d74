// Package domain holds the core types shared across the advisor modules.
// The domain layer is pure: no database, HTTP or logging dependencies.
package domain

// AssetClass categorizes an asset for allocation constraints.
type AssetClass string

// Asset classes recognized by the allocation model.
const (
	ClassEquity     AssetClass = "equity"
	ClassBond       AssetClass = "bond"
	ClassCommodity  AssetClass = "commodity"
	ClassRealEstate AssetClass = "real_estate"
	ClassCash       AssetClass = "cash"
)

// IsAlternative reports whether the class counts against the
// alternatives allocation cap (commodities and real estate do,
// traditional securities and cash do not).
func (c AssetClass) IsAlternative() bool {
	return c == ClassCommodity || c == ClassRealEstate
}

// Region locates an asset relative to the investor's home market.
type Region string

// Regions recognized by the allocation model.
const (
	RegionDomestic      Region = "domestic"
	RegionInternational Region = "international"
)

// SeriesKind describes what a raw series measures.
type SeriesKind string

// Raw series kinds.
const (
	// SeriesPrice is a tradable price level; returns come from percentage changes.
	SeriesPrice SeriesKind = "price"
	// SeriesRate is an annualized rate level quoted in percent, e.g. a
	// central bank policy rate. Rates are de-annualized, never differenced.
	SeriesRate SeriesKind = "rate"
)

// Asset is one investable instrument in the advisor universe.
type Asset struct {
	Symbol   string     `json:"symbol"`   // Unique identifier, e.g. "SPY" or "TA35"
	Name     string     `json:"name"`     // Human-readable name
	Class    AssetClass `json:"class"`    // Allocation class
	Region   Region     `json:"region"`   // Domestic or international
	Currency string     `json:"currency"` // Quote currency of the raw series
	Active   bool       `json:"active"`   // Inactive assets are excluded from optimization
}

// RequiresFX reports whether the asset's series must be converted into
// the given base currency before it can be combined with the others.
func (a Asset) RequiresFX(baseCurrency string) bool {
	return a.Currency != baseCurrency
}
