package advice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/advisor/internal/domain"
	"github.com/aristath/advisor/internal/modules/normalization"
	"github.com/aristath/advisor/internal/modules/optimization"
	"github.com/aristath/advisor/internal/modules/performance"
	"github.com/aristath/advisor/internal/modules/profiling"
	"github.com/aristath/advisor/internal/modules/statistics"
)

// fakeUniverse backs the whole pipeline without a database: it serves
// the asset registry and the raw series from memory.
type fakeUniverse struct {
	base     string
	assets   []domain.Asset
	series   map[string]domain.RawSeries
	riskFree domain.RawSeries
}

func (f *fakeUniverse) BaseCurrency() string { return f.base }

func (f *fakeUniverse) ActiveAssets() ([]domain.Asset, error) {
	var out []domain.Asset
	for _, a := range f.assets {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeUniverse) AssetBySymbol(symbol string) (*domain.Asset, error) {
	for _, a := range f.assets {
		if a.Symbol == symbol {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeUniverse) RawSeriesFor(asset domain.Asset) (domain.RawSeries, error) {
	s, ok := f.series[asset.Symbol]
	if !ok {
		return domain.RawSeries{}, fmt.Errorf("no series for %s", asset.Symbol)
	}
	return s, nil
}

func (f *fakeUniverse) FXSeriesFor(currency string) ([]domain.PricePoint, error) {
	return nil, fmt.Errorf("no FX data for %s", currency)
}

func (f *fakeUniverse) RiskFreeRawSeries() (domain.RawSeries, error) {
	return f.riskFree, nil
}

func monthEnd(y int, m time.Month) time.Time {
	// day 0 of the next month normalizes to the last day of this one
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}

// priceSeries fabricates month-end prices starting January 2021,
// walking a repeating monthly return pattern.
func priceSeries(symbol string, months int, pattern ...float64) domain.RawSeries {
	points := make([]domain.PricePoint, months+1)
	value := 100.0
	for i := range points {
		points[i] = domain.PricePoint{Date: monthEnd(2021, time.January+time.Month(i)), Value: value}
		value *= 1 + pattern[i%len(pattern)]
	}
	return domain.RawSeries{Symbol: symbol, Currency: "ILS", Kind: domain.SeriesPrice, Points: points}
}

// newFixture builds a five-asset all-ILS universe with three years of
// monthly history, plus one inactive symbol.
func newFixture() *fakeUniverse {
	const months = 36
	return &fakeUniverse{
		base: "ILS",
		assets: []domain.Asset{
			{Symbol: "TA35", Name: "TA-35 Index", Class: domain.ClassEquity, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
			{Symbol: "SPYIL", Name: "S&P 500 (hedged)", Class: domain.ClassEquity, Region: domain.RegionInternational, Currency: "ILS", Active: true},
			{Symbol: "GOVBOND", Name: "Government Bonds", Class: domain.ClassBond, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
			{Symbol: "CORPBOND", Name: "Corporate Bonds", Class: domain.ClassBond, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
			{Symbol: "MAKAM", Name: "Short-Term Bills", Class: domain.ClassCash, Region: domain.RegionDomestic, Currency: "ILS", Active: true},
			{Symbol: "OLDX", Name: "Delisted Fund", Class: domain.ClassEquity, Region: domain.RegionDomestic, Currency: "ILS", Active: false},
		},
		series: map[string]domain.RawSeries{
			"TA35":     priceSeries("TA35", months, 0.02, -0.012, 0.03, 0.008, -0.022, 0.018),
			"SPYIL":    priceSeries("SPYIL", months, 0.016, 0.028, -0.018, 0.022),
			"GOVBOND":  priceSeries("GOVBOND", months, 0.004, 0.001, 0.005, 0.002, 0.003),
			"CORPBOND": priceSeries("CORPBOND", months, 0.005, 0.002, 0.006, 0.001, 0.004, 0.003, 0.002),
			"MAKAM":    priceSeries("MAKAM", months, 0.003, 0.0035, 0.0032),
		},
		riskFree: domain.RawSeries{
			Symbol:   "BOI",
			Currency: "ILS",
			Kind:     domain.SeriesRate,
			Points:   []domain.PricePoint{{Date: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), Value: 4.0}},
		},
	}
}

func newTestService(f *fakeUniverse) *Service {
	nop := zerolog.Nop()
	return NewService(
		f,
		normalization.New(f, normalization.Config{}, nop),
		statistics.NewEngine(nil, f.base, 0, nop),
		profiling.New(nop),
		optimization.NewService(nil, optimization.Config{}, nop),
		performance.NewReconstructor(nop),
		performance.NewAnalyzer(nop),
		nop,
	)
}

// moderateResponse trips no consistency rules and lands mid-table.
func moderateResponse() *profiling.KYCResponse {
	return &profiling.KYCResponse{
		HorizonScore:    50,
		LossTolerance:   50,
		ExperienceScore: 50,
		FinancialScore:  50,
		GoalScore:       50,
		SleepScore:      50,
	}
}

func TestAdviseEndToEnd(t *testing.T) {
	svc := newTestService(newFixture())
	const amount = 250000.0

	res, err := svc.Advise(context.Background(), Request{
		Response:         moderateResponse(),
		InvestmentAmount: amount,
		HorizonYears:     10,
	})
	require.NoError(t, err)
	require.False(t, res.Blocked)
	require.NotNil(t, res.Profile)
	assert.Equal(t, profiling.Moderate, res.Profile.Category)

	rec := res.Recommendation
	require.NotNil(t, rec)
	_, err = uuid.Parse(rec.ID)
	require.NoError(t, err)
	assert.False(t, rec.GeneratedAt.IsZero())
	assert.Equal(t, "ILS", rec.BaseCurrency)
	assert.Equal(t, amount, rec.InvestmentAmount)
	assert.Empty(t, rec.Dropped)

	require.NotEmpty(t, rec.Positions)
	var weightSum, amountSum, equitySum float64
	for _, p := range rec.Positions {
		assert.Greater(t, p.Weight, 0.0)
		assert.InDelta(t, p.Weight*amount, p.Amount, 1e-9)
		assert.NotEmpty(t, p.Name)
		weightSum += p.Weight
		amountSum += p.Amount
		if p.Class == domain.ClassEquity {
			equitySum += p.Weight
		}
	}
	assert.InDelta(t, 1.0, weightSum, 1e-6)
	assert.InDelta(t, amount, amountSum, 1e-3)
	// Moderate equity band, up to the constraint tolerance
	assert.GreaterOrEqual(t, equitySum, 0.30-optimization.ConstraintTolerance)
	assert.LessOrEqual(t, equitySum, 0.65+optimization.ConstraintTolerance)
	assert.True(t, sort.SliceIsSorted(rec.Positions, func(i, j int) bool {
		return rec.Positions[i].Weight > rec.Positions[j].Weight
	}))

	require.NotNil(t, rec.History)
	assert.Len(t, rec.History.Months, 36)
	assert.Equal(t, 100.0, rec.History.BaseValue)
	assert.Equal(t, rec.History.CumulativeValues[len(rec.History.CumulativeValues)-1], rec.History.FinalValue)

	require.NotNil(t, rec.Analytics)
	assert.Greater(t, rec.Analytics.Volatility, 0.0)
	assert.Len(t, rec.Analytics.RollingReturn, 25) // 36 months, 12-month window
	assert.Equal(t, rec.Analytics.ExpectedReturn, rec.Summary.ExpectedReturn)
	assert.Equal(t, rec.Analytics.Volatility, rec.Summary.Volatility)
	assert.Equal(t, rec.Analytics.SharpeRatio, rec.Summary.SharpeRatio)
}

func TestAdviseBlockedInconsistentResponse(t *testing.T) {
	svc := newTestService(newFixture())

	// Low financial capacity with high loss tolerance is the one
	// error-severity rule: the pipeline must stop at the profile.
	res, err := svc.Advise(context.Background(), Request{
		Response: &profiling.KYCResponse{
			HorizonScore:    60,
			LossTolerance:   80,
			ExperienceScore: 50,
			FinancialScore:  20,
			GoalScore:       50,
			SleepScore:      60,
		},
		InvestmentAmount: 100000,
		HorizonYears:     10,
	})
	require.NoError(t, err)
	require.True(t, res.Blocked)
	assert.Nil(t, res.Recommendation)
	require.NotNil(t, res.Profile)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "low_capacity_high_appetite", res.Violations[0].Code)
	assert.Equal(t, profiling.SeverityError, res.Violations[0].Severity)
}

func TestAdvisePreResolvedRiskLevel(t *testing.T) {
	svc := newTestService(newFixture())

	res, err := svc.Advise(context.Background(), Request{
		RiskLevel:        5,
		InvestmentAmount: 50000,
		HorizonYears:     10,
	})
	require.NoError(t, err)
	require.False(t, res.Blocked)
	assert.Equal(t, profiling.Moderate, res.Profile.Category)
	assert.Equal(t, 5, res.Profile.RiskLevel)
	assert.Equal(t, 1.0, res.Profile.Confidence)
	assert.Empty(t, res.Profile.Inconsistencies)
	require.NotNil(t, res.Recommendation)
}

func TestAdviseRequestValidation(t *testing.T) {
	svc := newTestService(newFixture())
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "no profile input",
			req:  Request{InvestmentAmount: 1000},
			want: "a questionnaire response or a risk level is required",
		},
		{
			name: "both profile inputs",
			req:  Request{Response: moderateResponse(), RiskLevel: 5, InvestmentAmount: 1000},
			want: "not both",
		},
		{
			name: "non-positive amount",
			req:  Request{RiskLevel: 5},
			want: "investment amount must be positive",
		},
		{
			name: "negative horizon",
			req:  Request{RiskLevel: 5, InvestmentAmount: 1000, HorizonYears: -1},
			want: "horizon cannot be negative",
		},
		{
			name: "risk level out of range",
			req:  Request{RiskLevel: 11, InvestmentAmount: 1000},
			want: "risk level must be between 1 and 10",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Advise(ctx, tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			var verr *domain.ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}
}

func TestAdviseSymbolSelection(t *testing.T) {
	svc := newTestService(newFixture())

	res, err := svc.Advise(context.Background(), Request{
		RiskLevel:        5,
		Symbols:          []string{"SPYIL", "TA35", "GOVBOND", "CORPBOND"},
		InvestmentAmount: 100000,
		HorizonYears:     10,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Recommendation)

	allowed := map[string]bool{"SPYIL": true, "TA35": true, "GOVBOND": true, "CORPBOND": true}
	for _, p := range res.Recommendation.Positions {
		assert.True(t, allowed[p.Symbol], "unexpected position %s", p.Symbol)
	}
}

func TestAdviseRejectsUnknownAndInactiveSymbols(t *testing.T) {
	svc := newTestService(newFixture())

	_, err := svc.Advise(context.Background(), Request{
		RiskLevel:        5,
		Symbols:          []string{"TA35", "NOPE", "OLDX"},
		InvestmentAmount: 100000,
	})
	require.Error(t, err)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Violations, 2)
	assert.Contains(t, err.Error(), "unknown asset NOPE")
	assert.Contains(t, err.Error(), "asset OLDX is inactive")
}

func TestAdviseSurfacesDroppedAssets(t *testing.T) {
	f := newFixture()
	f.assets = append(f.assets, domain.Asset{
		Symbol: "THIN", Name: "Thin History", Class: domain.ClassBond,
		Region: domain.RegionDomestic, Currency: "ILS", Active: true,
	})
	f.series["THIN"] = domain.RawSeries{
		Symbol: "THIN", Currency: "ILS", Kind: domain.SeriesPrice,
		Points: []domain.PricePoint{{Date: monthEnd(2021, time.January), Value: 100}},
	}
	svc := newTestService(f)

	res, err := svc.Advise(context.Background(), Request{
		RiskLevel:        5,
		InvestmentAmount: 100000,
		HorizonYears:     10,
	})
	require.NoError(t, err)
	rec := res.Recommendation
	require.NotNil(t, rec)

	require.Len(t, rec.Dropped, 1)
	assert.Equal(t, "THIN", rec.Dropped[0].Symbol)
	assert.Contains(t, rec.Dropped[0].Reason, "fewer than two usable observations")
	for _, p := range rec.Positions {
		assert.NotEqual(t, "THIN", p.Symbol)
	}
	require.NotEmpty(t, rec.Warnings)
}

func TestAdviseFailsWhenTooFewAssetsSurvive(t *testing.T) {
	f := newFixture()
	f.assets = append(f.assets, domain.Asset{
		Symbol: "THIN", Name: "Thin History", Class: domain.ClassBond,
		Region: domain.RegionDomestic, Currency: "ILS", Active: true,
	})
	f.series["THIN"] = domain.RawSeries{
		Symbol: "THIN", Currency: "ILS", Kind: domain.SeriesPrice,
		Points: []domain.PricePoint{{Date: monthEnd(2021, time.January), Value: 100}},
	}
	svc := newTestService(f)

	_, err := svc.Advise(context.Background(), Request{
		RiskLevel:        5,
		Symbols:          []string{"TA35", "THIN"},
		InvestmentAmount: 100000,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "survived normalization")
}

func TestAdviseIsDeterministic(t *testing.T) {
	req := Request{
		Response:         moderateResponse(),
		InvestmentAmount: 100000,
		HorizonYears:     10,
	}

	a, err := newTestService(newFixture()).Advise(context.Background(), req)
	require.NoError(t, err)
	b, err := newTestService(newFixture()).Advise(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, a.Recommendation)
	require.NotNil(t, b.Recommendation)
	assert.Equal(t, a.Recommendation.Positions, b.Recommendation.Positions)
	assert.Equal(t, a.Recommendation.History, b.Recommendation.History)
	assert.Equal(t, a.Recommendation.Summary, b.Recommendation.Summary)
	assert.NotEqual(t, a.Recommendation.ID, b.Recommendation.ID)
}
