package profiling

// Composite score weights. The sleep test is deliberately absent: it
// only participates in consistency validation.
const (
	WeightHorizon       = 0.25
	WeightLossTolerance = 0.30
	WeightExperience    = 0.20
	WeightFinancial     = 0.15
	WeightGoal          = 0.10
)

// Category identifies one of the five risk categories.
type Category string

const (
	UltraConservative Category = "ultra_conservative"
	Conservative      Category = "conservative"
	Moderate          Category = "moderate"
	Aggressive        Category = "aggressive"
	VeryAggressive    Category = "very_aggressive"
)

// CategoryConstraints carries everything a category implies for the
// portfolio: risk measures for reporting and hard allocation bounds for
// the optimizer.
type CategoryConstraints struct {
	Category   Category `json:"category"`
	Name       string   `json:"name"`
	NameHebrew string   `json:"name_hebrew"`

	TargetVolatility float64 `json:"target_volatility"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	RecoveryMonths   int     `json:"recovery_months"`

	MinEquity        float64 `json:"min_equity"`
	MaxEquity        float64 `json:"max_equity"`
	InternationalMax float64 `json:"international_max"`
	AlternativesMax  float64 `json:"alternatives_max"`
}

// categoryTable is ordered by risk. upperBound is the exclusive upper
// edge of each score bucket, so every score lands in exactly one
// category, boundaries included.
var categoryTable = []struct {
	upperBound float64
	c          CategoryConstraints
}{
	{26, CategoryConstraints{
		Category: UltraConservative, Name: "Ultra Conservative", NameHebrew: "שמרני מאוד",
		TargetVolatility: 0.04, MaxDrawdown: 0.03, RecoveryMonths: 6,
		MinEquity: 0.05, MaxEquity: 0.20, InternationalMax: 0.15, AlternativesMax: 0.02,
	}},
	{46, CategoryConstraints{
		Category: Conservative, Name: "Conservative", NameHebrew: "שמרני",
		TargetVolatility: 0.08, MaxDrawdown: 0.08, RecoveryMonths: 12,
		MinEquity: 0.15, MaxEquity: 0.40, InternationalMax: 0.25, AlternativesMax: 0.05,
	}},
	{66, CategoryConstraints{
		Category: Moderate, Name: "Moderate", NameHebrew: "מתון",
		TargetVolatility: 0.12, MaxDrawdown: 0.15, RecoveryMonths: 24,
		MinEquity: 0.30, MaxEquity: 0.65, InternationalMax: 0.40, AlternativesMax: 0.10,
	}},
	{86, CategoryConstraints{
		Category: Aggressive, Name: "Aggressive", NameHebrew: "אגרסיבי",
		TargetVolatility: 0.18, MaxDrawdown: 0.25, RecoveryMonths: 36,
		MinEquity: 0.55, MaxEquity: 0.80, InternationalMax: 0.60, AlternativesMax: 0.20,
	}},
	{101, CategoryConstraints{
		Category: VeryAggressive, Name: "Very Aggressive", NameHebrew: "אגרסיבי מאוד",
		TargetVolatility: 0.22, MaxDrawdown: 0.40, RecoveryMonths: 48,
		MinEquity: 0.70, MaxEquity: 0.95, InternationalMax: 0.80, AlternativesMax: 0.30,
	}},
}

// ConstraintsForScore buckets a composite score into its category.
func ConstraintsForScore(score float64) CategoryConstraints {
	for _, entry := range categoryTable {
		if score < entry.upperBound {
			return entry.c
		}
	}
	return categoryTable[len(categoryTable)-1].c
}

// ConstraintsForCategory returns the constraints of a known category.
func ConstraintsForCategory(c Category) (CategoryConstraints, bool) {
	for _, entry := range categoryTable {
		if entry.c.Category == c {
			return entry.c, true
		}
	}
	return CategoryConstraints{}, false
}

// ConstraintsForRiskLevel maps a pre-resolved 1-10 risk level onto the
// category table: two levels per category.
func ConstraintsForRiskLevel(level int) (CategoryConstraints, bool) {
	if level < 1 || level > 10 {
		return CategoryConstraints{}, false
	}
	idx := (level - 1) / 2
	if idx >= len(categoryTable) {
		idx = len(categoryTable) - 1
	}
	return categoryTable[idx].c, true
}

// ProfileForRiskLevel builds a profile for a client who arrives with a
// pre-resolved 1-10 risk level instead of a questionnaire. The
// composite score is pinned to the midpoint of the category's score
// bucket, and so is every response score: downstream consumers read
// individual scores (the horizon score in particular) and must see
// values consistent with the level, not zeros. No consistency rules
// apply: the profile is always eligible and fully confident.
func ProfileForRiskLevel(level int) (*RiskProfile, bool) {
	constraints, ok := ConstraintsForRiskLevel(level)
	if !ok {
		return nil, false
	}
	lower := 0.0
	for _, entry := range categoryTable {
		if entry.c.Category == constraints.Category {
			mid := (lower + entry.upperBound) / 2
			pinned := int(mid)
			return &RiskProfile{
				CompositeScore: mid,
				RiskLevel:      level,
				Category:       constraints.Category,
				Constraints:    constraints,
				Confidence:     1.0,
				Response: KYCResponse{
					HorizonScore:    pinned,
					LossTolerance:   pinned,
					ExperienceScore: pinned,
					FinancialScore:  pinned,
					GoalScore:       pinned,
					SleepScore:      pinned,
				},
			}, true
		}
		lower = entry.upperBound
	}
	return nil, false
}

// Categories returns the full table in ascending risk order.
func Categories() []CategoryConstraints {
	out := make([]CategoryConstraints, len(categoryTable))
	for i, entry := range categoryTable {
		out[i] = entry.c
	}
	return out
}
