package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
)

// Score bounds and the neutral starting point.
const (
	MinScore     = 0
	MaxScore     = 100
	NeutralScore = 50.0
)

// Recommendation band thresholds.
const (
	StrongPassThreshold = 80
	SoftPassThreshold   = 60
	BorderlineThreshold = 40
)

// Recommendation is the banded verdict derived from a score.
type Recommendation string

const (
	StrongPass Recommendation = "STRONG_PASS"
	SoftPass   Recommendation = "SOFT_PASS"
	Borderline Recommendation = "BORDERLINE"
	Pass       Recommendation = "PASS"
)

// Category identifies the recipe section a rule token matched in.
type Category string

const (
	CategoryPositive   Category = "positive"
	CategoryNegative   Category = "negative"
	CategorySignalType Category = "signal_type"
	CategorySeniority  Category = "seniority"
	CategoryCompany    Category = "company"
	CategoryRedFlag    Category = "red_flag"
	CategoryYears      Category = "years"
	CategoryLocation   Category = "location"
)

// Adjustment is one contribution to the final score.
type Adjustment struct {
	Category Category `json:"category"`
	Token    string   `json:"token,omitempty"`
	Weight   float64  `json:"weight,omitempty"`
	Delta    float64  `json:"delta"`
}

// Result is the outcome of scoring one candidate against one persona.
type Result struct {
	Score           int            `json:"score"`
	MatchedPositive []string       `json:"matched_positive"`
	MatchedNegative []string       `json:"matched_negative"`
	MatchedRedFlags []string       `json:"matched_red_flags"`
	Recommendation  Recommendation `json:"recommendation"`
	Confidence      int            `json:"confidence"`
	Adjustments     []Adjustment   `json:"adjustments,omitempty"`
}

// MergeWeights overlays learned weights onto recipe defaults. Learned entries
// override defaults key for key; keys are normalized. Neither input is
// modified.
func MergeWeights(defaults, learned map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(defaults)+len(learned))
	for k, v := range defaults {
		out[candidate.NormalizeToken(k)] = v
	}
	for k, v := range learned {
		out[candidate.NormalizeToken(k)] = v
	}
	return out
}

// RecommendationFor maps a score to its band.
func RecommendationFor(score int) Recommendation {
	switch {
	case score >= StrongPassThreshold:
		return StrongPass
	case score >= SoftPassThreshold:
		return SoftPass
	case score >= BorderlineThreshold:
		return Borderline
	default:
		return Pass
	}
}

// Matches reports whether a candidate token and a rule token match. Either
// may be a substring of the other.
func Matches(token, rule string) bool {
	if token == "" || rule == "" {
		return false
	}
	return strings.Contains(token, rule) || strings.Contains(rule, token)
}

type categorySpec struct {
	category      Category
	rules         []string
	tokens        []string
	multiplier    float64
	defaultWeight float64
	negative      bool
}

// Score rates a candidate against a recipe using the effective weights.
// A candidate with no highlights is scored on its other fields alone.
func Score(c candidate.Candidate, recipe persona.Recipe, weights map[string]float64) Result {
	m := recipe.ResolvedMultipliers()
	highlights := c.Tokens()

	var signal, seniority, company []string
	if t := candidate.NormalizeToken(c.SignalType); t != "" {
		signal = []string{t}
	}
	if t := candidate.NormalizeToken(c.Title); t != "" {
		seniority = []string{t}
	}
	if t := candidate.NormalizeToken(c.CurrentCompany); t != "" {
		company = []string{t}
	}

	specs := []categorySpec{
		{CategoryPositive, recipe.PositiveHighlights, highlights, m.Positive, persona.DefaultPositiveWeight, false},
		{CategoryNegative, recipe.NegativeHighlights, highlights, m.Negative, persona.DefaultNegativeWeight, true},
		{CategorySignalType, recipe.SignalTypes, append(signal, highlights...), m.SignalType, persona.DefaultSignalTypeWeight, false},
		{CategorySeniority, recipe.SeniorityKeywords, seniority, m.Seniority, persona.DefaultSeniorityWeight, false},
		{CategoryCompany, recipe.ValuedCompanies, company, m.Company, persona.DefaultCompanyWeight, false},
		{CategoryRedFlag, recipe.RedFlags, highlights, m.RedFlag, persona.DefaultRedFlagWeight, true},
	}

	res := Result{
		MatchedPositive: []string{},
		MatchedNegative: []string{},
		MatchedRedFlags: []string{},
	}
	raw := NeutralScore

	for _, spec := range specs {
		for _, rule := range candidate.NormalizeAll(spec.rules) {
			if !anyMatch(spec.tokens, rule) {
				continue
			}
			w, ok := weights[rule]
			if !ok {
				w = spec.defaultWeight
			}
			delta := w * spec.multiplier
			if spec.negative {
				// Penalties shrink toward zero as the weight rises and never
				// turn into a bonus.
				delta = math.Min(0, w) * spec.multiplier
			}
			raw += delta
			res.Adjustments = append(res.Adjustments, Adjustment{
				Category: spec.category, Token: rule, Weight: w, Delta: delta,
			})
			switch spec.category {
			case CategoryNegative:
				res.MatchedNegative = append(res.MatchedNegative, rule)
			case CategoryRedFlag:
				res.MatchedRedFlags = append(res.MatchedRedFlags, rule)
			default:
				res.MatchedPositive = append(res.MatchedPositive, rule)
			}
		}
	}

	if delta := yearsAdjustment(c.YearsExperience, recipe, m); delta != 0 {
		raw += delta
		res.Adjustments = append(res.Adjustments, Adjustment{
			Category: CategoryYears, Token: fmt.Sprintf("%d_years", c.YearsExperience), Delta: delta,
		})
	}

	if region := candidate.NormalizeToken(c.Region); region != "" {
		for _, loc := range candidate.NormalizeAll(recipe.Locations) {
			if Matches(region, loc) {
				raw += m.Location
				res.Adjustments = append(res.Adjustments, Adjustment{
					Category: CategoryLocation, Token: loc, Delta: m.Location,
				})
				break
			}
		}
	}

	res.Score = clamp(raw)
	res.Recommendation = RecommendationFor(res.Score)
	res.Confidence = confidence(highlights, weights)
	return res
}

func yearsAdjustment(years int, recipe persona.Recipe, m persona.Multipliers) float64 {
	if years <= 0 || !recipe.HasYearsRange() {
		return 0
	}
	switch {
	case recipe.MaxYears > 0 && years > recipe.MaxYears:
		return -m.OverMax
	case recipe.MinYears > 0 && years < recipe.MinYears:
		return -m.UnderMin
	default:
		return m.YearsInRange
	}
}

func anyMatch(tokens []string, rule string) bool {
	for _, t := range tokens {
		if Matches(t, rule) {
			return true
		}
	}
	return false
}

func clamp(raw float64) int {
	if math.IsNaN(raw) {
		return int(NeutralScore)
	}
	return int(math.Round(math.Max(MinScore, math.Min(MaxScore, raw))))
}

// confidence is the percentage of highlight tokens with any weight entry.
func confidence(highlights []string, weights map[string]float64) int {
	if len(highlights) == 0 {
		return 0
	}
	known := 0
	for _, h := range highlights {
		if _, ok := weights[h]; ok {
			known++
		}
	}
	return int(math.Round(100 * float64(known) / float64(len(highlights))))
}
