package persona

import (
	"errors"
	"math"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
)

// Common errors for registry operations.
var (
	ErrUnknownPersona = errors.New("unknown persona")
	ErrEmptyPersonaID = errors.New("persona ID cannot be empty")
	ErrInvalidYears   = errors.New("min_years cannot exceed max_years")
)

// Category multipliers. A matched rule token moves the score by its weight
// times the multiplier of the category it matched in. Recipes may override
// any of them through Recipe.Multipliers.
const (
	DefaultPositiveMultiplier   = 20.0
	DefaultNegativeMultiplier   = 15.0
	DefaultSignalTypeMultiplier = 15.0
	DefaultSeniorityMultiplier  = 10.0
	DefaultCompanyMultiplier    = 12.0
	DefaultRedFlagMultiplier    = 30.0
)

// Fixed adjustments outside the token categories.
const (
	DefaultYearsInRangeBonus = 10.0
	DefaultOverMaxPenalty    = 10.0
	DefaultUnderMinPenalty   = 5.0
	DefaultLocationBonus     = 5.0
)

// Per-category weight used when a matched rule token has no weight entry.
// Weights are signed: negative highlights and red flags carry weights at or
// below zero and can only ever lower a score.
const (
	DefaultPositiveWeight   = 0.5
	DefaultNegativeWeight   = -0.5
	DefaultSignalTypeWeight = 0.5
	DefaultSeniorityWeight  = 0.5
	DefaultCompanyWeight    = 0.5
	DefaultRedFlagWeight    = -1.0
)

// Multipliers scales each scoring category. Zero fields fall back to the
// package defaults when resolved through Recipe.ResolvedMultipliers.
type Multipliers struct {
	Positive     float64 `json:"positive,omitempty" toml:"positive"`
	Negative     float64 `json:"negative,omitempty" toml:"negative"`
	SignalType   float64 `json:"signal_type,omitempty" toml:"signal_type"`
	Seniority    float64 `json:"seniority,omitempty" toml:"seniority"`
	Company      float64 `json:"company,omitempty" toml:"company"`
	RedFlag      float64 `json:"red_flag,omitempty" toml:"red_flag"`
	YearsInRange float64 `json:"years_in_range,omitempty" toml:"years_in_range"`
	OverMax      float64 `json:"over_max,omitempty" toml:"over_max"`
	UnderMin     float64 `json:"under_min,omitempty" toml:"under_min"`
	Location     float64 `json:"location,omitempty" toml:"location"`
}

// DefaultMultipliers returns the package default multiplier set.
func DefaultMultipliers() Multipliers {
	return Multipliers{
		Positive:     DefaultPositiveMultiplier,
		Negative:     DefaultNegativeMultiplier,
		SignalType:   DefaultSignalTypeMultiplier,
		Seniority:    DefaultSeniorityMultiplier,
		Company:      DefaultCompanyMultiplier,
		RedFlag:      DefaultRedFlagMultiplier,
		YearsInRange: DefaultYearsInRangeBonus,
		OverMax:      DefaultOverMaxPenalty,
		UnderMin:     DefaultUnderMinPenalty,
		Location:     DefaultLocationBonus,
	}
}

// Recipe is a persona's static scoring rule table.
type Recipe struct {
	PositiveHighlights []string           `json:"positive_highlights" toml:"positive_highlights"`
	NegativeHighlights []string           `json:"negative_highlights" toml:"negative_highlights"`
	RedFlags           []string           `json:"red_flags" toml:"red_flags"`
	SignalTypes        []string           `json:"signal_types,omitempty" toml:"signal_types"`
	SeniorityKeywords  []string           `json:"seniority_keywords,omitempty" toml:"seniority_keywords"`
	ValuedCompanies    []string           `json:"valued_companies,omitempty" toml:"valued_companies"`
	Locations          []string           `json:"locations,omitempty" toml:"locations"`
	MinYears           int                `json:"min_years,omitempty" toml:"min_years"`
	MaxYears           int                `json:"max_years,omitempty" toml:"max_years"`
	DefaultWeights     map[string]float64 `json:"default_weights" toml:"default_weights"`
	Multipliers        *Multipliers       `json:"multipliers,omitempty" toml:"multipliers"`
}

// Persona is a named scoring lens.
type Persona struct {
	ID     string `json:"id" toml:"id"`
	Name   string `json:"name" toml:"name"`
	Recipe Recipe `json:"recipe" toml:"recipe"`
}

// ResolvedMultipliers merges the recipe override onto the defaults field by field.
func (r *Recipe) ResolvedMultipliers() Multipliers {
	m := DefaultMultipliers()
	if r.Multipliers == nil {
		return m
	}
	o := r.Multipliers
	pick := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	pick(&m.Positive, o.Positive)
	pick(&m.Negative, o.Negative)
	pick(&m.SignalType, o.SignalType)
	pick(&m.Seniority, o.Seniority)
	pick(&m.Company, o.Company)
	pick(&m.RedFlag, o.RedFlag)
	pick(&m.YearsInRange, o.YearsInRange)
	pick(&m.OverMax, o.OverMax)
	pick(&m.UnderMin, o.UnderMin)
	pick(&m.Location, o.Location)
	return m
}

// HasYearsRange reports whether the recipe configures an experience window.
func (r *Recipe) HasYearsRange() bool {
	return r.MinYears > 0 || r.MaxYears > 0
}

// DefaultWeight returns the recipe default for a normalized token.
func (r *Recipe) DefaultWeight(token string) (float64, bool) {
	w, ok := r.DefaultWeights[candidate.NormalizeToken(token)]
	return w, ok
}

// BaseWeight returns the weight a token scores with before any learning: the
// recipe default when one is set, otherwise the fallback of the first rule
// list holding the token, in scoring order. Tokens outside every rule list
// have a base of zero.
func (r *Recipe) BaseWeight(token string) float64 {
	token = candidate.NormalizeToken(token)
	if w, ok := r.DefaultWeights[token]; ok {
		return w
	}
	lists := []struct {
		rules []string
		w     float64
	}{
		{r.PositiveHighlights, DefaultPositiveWeight},
		{r.NegativeHighlights, DefaultNegativeWeight},
		{r.SignalTypes, DefaultSignalTypeWeight},
		{r.SeniorityKeywords, DefaultSeniorityWeight},
		{r.ValuedCompanies, DefaultCompanyWeight},
		{r.RedFlags, DefaultRedFlagWeight},
	}
	for _, l := range lists {
		for _, rule := range l.rules {
			if candidate.NormalizeToken(rule) == token {
				return l.w
			}
		}
	}
	return 0
}

// Validate checks a recipe for internal consistency.
func (r *Recipe) Validate() error {
	if r.MinYears > 0 && r.MaxYears > 0 && r.MinYears > r.MaxYears {
		return ErrInvalidYears
	}
	return nil
}

// normalized returns a deep copy with every token and weight key normalized.
func (r Recipe) normalized() Recipe {
	out := Recipe{
		PositiveHighlights: candidate.NormalizeAll(r.PositiveHighlights),
		NegativeHighlights: candidate.NormalizeAll(r.NegativeHighlights),
		RedFlags:           candidate.NormalizeAll(r.RedFlags),
		SignalTypes:        candidate.NormalizeAll(r.SignalTypes),
		SeniorityKeywords:  candidate.NormalizeAll(r.SeniorityKeywords),
		ValuedCompanies:    candidate.NormalizeAll(r.ValuedCompanies),
		Locations:          candidate.NormalizeAll(r.Locations),
		MinYears:           r.MinYears,
		MaxYears:           r.MaxYears,
		DefaultWeights:     make(map[string]float64, len(r.DefaultWeights)),
	}
	penalties := make(map[string]bool, len(out.NegativeHighlights)+len(out.RedFlags))
	for _, t := range out.NegativeHighlights {
		penalties[t] = true
	}
	for _, t := range out.RedFlags {
		penalties[t] = true
	}
	for k, v := range r.DefaultWeights {
		n := candidate.NormalizeToken(k)
		if n == "" {
			continue
		}
		if penalties[n] {
			v = -math.Abs(v)
		}
		out.DefaultWeights[n] = v
	}
	if r.Multipliers != nil {
		m := *r.Multipliers
		out.Multipliers = &m
	}
	return out
}

// Clone returns a deep copy of the persona.
func (p Persona) Clone() Persona {
	p.Recipe = p.Recipe.normalized()
	return p
}
