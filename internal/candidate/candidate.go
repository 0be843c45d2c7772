package candidate

import (
	"errors"
	"strings"
	"unicode"
)

// ErrEmptyID is returned when a candidate without an ID is used where identity matters.
var ErrEmptyID = errors.New("candidate ID cannot be empty")

// Candidate is the feature record scored against a persona recipe.
type Candidate struct {
	// ID is the upstream entity identifier.
	ID string `json:"id"`

	// Name is the display name of the person or company.
	Name string `json:"name"`

	// EntityType is "person", "company" or "signal".
	EntityType string `json:"entity_type,omitempty"`

	// Highlights are the signal tokens describing the candidate.
	Highlights []string `json:"highlights"`

	// SignalType is the kind of market signal that surfaced the candidate.
	SignalType string `json:"signal_type,omitempty"`

	// Title holds the seniority or job title.
	Title string `json:"title,omitempty"`

	// CurrentCompany is the employer (people) or the company itself.
	CurrentCompany string `json:"current_company,omitempty"`

	// CompanyID links a person to their company for enrichment lookups.
	CompanyID string `json:"company_id,omitempty"`

	// Industry is the primary industry label.
	Industry string `json:"industry,omitempty"`

	// YearsExperience is zero when unknown.
	YearsExperience int `json:"years_experience,omitempty"`

	// Region is the location or region label.
	Region string `json:"region,omitempty"`
}

// Validate checks the fields that identity-bearing operations need.
func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrEmptyID
	}
	return nil
}

// Tokens returns the normalized, de-duplicated highlight tokens.
// A nil Highlights slice yields an empty result.
func (c *Candidate) Tokens() []string {
	return NormalizeAll(c.Highlights)
}

// WithHighlights returns a copy of c with extra highlights appended.
// Duplicates (after normalization) are skipped.
func (c Candidate) WithHighlights(extra ...string) Candidate {
	seen := make(map[string]bool, len(c.Highlights)+len(extra))
	merged := make([]string, 0, len(c.Highlights)+len(extra))
	for _, h := range append(append([]string{}, c.Highlights...), extra...) {
		n := NormalizeToken(h)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		merged = append(merged, h)
	}
	c.Highlights = merged
	return c
}

// Merge returns c with empty fields filled from other and other's highlights
// appended. Fields already set on c win.
func (c Candidate) Merge(other Candidate) Candidate {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&c.ID, other.ID)
	fill(&c.Name, other.Name)
	fill(&c.EntityType, other.EntityType)
	fill(&c.SignalType, other.SignalType)
	fill(&c.Title, other.Title)
	fill(&c.CurrentCompany, other.CurrentCompany)
	fill(&c.CompanyID, other.CompanyID)
	fill(&c.Industry, other.Industry)
	fill(&c.Region, other.Region)
	if c.YearsExperience == 0 {
		c.YearsExperience = other.YearsExperience
	}
	return c.WithHighlights(other.Highlights...)
}

// NormalizeToken lowercases a token, trims it and collapses every whitespace
// run into a single underscore.
func NormalizeToken(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace)
	return strings.Join(fields, "_")
}

// NormalizeAll normalizes tokens, dropping empties and duplicates while
// keeping first-seen order.
func NormalizeAll(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		n := NormalizeToken(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
