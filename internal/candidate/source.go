package candidate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNilSource is returned when Extract receives a nil variant.
var ErrNilSource = errors.New("feature source cannot be nil")

// SourceKind names the variant of a FeatureSource.
type SourceKind string

const (
	SourcePerson  SourceKind = "person"
	SourceCompany SourceKind = "company"
	SourceSignal  SourceKind = "signal"
)

// FeatureSource is a tagged union over the upstream record shapes.
// Only *Person, *Company and *Signal implement it.
type FeatureSource interface {
	Kind() SourceKind
	sealed()
}

// Person is an upstream person profile.
type Person struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Headline          string   `json:"headline,omitempty"`
	Title             string   `json:"title,omitempty"`
	Seniority         string   `json:"seniority,omitempty"`
	CompanyID         string   `json:"company_id,omitempty"`
	CompanyName       string   `json:"company_name,omitempty"`
	Industry          string   `json:"industry,omitempty"`
	Location          string   `json:"location,omitempty"`
	YearsExperience   int      `json:"years_experience,omitempty"`
	FoundedCompanies  int      `json:"founded_companies,omitempty"`
	PreviousCompanies []string `json:"previous_companies,omitempty"`
	Highlights        []string `json:"highlights,omitempty"`
}

// Company is an upstream company profile.
type Company struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Industry           string   `json:"industry,omitempty"`
	Location           string   `json:"location,omitempty"`
	Stage              string   `json:"stage,omitempty"`
	EmployeeCount      int      `json:"employee_count,omitempty"`
	HeadcountGrowthPct float64  `json:"headcount_growth_pct,omitempty"`
	Tags               []string `json:"tags,omitempty"`
}

// Funding summarizes a company's financing history.
type Funding struct {
	CompanyID      string   `json:"company_id"`
	TotalRaisedUSD float64  `json:"total_raised_usd,omitempty"`
	LastRoundStage string   `json:"last_round_stage,omitempty"`
	LastRoundUSD   float64  `json:"last_round_usd,omitempty"`
	RoundCount     int      `json:"round_count"`
	Investors      []string `json:"investors,omitempty"`
}

// Signal is a market event (hiring spike, new company, funding news) about an entity.
type Signal struct {
	ID         string   `json:"id"`
	EntityID   string   `json:"entity_id,omitempty"`
	EntityName string   `json:"entity_name"`
	Type       string   `json:"type"`
	Region     string   `json:"region,omitempty"`
	Datapoints []string `json:"datapoints,omitempty"`
}

func (*Person) Kind() SourceKind  { return SourcePerson }
func (*Company) Kind() SourceKind { return SourceCompany }
func (*Signal) Kind() SourceKind  { return SourceSignal }

func (*Person) sealed()  {}
func (*Company) sealed() {}
func (*Signal) sealed()  {}

// Extract converts any FeatureSource variant into a Candidate.
func Extract(src FeatureSource) (Candidate, error) {
	switch s := src.(type) {
	case *Person:
		if s == nil {
			return Candidate{}, ErrNilSource
		}
		return FromPerson(s), nil
	case *Company:
		if s == nil {
			return Candidate{}, ErrNilSource
		}
		return FromCompany(s), nil
	case *Signal:
		if s == nil {
			return Candidate{}, ErrNilSource
		}
		return FromSignal(s), nil
	case nil:
		return Candidate{}, ErrNilSource
	default:
		return Candidate{}, fmt.Errorf("unsupported feature source %T", src)
	}
}

// FromPerson extracts a candidate from a person profile.
func FromPerson(p *Person) Candidate {
	title := p.Seniority
	if title == "" {
		title = p.Title
	}
	c := Candidate{
		ID:              p.ID,
		Name:            p.Name,
		EntityType:      string(SourcePerson),
		Highlights:      append([]string{}, p.Highlights...),
		Title:           title,
		CurrentCompany:  p.CompanyName,
		CompanyID:       p.CompanyID,
		Industry:        p.Industry,
		YearsExperience: p.YearsExperience,
		Region:          p.Location,
	}
	return c.WithHighlights(DerivePersonHighlights(p)...)
}

// FromCompany extracts a candidate from a company profile.
func FromCompany(co *Company) Candidate {
	c := Candidate{
		ID:             co.ID,
		Name:           co.Name,
		EntityType:     string(SourceCompany),
		Highlights:     append([]string{}, co.Tags...),
		CurrentCompany: co.Name,
		CompanyID:      co.ID,
		Industry:       co.Industry,
		Region:         co.Location,
	}
	return c.WithHighlights(DeriveCompanyHighlights(co)...)
}

// FromSignal extracts a candidate from a market signal.
func FromSignal(s *Signal) Candidate {
	id := s.EntityID
	if id == "" {
		id = s.ID
	}
	c := Candidate{
		ID:         id,
		Name:       s.EntityName,
		EntityType: string(SourceSignal),
		Highlights: append([]string{}, s.Datapoints...),
		SignalType: s.Type,
		Region:     s.Region,
	}
	return c.WithHighlights()
}

// DerivePersonHighlights turns profile facts into synthetic highlight tokens.
func DerivePersonHighlights(p *Person) []string {
	var out []string
	switch {
	case p.FoundedCompanies >= 2:
		out = append(out, "serial_founder")
	case p.FoundedCompanies == 1:
		out = append(out, "founder")
	}
	if len(p.PreviousCompanies) >= 4 {
		out = append(out, "frequent_job_changes")
	}
	return out
}

// DeriveCompanyHighlights turns company facts into synthetic highlight tokens.
func DeriveCompanyHighlights(co *Company) []string {
	var out []string
	switch {
	case co.EmployeeCount > 1000:
		out = append(out, "scaled_company", "enterprise_scale")
	case co.EmployeeCount > 100:
		out = append(out, "scaled_company")
	case co.EmployeeCount > 0 && co.EmployeeCount <= 20:
		out = append(out, "early_team")
	}
	if co.HeadcountGrowthPct >= 50 {
		out = append(out, "hypergrowth")
	}
	if stage := NormalizeToken(co.Stage); stage != "" {
		out = append(out, "stage_"+stage)
	}
	return out
}

// DeriveFundingHighlights turns a funding summary into synthetic highlight tokens.
func DeriveFundingHighlights(f *Funding) []string {
	var out []string
	switch {
	case f.RoundCount == 0:
		out = append(out, "bootstrapped")
	case f.TotalRaisedUSD >= 100_000_000:
		out = append(out, "well_funded")
	case f.TotalRaisedUSD > 0 && f.TotalRaisedUSD < 5_000_000:
		out = append(out, "lightly_funded")
	}
	if stage := NormalizeToken(f.LastRoundStage); stage != "" {
		out = append(out, "raised_"+stage)
	}
	for _, inv := range f.Investors {
		if n := NormalizeToken(inv); n != "" {
			out = append(out, "backed_by_"+strings.Trim(n, "_"))
		}
	}
	return out
}
