package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Serial Founder", "serial_founder"},
		{"  YC   alumni ", "yc_alumni"},
		{"already_normal", "already_normal"},
		{"Tabs\tand\nnewlines", "tabs_and_newlines"},
		{"   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeToken(tt.in))
		})
	}
}

func TestNormalizeAll_DedupesAndDropsEmpty(t *testing.T) {
	got := NormalizeAll([]string{"Serial Founder", "serial_founder", "", "YC Alumni"})
	assert.Equal(t, []string{"serial_founder", "yc_alumni"}, got)
}

func TestCandidate_TokensNilHighlights(t *testing.T) {
	c := Candidate{ID: "c1"}
	assert.Empty(t, c.Tokens())
}

func TestCandidate_WithHighlightsDoesNotMutateOriginal(t *testing.T) {
	orig := Candidate{ID: "c1", Highlights: []string{"a"}}
	enriched := orig.WithHighlights("b", "A")

	assert.Equal(t, []string{"a"}, orig.Highlights)
	assert.Equal(t, []string{"a", "b"}, enriched.Highlights)
}

func TestCandidate_Validate(t *testing.T) {
	c := Candidate{}
	assert.ErrorIs(t, c.Validate(), ErrEmptyID)

	c.ID = "p1"
	assert.NoError(t, c.Validate())
}

func TestExtract_Person(t *testing.T) {
	p := &Person{
		ID:               "p1",
		Name:             "Ada",
		Title:            "CTO",
		CompanyID:        "co1",
		CompanyName:      "Acme",
		Location:         "San Francisco",
		YearsExperience:  8,
		FoundedCompanies: 2,
		Highlights:       []string{"YC Alumni"},
	}

	c, err := Extract(p)
	require.NoError(t, err)
	assert.Equal(t, "p1", c.ID)
	assert.Equal(t, "person", c.EntityType)
	assert.Equal(t, "CTO", c.Title)
	assert.Equal(t, "Acme", c.CurrentCompany)
	assert.Equal(t, "co1", c.CompanyID)
	assert.Equal(t, 8, c.YearsExperience)
	assert.Equal(t, "San Francisco", c.Region)
	assert.Contains(t, c.Tokens(), "serial_founder")
	assert.Contains(t, c.Tokens(), "yc_alumni")
}

func TestExtract_SeniorityWinsOverTitle(t *testing.T) {
	c, err := Extract(&Person{ID: "p1", Title: "Engineer", Seniority: "Senior"})
	require.NoError(t, err)
	assert.Equal(t, "Senior", c.Title)
}

func TestExtract_Company(t *testing.T) {
	co := &Company{ID: "co1", Name: "Acme", EmployeeCount: 250, Stage: "Series B", HeadcountGrowthPct: 80}

	c, err := Extract(co)
	require.NoError(t, err)
	assert.Equal(t, "company", c.EntityType)
	assert.ElementsMatch(t, []string{"scaled_company", "hypergrowth", "stage_series_b"}, c.Tokens())
}

func TestExtract_SignalUsesEntityID(t *testing.T) {
	s := &Signal{ID: "sig1", EntityID: "p9", EntityName: "Bob", Type: "new_company", Datapoints: []string{"Stealth Mode"}}

	c, err := Extract(s)
	require.NoError(t, err)
	assert.Equal(t, "p9", c.ID)
	assert.Equal(t, "new_company", c.SignalType)
	assert.Equal(t, []string{"stealth_mode"}, c.Tokens())
}

func TestExtract_Nil(t *testing.T) {
	_, err := Extract(nil)
	assert.ErrorIs(t, err, ErrNilSource)

	var p *Person
	_, err = Extract(p)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestDeriveFundingHighlights(t *testing.T) {
	got := DeriveFundingHighlights(&Funding{RoundCount: 3, TotalRaisedUSD: 150_000_000, LastRoundStage: "Series C", Investors: []string{"Sequoia Capital"}})
	assert.Equal(t, []string{"well_funded", "raised_series_c", "backed_by_sequoia_capital"}, got)

	assert.Equal(t, []string{"bootstrapped"}, DeriveFundingHighlights(&Funding{}))
}

func TestDeriveCompanyHighlights_Thresholds(t *testing.T) {
	assert.Equal(t, []string{"early_team"}, DeriveCompanyHighlights(&Company{EmployeeCount: 12}))
	assert.Empty(t, DeriveCompanyHighlights(&Company{EmployeeCount: 100}))
	assert.Equal(t, []string{"scaled_company"}, DeriveCompanyHighlights(&Company{EmployeeCount: 101}))
	assert.Equal(t, []string{"scaled_company", "enterprise_scale"}, DeriveCompanyHighlights(&Company{EmployeeCount: 5000}))
}

func TestCandidate_Merge(t *testing.T) {
	base := Candidate{ID: "p1", Title: "CTO", Highlights: []string{"yc_alumni"}}
	other := Candidate{ID: "other", Name: "Ada", Title: "Engineer", Industry: "AI", YearsExperience: 9,
		Highlights: []string{"YC Alumni", "serial_founder"}}

	merged := base.Merge(other)

	assert.Equal(t, "p1", merged.ID)
	assert.Equal(t, "Ada", merged.Name)
	assert.Equal(t, "CTO", merged.Title)
	assert.Equal(t, "AI", merged.Industry)
	assert.Equal(t, 9, merged.YearsExperience)
	assert.Equal(t, []string{"yc_alumni", "serial_founder"}, merged.Highlights)
	assert.Equal(t, []string{"yc_alumni"}, base.Highlights)
}
