package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
	"github.com/fyrsmithlabs/dealscout/internal/scoring"
)

func (d *Dispatcher) registerBuiltins() {
	d.handlers[TriggerScorePerson] = d.handleScorePerson
	d.handlers[TriggerSuggestDatapoints] = d.handleSuggestDatapoints
	d.handlers[TriggerDeepDive] = d.handleDeepDive
	d.handlers[TriggerBulkLike] = d.handleBulkLike
	d.handlers[TriggerBulkDislike] = d.handleBulkDislike
	d.handlers[TriggerCreateShortlist] = d.handleCreateShortlist
	d.handlers[TriggerAutoScore] = d.handleAutoScore
	d.handlers[TriggerSortFeed] = d.handleSortFeed
	d.handlers[TriggerCheckAlerts] = d.handleCheckAlerts
	d.handlers[TriggerSessionSummary] = d.handleSessionSummary
	d.handlers[TriggerNaturalSearch] = d.handleNaturalSearch
	d.handlers[TriggerAutoProcess] = d.handleAutoProcess
	d.handlers[TriggerLearnCorrection] = d.handleLearnCorrection
}

// scorer captures one persona's recipe and effective weights so a handler
// scores a batch against a consistent view.
type scorer struct {
	recipe  persona.Recipe
	weights map[string]float64
}

func (d *Dispatcher) scorerFor(personaID string) (*scorer, error) {
	p, err := d.deps.Registry.Get(personaID)
	if err != nil {
		return nil, err
	}
	weights, err := d.deps.Learner.EffectiveWeights(personaID)
	if err != nil {
		return nil, err
	}
	return &scorer{recipe: p.Recipe, weights: weights}, nil
}

func (s *scorer) score(c candidate.Candidate) scoring.Result {
	return scoring.Score(c, s.recipe, s.weights)
}

// toolCall times fn and records its outcome.
func toolCall(name, input string, fn func() error) (ToolCall, error) {
	start := time.Now()
	err := fn()
	tc := ToolCall{Name: name, Input: input, Success: err == nil, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		tc.Error = err.Error()
	}
	return tc, err
}

// ScorePersonPayload is the payload of score-person.
type ScorePersonPayload struct {
	Candidate candidate.Candidate `json:"candidate"`
}

// ScoreData is the result of scoring one candidate.
type ScoreData struct {
	CandidateID string         `json:"candidate_id"`
	Name        string         `json:"name,omitempty"`
	Result      scoring.Result `json:"result"`
	Reasons     []string       `json:"reasons"`
}

func (d *Dispatcher) handleScorePerson(_ context.Context, personaID string, req Request) (*Outcome, error) {
	p, err := decode[ScorePersonPayload](req)
	if err != nil {
		return nil, err
	}
	if err := p.Candidate.Validate(); err != nil {
		return nil, Errorf(CodeInvalidPayload, "%v", err)
	}
	sc, err := d.scorerFor(personaID)
	if err != nil {
		return nil, err
	}

	var res scoring.Result
	tc, _ := toolCall("scoring.score", p.Candidate.ID, func() error {
		res = sc.score(p.Candidate)
		return nil
	})
	reasons := scoring.Reasons(res)
	return &Outcome{
		Data:        ScoreData{CandidateID: p.Candidate.ID, Name: p.Candidate.Name, Result: res, Reasons: reasons},
		Reasoning:   strings.Join(reasons, "\n"),
		ToolsCalled: []ToolCall{tc},
	}, nil
}

// SuggestDatapointsPayload is the payload of suggest-datapoints.
type SuggestDatapointsPayload struct {
	Candidate *candidate.Candidate `json:"candidate,omitempty"`
	Limit     int                  `json:"limit,omitempty"`
}

// Datapoint is a weighted token the persona knows about.
type Datapoint struct {
	Token  string  `json:"token"`
	Weight float64 `json:"weight"`
	Source string  `json:"source"` // "learned" or "default"
}

// SuggestData lists the most influential datapoints and the recipe signals a
// candidate is missing.
type SuggestData struct {
	Known   []Datapoint `json:"known"`
	Missing []string    `json:"missing,omitempty"`
}

const defaultSuggestLimit = 10

func (d *Dispatcher) handleSuggestDatapoints(_ context.Context, personaID string, req Request) (*Outcome, error) {
	p, err := decode[SuggestDatapointsPayload](req)
	if err != nil {
		return nil, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	pers, err := d.deps.Registry.Get(personaID)
	if err != nil {
		return nil, err
	}
	st, err := d.deps.Store.GetState(personaID)
	if err != nil {
		return nil, err
	}
	weights := scoring.MergeWeights(pers.Recipe.DefaultWeights, st.LearnedWeights)

	known := make([]Datapoint, 0, len(weights))
	for tok, w := range weights {
		src := "default"
		if _, ok := st.LearnedWeights[tok]; ok {
			src = "learned"
		}
		known = append(known, Datapoint{Token: tok, Weight: w, Source: src})
	}
	sort.Slice(known, func(i, j int) bool {
		if known[i].Weight != known[j].Weight {
			return known[i].Weight > known[j].Weight
		}
		return known[i].Token < known[j].Token
	})
	if len(known) > limit {
		known = known[:limit]
	}

	data := SuggestData{Known: known}
	if p.Candidate != nil {
		have := p.Candidate.Tokens()
		for _, rule := range pers.Recipe.PositiveHighlights {
			matched := false
			for _, h := range have {
				if scoring.Matches(h, rule) {
					matched = true
					break
				}
			}
			if !matched {
				data.Missing = append(data.Missing, rule)
			}
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top %d datapoints by effective weight for %s.", len(known), pers.Name)
	if len(known) > 0 {
		fmt.Fprintf(&b, " Strongest: %s (%+.2f).", known[0].Token, known[0].Weight)
	}
	if p.Candidate != nil {
		fmt.Fprintf(&b, " Candidate lacks %d of %d recipe strengths.", len(data.Missing), len(pers.Recipe.PositiveHighlights))
	}
	return &Outcome{Data: data, Reasoning: b.String()}, nil
}

// DeepDivePayload is the payload of deep-dive.
type DeepDivePayload struct {
	Candidate candidate.Candidate `json:"candidate"`
	CompanyID string              `json:"company_id,omitempty"`
}

// DeepDiveData is the enriched re-score.
type DeepDiveData struct {
	Candidate       candidate.Candidate `json:"candidate"`
	Before          scoring.Result      `json:"before"`
	Result          scoring.Result      `json:"result"`
	AddedHighlights []string            `json:"added_highlights"`
	Reasons         []string            `json:"reasons"`
}

// handleDeepDive enriches the candidate with person, company and funding
// lookups in that order, then re-scores. A failed lookup is recorded and
// skipped.
func (d *Dispatcher) handleDeepDive(ctx context.Context, personaID string, req Request) (*Outcome, error) {
	p, err := decode[DeepDivePayload](req)
	if err != nil {
		return nil, err
	}
	if err := p.Candidate.Validate(); err != nil {
		return nil, Errorf(CodeInvalidPayload, "%v", err)
	}
	sc, err := d.scorerFor(personaID)
	if err != nil {
		return nil, err
	}

	enriched := p.Candidate
	before := sc.score(enriched)
	var tools []ToolCall
	enricher := d.deps.Enricher

	isCompany := enriched.EntityType == string(candidate.SourceCompany)
	if !isCompany {
		var person *candidate.Person
		tc, err := toolCall("fetch_person", enriched.ID, func() error {
			if enricher == nil {
				return errNoEnricher
			}
			var err error
			person, err = enricher.FetchPerson(ctx, enriched.ID)
			return err
		})
		tools = append(tools, tc)
		if err == nil && person != nil {
			enriched = enriched.Merge(candidate.FromPerson(person))
		}
	}

	companyID := p.CompanyID
	if companyID == "" {
		companyID = enriched.CompanyID
	}
	if companyID == "" && isCompany {
		companyID = enriched.ID
	}

	if companyID != "" {
		var company *candidate.Company
		tc, err := toolCall("fetch_company", companyID, func() error {
			if enricher == nil {
				return errNoEnricher
			}
			var err error
			company, err = enricher.FetchCompany(ctx, companyID)
			return err
		})
		tools = append(tools, tc)
		if err == nil && company != nil {
			fromCompany := candidate.FromCompany(company)
			if !isCompany {
				// A person inherits the company's facts but keeps their own identity.
				fromCompany.ID, fromCompany.Name, fromCompany.EntityType = "", "", ""
			}
			enriched = enriched.Merge(fromCompany)
		}

		var funding *candidate.Funding
		tc, err = toolCall("fetch_funding", companyID, func() error {
			if enricher == nil {
				return errNoEnricher
			}
			var err error
			funding, err = enricher.FetchFunding(ctx, companyID)
			return err
		})
		tools = append(tools, tc)
		if err == nil && funding != nil {
			enriched = enriched.WithHighlights(candidate.DeriveFundingHighlights(funding)...)
		}
	}

	after := sc.score(enriched)
	tools = append(tools, ToolCall{Name: "scoring.score", Input: enriched.ID, Success: true})

	added := diffTokens(p.Candidate.Tokens(), enriched.Tokens())
	reasons := scoring.Reasons(after)
	failures := 0
	for _, tc := range tools {
		if !tc.Success {
			failures++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Deep dive moved the score from %d to %d (%s).", before.Score, after.Score, after.Recommendation)
	if len(added) > 0 {
		fmt.Fprintf(&b, " New signals: %s.", strings.Join(added, ", "))
	}
	if failures > 0 {
		fmt.Fprintf(&b, " %d lookup(s) failed; the score uses the data that was available.", failures)
	}
	b.WriteString("\n" + strings.Join(reasons, "\n"))

	return &Outcome{
		Data: DeepDiveData{
			Candidate:       enriched,
			Before:          before,
			Result:          after,
			AddedHighlights: added,
			Reasons:         reasons,
		},
		Reasoning:   b.String(),
		ToolsCalled: tools,
	}, nil
}

var errNoEnricher = errors.New("enrichment is not configured")

// diffTokens returns tokens in after that are not in before.
func diffTokens(before, after []string) []string {
	seen := make(map[string]bool, len(before))
	for _, t := range before {
		seen[t] = true
	}
	out := []string{}
	for _, t := range after {
		if !seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// round1 rounds to one decimal place for display.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
