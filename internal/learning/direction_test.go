package learning

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
	"github.com/fyrsmithlabs/dealscout/internal/scoring"
)

type ruleCase struct {
	name  string
	token string
	c     candidate.Candidate
}

// ruleCandidates builds one single-feature candidate per rule token of a
// recipe, placing each token in the field that scoring reads it from.
func ruleCandidates(p persona.Persona) []ruleCase {
	var out []ruleCase
	add := func(field, token string, c candidate.Candidate) {
		c.ID = fmt.Sprintf("%s-%s-%s", p.ID, field, token)
		out = append(out, ruleCase{name: field + ":" + token, token: candidate.NormalizeToken(token), c: c})
	}
	r := p.Recipe
	for _, list := range [][]string{r.PositiveHighlights, r.NegativeHighlights, r.RedFlags} {
		for _, tok := range list {
			add("highlight", tok, candidate.Candidate{Highlights: []string{tok}})
		}
	}
	for _, tok := range r.SignalTypes {
		add("signal", tok, candidate.Candidate{SignalType: tok})
	}
	for _, tok := range r.SeniorityKeywords {
		add("title", tok, candidate.Candidate{Title: tok})
	}
	for _, tok := range r.ValuedCompanies {
		add("company", tok, candidate.Candidate{CurrentCompany: tok})
	}
	return out
}

// weighted sums the unrounded contribution of every matched rule.
func weighted(res scoring.Result) float64 {
	var sum float64
	for _, a := range res.Adjustments {
		sum += a.Delta
	}
	return sum
}

func scoreOf(t *testing.T, ln *Learner, personaID string, c candidate.Candidate) scoring.Result {
	t.Helper()
	res, err := ln.Score(personaID, c)
	require.NoError(t, err)
	return res
}

func TestFeedbackDirection_EveryBuiltinRule(t *testing.T) {
	for _, p := range persona.NewDefaultRegistry().List() {
		for _, rc := range ruleCandidates(p) {
			c := rc.c
			base := p.Recipe.BaseWeight(rc.token)

			t.Run(p.ID+"/like/"+rc.name, func(t *testing.T) {
				ln, _ := newLearner(t)
				before := scoreOf(t, ln, p.ID, c)
				_, err := ln.RecordFeedback(p.ID, c, memory.ActionLike, "")
				require.NoError(t, err)
				after := scoreOf(t, ln, p.ID, c)

				assert.GreaterOrEqual(t, after.Score, before.Score)
				if base < 1 {
					assert.Greater(t, weighted(after), weighted(before))
				}
			})

			t.Run(p.ID+"/dislike/"+rc.name, func(t *testing.T) {
				ln, _ := newLearner(t)
				before := scoreOf(t, ln, p.ID, c)
				_, err := ln.RecordFeedback(p.ID, c, memory.ActionDislike, "")
				require.NoError(t, err)
				after := scoreOf(t, ln, p.ID, c)

				assert.LessOrEqual(t, after.Score, before.Score)
				if base > -1 {
					assert.Less(t, weighted(after), weighted(before))
				} else {
					assert.Equal(t, weighted(before), weighted(after), "red flags at the floor stay put")
				}
			})
		}
	}
}

func TestFeedbackDirection_UnweightedTitleAndCompany(t *testing.T) {
	ln, _ := newLearner(t)
	c := candidate.Candidate{ID: "cto-1", Title: "CTO", CurrentCompany: "Google"}

	before := scoreOf(t, ln, persona.EarlyStageID, c)
	require.Equal(t, 61, before.Score)

	_, err := ln.RecordFeedback(persona.EarlyStageID, c, memory.ActionLike, "")
	require.NoError(t, err)
	after := scoreOf(t, ln, persona.EarlyStageID, c)
	assert.Greater(t, after.Score, before.Score)

	weights, err := ln.EffectiveWeights(persona.EarlyStageID)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, weights["cto"], 1e-9)
	assert.InDelta(t, 0.75, weights["google"], 1e-9)
}

func TestFeedbackDirection_RepeatedLikesOfPenalty(t *testing.T) {
	ln, _ := newLearner(t)
	c := candidate.Candidate{ID: "solo", Highlights: []string{"solo_founder"}}

	prev := scoreOf(t, ln, persona.EarlyStageID, c).Score
	for i := 0; i < 8; i++ {
		require.NoError(t, ln.Learn(persona.EarlyStageID, CategoryHighlight, "solo_founder", true, 1))
		got := scoreOf(t, ln, persona.EarlyStageID, c).Score
		assert.GreaterOrEqual(t, got, prev, "like %d", i+1)
		prev = got
	}
	assert.Equal(t, 50, prev, "a fully liked penalty is neutral, never a bonus")
}

func TestFeedbackDirection_RepeatedDislikesOfStrength(t *testing.T) {
	ln, _ := newLearner(t)
	c := candidate.Candidate{ID: "yc", Highlights: []string{"yc_alumni"}}

	prev := scoreOf(t, ln, persona.EarlyStageID, c).Score
	for i := 0; i < 8; i++ {
		require.NoError(t, ln.Learn(persona.EarlyStageID, CategoryHighlight, "yc_alumni", false, 1))
		got := scoreOf(t, ln, persona.EarlyStageID, c).Score
		assert.LessOrEqual(t, got, prev, "dislike %d", i+1)
		prev = got
	}
}
