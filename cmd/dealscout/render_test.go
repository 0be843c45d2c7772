package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
	"github.com/fyrsmithlabs/dealscout/internal/scoring"
)

func TestRenderScoreCard(t *testing.T) {
	res := scoring.Result{
		Score:           82,
		MatchedPositive: []string{"serial_founder"},
		MatchedRedFlags: []string{"pivot_fatigue"},
		Recommendation:  scoring.StrongPass,
		Confidence:      40,
	}
	data := dispatch.ScoreData{
		CandidateID: "p1",
		Name:        "Ada",
		Result:      res,
		Reasons:     append(scoring.Reasons(res), "Preferred location: sf"),
	}

	out := renderScoreCard("Early Stage", data)

	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "Early Stage")
	assert.Contains(t, out, "82")
	assert.Contains(t, out, "STRONG_PASS")
	assert.Contains(t, out, "40%")
	assert.Contains(t, out, "serial_founder")
	assert.Contains(t, out, "pivot_fatigue")
	assert.Contains(t, out, "Preferred location: sf")
	assert.NotContains(t, out, "Strengths: serial_founder")
}

func TestRenderScoreCard_FallsBackToID(t *testing.T) {
	out := renderScoreCard("Angel", dispatch.ScoreData{
		CandidateID: "co_9",
		Result:      scoring.Result{Score: 50, Recommendation: scoring.Pass},
	})
	assert.Contains(t, out, "co_9")
	assert.Contains(t, out, "PASS")
}

func TestScoreBar_Clamps(t *testing.T) {
	assert.Equal(t, scoreBar(100), scoreBar(150))
	assert.Equal(t, scoreBar(0), scoreBar(-5))
}

func TestExtraReasons(t *testing.T) {
	got := extraReasons([]string{
		"Score 70/100 (SOFT_PASS), model confidence 0%",
		"Strengths: a",
		"Concerns: b",
		"Red flags: c",
		"Experience within the target range",
	})
	assert.Equal(t, []string{"Experience within the target range"}, got)
	assert.Empty(t, extraReasons(nil))
}

func TestRenderPersonas(t *testing.T) {
	reg := persona.NewDefaultRegistry()
	out := renderPersonas(reg.List(), "angel")

	for _, id := range reg.IDs() {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "●")
	assert.Contains(t, out, "likes:")
}

func TestScoreDataFrom(t *testing.T) {
	sd := dispatch.ScoreData{CandidateID: "p1"}
	got, ok := scoreDataFrom(dispatch.Response{Data: sd})
	assert.True(t, ok)
	assert.Equal(t, "p1", got.CandidateID)

	got, ok = scoreDataFrom(dispatch.Response{Data: dispatch.DeepDiveData{
		Result:  scoring.Result{Score: 77},
		Reasons: []string{"r"},
	}})
	assert.True(t, ok)
	assert.Equal(t, 77, got.Result.Score)

	_, ok = scoreDataFrom(dispatch.Response{Data: "nope"})
	assert.False(t, ok)
}
