package learning

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
	"github.com/fyrsmithlabs/dealscout/internal/scoring"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newLearner(t *testing.T, opts ...Option) (*Learner, *memory.Store) {
	t.Helper()
	reg := persona.NewDefaultRegistry()
	store := memory.NewStore(memory.WithPersonas(reg))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewLearner(reg, store, opts...), store
}

func pref(t *testing.T, store *memory.Store, personaID, key string) memory.Preference {
	t.Helper()
	st, err := store.GetState(personaID)
	require.NoError(t, err)
	p := st.Preference(key)
	require.NotNil(t, p, "preference %s", key)
	return *p
}

func TestLearn_Accumulates(t *testing.T) {
	ln, store := newLearner(t)

	require.NoError(t, ln.Learn("early", "highlight", "serial_founder", true, 1))
	assert.Equal(t, 0.5, pref(t, store, "early", "highlight:serial_founder").Confidence)

	require.NoError(t, ln.Learn("early", "highlight", "serial_founder", true, 1))
	require.NoError(t, ln.Learn("early", "highlight", "serial_founder", true, 1))

	p := pref(t, store, "early", "highlight:serial_founder")
	assert.InDelta(t, 0.7, p.Confidence, 1e-9)
	assert.Equal(t, 0.0, p.NegativeConfidence)
	assert.Equal(t, fixedNow, p.LastUpdated)
}

func TestLearn_CapsAtOne(t *testing.T) {
	ln, store := newLearner(t)
	for i := 0; i < 20; i++ {
		require.NoError(t, ln.Learn("early", "region", "London", true, 1))
	}
	assert.Equal(t, 1.0, pref(t, store, "early", "region:london").Confidence)
}

func TestLearn_NegativeMirrorsAndNetDrivesWeight(t *testing.T) {
	ln, store := newLearner(t)

	require.NoError(t, ln.Learn("early", "highlight", "solo_founder", false, 1))
	p := pref(t, store, "early", "highlight:solo_founder")
	assert.Equal(t, 0.0, p.Confidence)
	assert.Equal(t, 0.5, p.NegativeConfidence)

	st, err := store.GetState("early")
	require.NoError(t, err)
	// default -0.3 + 0.5 * (0 - 0.5)
	assert.InDelta(t, -0.55, st.LearnedWeights["solo_founder"], 1e-9)
}

func TestLearn_WeightClamped(t *testing.T) {
	ln, store := newLearner(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, ln.Learn("early", "highlight", "serial_founder", true, 1))
	}
	st, err := store.GetState("early")
	require.NoError(t, err)
	assert.Equal(t, 1.0, st.LearnedWeights["serial_founder"])
}

func TestLearn_NonWeightCategory(t *testing.T) {
	ln, store := newLearner(t)
	require.NoError(t, ln.Learn("early", "stage", "seed", true, 1))

	st, err := store.GetState("early")
	require.NoError(t, err)
	assert.NotNil(t, st.Preference("stage:seed"))
	assert.NotContains(t, st.LearnedWeights, "seed")
}

func TestLearn_Errors(t *testing.T) {
	ln, _ := newLearner(t)
	assert.ErrorIs(t, ln.Learn("nope", "highlight", "x", true, 1), persona.ErrUnknownPersona)
	assert.ErrorIs(t, ln.Learn("early", "highlight", "  ", true, 1), ErrEmptyValue)
}

func founder(id string) candidate.Candidate {
	return candidate.Candidate{
		ID:         id,
		Name:       "Founder " + id,
		Highlights: []string{"serial_founder", "YC Alumni"},
		Industry:   "Fintech",
		Title:      "CEO",
		Region:     "London",
		SignalType: "new_company",
	}
}

func TestRecordFeedback_FanOutAndReward(t *testing.T) {
	ln, store := newLearner(t)

	ev, err := ln.RecordFeedback("early", founder("p1"), memory.ActionLike, "strong team")
	require.NoError(t, err)
	assert.Equal(t, RewardLike, ev.Reward)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, []string{"serial_founder", "yc_alumni"}, ev.Features)

	st, err := store.GetState("early")
	require.NoError(t, err)
	assert.True(t, st.IsLiked("p1"))
	assert.Equal(t, "strong team", st.LikedEntities[0].Reason)
	assert.Equal(t, 1.0, st.TotalReward)
	require.Len(t, st.RewardHistory, 1)

	for _, key := range []string{
		"industry:fintech", "seniority:ceo", "region:london",
		"signal_type:new_company", "highlight:serial_founder", "highlight:yc_alumni",
	} {
		p := st.Preference(key)
		require.NotNil(t, p, key)
		assert.Equal(t, 0.5, p.Confidence, key)
		assert.Equal(t, []string{"Founder p1"}, p.Examples, key)
	}
}

func TestRecordFeedback_SwitchesLists(t *testing.T) {
	ln, store := newLearner(t)

	_, err := ln.RecordFeedback("early", founder("p1"), memory.ActionDislike, "")
	require.NoError(t, err)
	_, err = ln.RecordFeedback("early", founder("p1"), memory.ActionSave, "")
	require.NoError(t, err)

	st, err := store.GetState("early")
	require.NoError(t, err)
	assert.True(t, st.IsLiked("p1"))
	assert.False(t, st.IsDisliked("p1"))
	assert.Equal(t, RewardDislike+RewardSave, st.TotalReward)
}

func TestRecordFeedback_RewardHistoryBounded(t *testing.T) {
	ln, store := newLearner(t, WithRewardHistoryCap(3), WithMaxExamples(2))

	for i := 0; i < 6; i++ {
		_, err := ln.RecordFeedback("early", founder(fmt.Sprintf("p%d", i)), memory.ActionLike, "")
		require.NoError(t, err)
	}

	st, err := store.GetState("early")
	require.NoError(t, err)
	require.Len(t, st.RewardHistory, 3)
	assert.Equal(t, "p3", st.RewardHistory[0].EntityID)
	assert.Equal(t, 6.0, st.TotalReward)
	assert.Equal(t, []string{"Founder p4", "Founder p5"}, st.Preference("industry:fintech").Examples)
}

func TestRecordFeedback_Errors(t *testing.T) {
	ln, _ := newLearner(t)

	_, err := ln.RecordFeedback("early", founder("p1"), memory.Action("MEH"), "")
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = ln.RecordFeedback("early", candidate.Candidate{}, memory.ActionLike, "")
	assert.ErrorIs(t, err, candidate.ErrEmptyID)

	_, err = ln.RecordFeedback("ghost", founder("p1"), memory.ActionLike, "")
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)
}

func TestRecordFeedback_PersonaIsolation(t *testing.T) {
	ln, store := newLearner(t)

	_, err := ln.RecordFeedback("growth", founder("g1"), memory.ActionLike, "")
	require.NoError(t, err)
	before, err := store.GetState("growth")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := ln.RecordFeedback("early", founder(fmt.Sprintf("e%d", i)), memory.ActionDislike, "")
		require.NoError(t, err)
	}

	after, err := store.GetState("growth")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApplyCorrection_Disagreement(t *testing.T) {
	ln, store := newLearner(t)

	c := candidate.Candidate{ID: "p9", Name: "Quiet Builder", Highlights: []string{"deep_tech", "solo_founder"}}
	out, err := ln.ApplyCorrection("early", c, scoring.Pass, true, []string{"solo_founder"}, "underrated")
	require.NoError(t, err)

	assert.True(t, out.Disagreed)
	assert.Equal(t, memory.ActionCorrectionLike, out.Action)
	assert.Equal(t, RewardCorrectionLike, out.Reward)
	require.Contains(t, out.UpdatedWeights, "solo_founder")

	// Fan-out creates the preference at 0.5, the correction adds 0.1*2.
	p := pref(t, store, "early", "highlight:solo_founder")
	assert.InDelta(t, 0.7, p.Confidence, 1e-9)
	// default -0.3 + 0.5*0.7
	assert.InDelta(t, 0.05, out.UpdatedWeights["solo_founder"], 1e-9)

	st, err := store.GetState("early")
	require.NoError(t, err)
	assert.True(t, st.IsLiked("p9"))
}

func TestApplyCorrection_DisagreeDislike(t *testing.T) {
	ln, store := newLearner(t)

	out, err := ln.ApplyCorrection("early", founder("p1"), scoring.StrongPass, false, nil, "")
	require.NoError(t, err)

	assert.True(t, out.Disagreed)
	assert.Equal(t, memory.ActionCorrectionDislike, out.Action)
	assert.Contains(t, out.UpdatedWeights, "serial_founder", "falls back to highlights")

	st, err := store.GetState("early")
	require.NoError(t, err)
	assert.True(t, st.IsDisliked("p1"))
	assert.Equal(t, RewardCorrectionDislike, st.TotalReward)
}

func TestApplyCorrection_Agreement(t *testing.T) {
	ln, store := newLearner(t)

	out, err := ln.ApplyCorrection("early", founder("p1"), scoring.SoftPass, true, []string{"serial_founder"}, "")
	require.NoError(t, err)

	assert.False(t, out.Disagreed)
	assert.Equal(t, memory.ActionLike, out.Action)
	assert.Empty(t, out.UpdatedWeights)
	assert.Equal(t, 0.5, pref(t, store, "early", "highlight:serial_founder").Confidence)
}

func TestEffectiveWeightsAndScore(t *testing.T) {
	ln, _ := newLearner(t)

	w, err := ln.EffectiveWeights("early")
	require.NoError(t, err)
	assert.Equal(t, 0.95, w["serial_founder"])

	res, err := ln.Score("early", candidate.Candidate{ID: "x", Highlights: []string{"serial_founder", "yc_alumni"}})
	require.NoError(t, err)
	assert.Equal(t, scoring.StrongPass, res.Recommendation)

	for i := 0; i < 5; i++ {
		require.NoError(t, ln.Learn("early", "highlight", "yc_alumni", false, 1))
	}
	res2, err := ln.Score("early", candidate.Candidate{ID: "x", Highlights: []string{"serial_founder", "yc_alumni"}})
	require.NoError(t, err)
	assert.Less(t, res2.Score, res.Score, "learned dislike lowers the score")

	_, err = ln.Score("ghost", candidate.Candidate{})
	assert.ErrorIs(t, err, persona.ErrUnknownPersona)
}
