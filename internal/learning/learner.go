package learning

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
	"github.com/fyrsmithlabs/dealscout/internal/scoring"
)

// Accumulator constants.
const (
	InitialConfidence   = 0.5
	ConfidenceStep      = 0.1
	MaxConfidence       = 1.0
	PreferenceInfluence = 0.5
	CorrectionWeight    = 2.0

	DefaultMaxExamples      = 5
	DefaultRewardHistoryCap = 100
)

// Reward per feedback action.
const (
	RewardLike              = 1.0
	RewardDislike           = -1.0
	RewardSave              = 2.0
	RewardCorrectionLike    = 1.5
	RewardCorrectionDislike = -0.5
)

// Preference categories.
const (
	CategoryHighlight  = "highlight"
	CategoryIndustry   = "industry"
	CategorySeniority  = "seniority"
	CategoryRegion     = "region"
	CategorySignalType = "signal_type"
	CategoryCompany    = "company"
)

// Errors for learner operations.
var (
	ErrInvalidAction     = errors.New("invalid feedback action")
	ErrInvalidThresholds = errors.New("like threshold must exceed dislike threshold")
	ErrEmptyValue        = errors.New("preference value cannot be empty")
)

// weightBearing lists the categories whose preferences feed learned weights.
var weightBearing = map[string]bool{
	CategoryHighlight:  true,
	CategoryIndustry:   true,
	CategorySeniority:  true,
	CategoryRegion:     true,
	CategorySignalType: true,
	CategoryCompany:    true,
}

// RewardFor returns the fixed reward of an action.
func RewardFor(a memory.Action) float64 {
	switch a {
	case memory.ActionLike:
		return RewardLike
	case memory.ActionDislike:
		return RewardDislike
	case memory.ActionSave:
		return RewardSave
	case memory.ActionCorrectionLike:
		return RewardCorrectionLike
	case memory.ActionCorrectionDislike:
		return RewardCorrectionDislike
	default:
		return 0
	}
}

// Learner applies feedback to persona memory.
type Learner struct {
	registry *persona.Registry
	store    *memory.Store
	logger   *zap.Logger
	now      func() time.Time

	maxExamples      int
	rewardHistoryCap int
}

// Option configures a Learner.
type Option func(*Learner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ln *Learner) {
		if l != nil {
			ln.logger = l
		}
	}
}

// WithMaxExamples bounds the examples kept per preference.
func WithMaxExamples(n int) Option {
	return func(ln *Learner) {
		if n > 0 {
			ln.maxExamples = n
		}
	}
}

// WithRewardHistoryCap bounds the reward ring buffer.
func WithRewardHistoryCap(n int) Option {
	return func(ln *Learner) {
		if n > 0 {
			ln.rewardHistoryCap = n
		}
	}
}

// WithClock overrides the time source for timestamps.
func WithClock(now func() time.Time) Option {
	return func(ln *Learner) { ln.now = now }
}

// NewLearner creates a learner over the registry and store.
func NewLearner(registry *persona.Registry, store *memory.Store, opts ...Option) *Learner {
	ln := &Learner{
		registry:         registry,
		store:            store,
		logger:           zap.NewNop(),
		now:              time.Now,
		maxExamples:      DefaultMaxExamples,
		rewardHistoryCap: DefaultRewardHistoryCap,
	}
	for _, opt := range opts {
		opt(ln)
	}
	return ln
}

// Learn records one observation of (category, value) for a persona.
func (ln *Learner) Learn(personaID, category, value string, positive bool, weight float64) error {
	p, err := ln.registry.Get(personaID)
	if err != nil {
		return err
	}
	if candidate.NormalizeToken(value) == "" {
		return ErrEmptyValue
	}
	return ln.store.Mutate(personaID, func(st *memory.PersonaMemoryState) error {
		ln.learnInto(st, &p.Recipe, category, value, "", positive, weight)
		return nil
	})
}

// learnInto applies the accumulator to st and refreshes the derived weight.
func (ln *Learner) learnInto(st *memory.PersonaMemoryState, recipe *persona.Recipe, category, value, example string, positive bool, weight float64) {
	category = candidate.NormalizeToken(category)
	value = candidate.NormalizeToken(value)
	if category == "" || value == "" {
		return
	}
	if weight <= 0 {
		weight = 1
	}
	now := ln.now().UTC()

	pref := st.Preference(memory.PreferenceKey(category, value))
	if pref == nil {
		np := memory.Preference{Category: category, Value: value, Examples: []string{}}
		if positive {
			np.Confidence = InitialConfidence
		} else {
			np.NegativeConfidence = InitialConfidence
		}
		st.LearnedPreferences = append(st.LearnedPreferences, np)
		pref = &st.LearnedPreferences[len(st.LearnedPreferences)-1]
	} else if positive {
		pref.Confidence = math.Min(MaxConfidence, pref.Confidence+ConfidenceStep*weight)
	} else {
		pref.NegativeConfidence = math.Min(MaxConfidence, pref.NegativeConfidence+ConfidenceStep*weight)
	}
	pref.LastUpdated = now

	if example != "" {
		pref.Examples = append(pref.Examples, example)
		if len(pref.Examples) > ln.maxExamples {
			pref.Examples = append([]string{}, pref.Examples[len(pref.Examples)-ln.maxExamples:]...)
		}
	}

	if weightBearing[category] {
		base := recipe.BaseWeight(value)
		st.LearnedWeights[value] = clampWeight(base+PreferenceInfluence*pref.Net(), base)
	}
}

// clampWeight bounds w to [-1, 1], widened to include base so a recipe
// weight outside that range is never pulled back toward zero by learning.
func clampWeight(w, base float64) float64 {
	return math.Max(math.Min(-1, base), math.Min(math.Max(1, base), w))
}

// features lists the (category, value) pairs derivable from a candidate.
func features(c candidate.Candidate) [][2]string {
	var out [][2]string
	add := func(cat, v string) {
		if candidate.NormalizeToken(v) != "" {
			out = append(out, [2]string{cat, v})
		}
	}
	add(CategoryIndustry, c.Industry)
	add(CategorySeniority, c.Title)
	add(CategoryRegion, c.Region)
	add(CategorySignalType, c.SignalType)
	add(CategoryCompany, c.CurrentCompany)
	for _, h := range c.Tokens() {
		add(CategoryHighlight, h)
	}
	return out
}

// RecordFeedback applies a like, dislike, save or correction for entity:
// list membership, reward history and a learn call per derivable feature.
func (ln *Learner) RecordFeedback(personaID string, entity candidate.Candidate, action memory.Action, reason string) (memory.RewardEvent, error) {
	if !action.Valid() {
		return memory.RewardEvent{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if err := entity.Validate(); err != nil {
		return memory.RewardEvent{}, err
	}
	p, err := ln.registry.Get(personaID)
	if err != nil {
		return memory.RewardEvent{}, err
	}

	var ev memory.RewardEvent
	err = ln.store.Mutate(personaID, func(st *memory.PersonaMemoryState) error {
		ev = ln.applyFeedback(st, &p.Recipe, entity, action, reason, 1)
		return nil
	})
	if err != nil {
		return memory.RewardEvent{}, err
	}

	ln.logger.Debug("feedback recorded",
		zap.String("persona.id", personaID),
		zap.String("entity.id", entity.ID),
		zap.String("action", string(action)),
		zap.Float64("reward", ev.Reward))
	return ev, nil
}

func (ln *Learner) applyFeedback(st *memory.PersonaMemoryState, recipe *persona.Recipe, entity candidate.Candidate, action memory.Action, reason string, weight float64) memory.RewardEvent {
	now := ln.now().UTC()
	ref := memory.EntityRef{
		ID:        entity.ID,
		Name:      entity.Name,
		Reason:    reason,
		Timestamp: now,
		Features:  entity,
	}
	ref.Features.Highlights = append([]string(nil), entity.Highlights...)

	positive := action.IsPositive()
	if positive {
		st.Like(ref)
	} else {
		st.Dislike(ref)
	}

	ev := memory.RewardEvent{
		ID:        uuid.New().String(),
		EntityID:  entity.ID,
		Action:    action,
		Reward:    RewardFor(action),
		Features:  entity.Tokens(),
		Timestamp: now,
	}
	st.AppendReward(ev, ln.rewardHistoryCap)

	example := entity.Name
	if example == "" {
		example = entity.ID
	}
	for _, f := range features(entity) {
		ln.learnInto(st, recipe, f[0], f[1], example, positive, weight)
	}
	return ev
}

// Correction describes the outcome of ApplyCorrection.
type Correction struct {
	Disagreed      bool               `json:"disagreed"`
	Action         memory.Action      `json:"action"`
	Reward         float64            `json:"reward"`
	UpdatedWeights map[string]float64 `json:"updated_weights"`
}

// IsPositiveRecommendation reports whether a recommendation favours the candidate.
func IsPositiveRecommendation(r scoring.Recommendation) bool {
	return r == scoring.StrongPass || r == scoring.SoftPass
}

// ClassifyCorrection reports whether the user's verdict disagrees with the
// model and the action that verdict is recorded as.
func ClassifyCorrection(model scoring.Recommendation, userLiked bool) (bool, memory.Action) {
	disagreed := IsPositiveRecommendation(model) != userLiked
	switch {
	case disagreed && userLiked:
		return true, memory.ActionCorrectionLike
	case disagreed:
		return true, memory.ActionCorrectionDislike
	case userLiked:
		return false, memory.ActionLike
	default:
		return false, memory.ActionDislike
	}
}

// ApplyCorrection compares the model's recommendation with the user's
// verdict. On disagreement it records a correction and learns every supplied
// datapoint (or the candidate's highlights when none are given) at
// CorrectionWeight in the user's direction. On agreement it records a plain
// like or dislike.
func (ln *Learner) ApplyCorrection(personaID string, entity candidate.Candidate, model scoring.Recommendation, userLiked bool, datapoints []string, reason string) (Correction, error) {
	if err := entity.Validate(); err != nil {
		return Correction{}, err
	}
	p, err := ln.registry.Get(personaID)
	if err != nil {
		return Correction{}, err
	}

	disagreed, action := ClassifyCorrection(model, userLiked)

	tokens := candidate.NormalizeAll(datapoints)
	if len(tokens) == 0 {
		tokens = entity.Tokens()
	}

	out := Correction{Disagreed: disagreed, Action: action, UpdatedWeights: map[string]float64{}}
	err = ln.store.Mutate(personaID, func(st *memory.PersonaMemoryState) error {
		ev := ln.applyFeedback(st, &p.Recipe, entity, action, reason, 1)
		out.Reward = ev.Reward
		if !disagreed {
			return nil
		}
		example := entity.Name
		if example == "" {
			example = entity.ID
		}
		for _, tok := range tokens {
			ln.learnInto(st, &p.Recipe, CategoryHighlight, tok, example, userLiked, CorrectionWeight)
			out.UpdatedWeights[tok] = st.LearnedWeights[tok]
		}
		return nil
	})
	if err != nil {
		return Correction{}, err
	}

	if disagreed {
		ln.logger.Info("model corrected",
			zap.String("persona.id", personaID),
			zap.String("entity.id", entity.ID),
			zap.String("model", string(model)),
			zap.Bool("user_liked", userLiked),
			zap.Int("datapoints", len(tokens)))
	}
	return out, nil
}

// EffectiveWeights merges the persona's recipe defaults with its learned weights.
func (ln *Learner) EffectiveWeights(personaID string) (map[string]float64, error) {
	p, err := ln.registry.Get(personaID)
	if err != nil {
		return nil, err
	}
	st, err := ln.store.GetState(personaID)
	if err != nil {
		return nil, err
	}
	return scoring.MergeWeights(p.Recipe.DefaultWeights, st.LearnedWeights), nil
}

// Score rates a candidate with the persona's effective weights.
func (ln *Learner) Score(personaID string, c candidate.Candidate) (scoring.Result, error) {
	p, err := ln.registry.Get(personaID)
	if err != nil {
		return scoring.Result{}, err
	}
	weights, err := ln.EffectiveWeights(personaID)
	if err != nil {
		return scoring.Result{}, err
	}
	return scoring.Score(c, p.Recipe, weights), nil
}
