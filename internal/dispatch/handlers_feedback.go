package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/learning"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/scoring"
)

// BulkPayload is the payload of bulk-like and bulk-dislike. Entities carry
// features for learning; EntityIDs may name entities without features.
type BulkPayload struct {
	Entities  []candidate.Candidate `json:"entities,omitempty"`
	EntityIDs []string              `json:"entity_ids,omitempty"`
	Note      string                `json:"note,omitempty"`
}

// BulkDetail is the per-entity outcome of a bulk operation.
type BulkDetail struct {
	EntityID string `json:"entity_id"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// BulkResult summarizes a bulk operation. A failed entity never aborts the
// rest of the batch.
type BulkResult struct {
	Processed int          `json:"processed"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Details   []BulkDetail `json:"details"`
}

func (r *BulkResult) add(id string, err error) {
	r.Processed++
	detail := BulkDetail{EntityID: id, Success: err == nil}
	if err != nil {
		r.Failed++
		detail.Error = err.Error()
	} else {
		r.Succeeded++
	}
	r.Details = append(r.Details, detail)
}

func (d *Dispatcher) handleBulkLike(ctx context.Context, personaID string, req Request) (*Outcome, error) {
	return d.bulkFeedback(ctx, personaID, req, memory.ActionLike)
}

func (d *Dispatcher) handleBulkDislike(ctx context.Context, personaID string, req Request) (*Outcome, error) {
	return d.bulkFeedback(ctx, personaID, req, memory.ActionDislike)
}

func (d *Dispatcher) bulkFeedback(ctx context.Context, personaID string, req Request, action memory.Action) (*Outcome, error) {
	p, err := decode[BulkPayload](req)
	if err != nil {
		return nil, err
	}
	entities := append([]candidate.Candidate{}, p.Entities...)
	for _, id := range p.EntityIDs {
		entities = append(entities, candidate.Candidate{ID: id})
	}
	if len(entities) == 0 {
		return nil, Errorf(CodeInvalidPayload, "no entities given")
	}
	sc, err := d.scorerFor(personaID)
	if err != nil {
		return nil, err
	}

	result := BulkResult{Details: []BulkDetail{}}
	var tools []ToolCall
	for _, e := range entities {
		score := sc.score(e).Score
		tc, err := d.persistFeedback(ctx, personaID, e, action, p.Note, &score, nil)
		if tc != nil {
			tools = append(tools, *tc)
		}
		result.add(e.ID, err)
	}

	verb := "Liked"
	if action == memory.ActionDislike {
		verb = "Disliked"
	}
	reasoning := fmt.Sprintf("%s %d of %d entities.", verb, result.Succeeded, result.Processed)
	if result.Failed > 0 {
		reasoning += fmt.Sprintf(" %d failed and were skipped; see details.", result.Failed)
	}
	return &Outcome{Data: result, Reasoning: reasoning, ToolsCalled: tools}, nil
}

// persistFeedback saves one decision externally and then records it in
// memory. Memory is only updated once the external save succeeded. The
// returned tool call is nil when no sink is configured.
func (d *Dispatcher) persistFeedback(ctx context.Context, personaID string, e candidate.Candidate, action memory.Action, note string, aiScore *int, agreed *bool) (*ToolCall, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	var tc *ToolCall
	if d.deps.Feedback != nil {
		rec := FeedbackRecord{
			PersonaID:  personaID,
			EntityID:   e.ID,
			EntityType: entityType(e),
			Action:     action,
			Datapoints: e.Tokens(),
			Note:       note,
			AIScore:    aiScore,
			UserAgreed: agreed,
		}
		call, err := toolCall("save_feedback", e.ID, func() error {
			return d.deps.Feedback.SaveFeedback(ctx, rec)
		})
		tc = &call
		if err != nil {
			return tc, fmt.Errorf("saving feedback: %w", err)
		}
	}

	if _, err := d.deps.Learner.RecordFeedback(personaID, e, action, note); err != nil {
		return tc, fmt.Errorf("recording feedback: %w", err)
	}
	return tc, nil
}

func entityType(c candidate.Candidate) string {
	if c.EntityType == "" {
		return string(candidate.SourcePerson)
	}
	return c.EntityType
}

// AutoProcessPayload is the payload of auto-process. Zero thresholds use
// the dispatcher defaults.
type AutoProcessPayload struct {
	Candidates       []candidate.Candidate `json:"candidates"`
	LikeThreshold    int                   `json:"like_threshold,omitempty"`
	DislikeThreshold int                   `json:"dislike_threshold,omitempty"`
}

// AutoProcessData reports the partitions and what was persisted.
type AutoProcessData struct {
	AutoLike    []ScoreData `json:"auto_like"`
	AutoDislike []ScoreData `json:"auto_dislike"`
	NeedsReview []ScoreData `json:"needs_review"`
	Persisted   BulkResult  `json:"persisted"`
}

func toScoreData(in []learning.ScoredCandidate) []ScoreData {
	out := make([]ScoreData, 0, len(in))
	for _, sc := range in {
		out = append(out, ScoreData{
			CandidateID: sc.Candidate.ID,
			Name:        sc.Candidate.Name,
			Result:      sc.Result,
			Reasons:     scoring.Reasons(sc.Result),
		})
	}
	return out
}

func (d *Dispatcher) handleAutoProcess(ctx context.Context, personaID string, req Request) (*Outcome, error) {
	p, err := decode[AutoProcessPayload](req)
	if err != nil {
		return nil, err
	}
	like, dislike := p.LikeThreshold, p.DislikeThreshold
	if like == 0 {
		like = d.likeThreshold
	}
	if dislike == 0 {
		dislike = d.dislikeThreshold
	}

	rec, err := d.deps.Learner.RecommendBulkAction(personaID, p.Candidates, like, dislike)
	if err != nil {
		if errors.Is(err, learning.ErrInvalidThresholds) {
			return nil, Errorf(CodeInvalidPayload, "%v", err)
		}
		return nil, err
	}

	persisted := BulkResult{Details: []BulkDetail{}}
	tools := []ToolCall{{Name: "learning.recommend_bulk_action", Input: fmt.Sprintf("%d candidates", len(p.Candidates)), Success: true}}
	apply := func(group []learning.ScoredCandidate, action memory.Action) {
		for _, sc := range group {
			score := sc.Result.Score
			note := fmt.Sprintf("auto-process: score %d", score)
			tc, err := d.persistFeedback(ctx, personaID, sc.Candidate, action, note, &score, nil)
			if tc != nil {
				tools = append(tools, *tc)
			}
			persisted.add(sc.Candidate.ID, err)
		}
	}
	apply(rec.AutoLike, memory.ActionLike)
	apply(rec.AutoDislike, memory.ActionDislike)

	data := AutoProcessData{
		AutoLike:    toScoreData(rec.AutoLike),
		AutoDislike: toScoreData(rec.AutoDislike),
		NeedsReview: toScoreData(rec.NeedsReview),
		Persisted:   persisted,
	}
	reasoning := fmt.Sprintf(
		"Auto-processed %d candidates (like >= %d, dislike <= %d): %d liked, %d disliked, %d need review.",
		rec.Total(), like, dislike, len(rec.AutoLike), len(rec.AutoDislike), len(rec.NeedsReview))
	if persisted.Failed > 0 {
		reasoning += fmt.Sprintf(" %d feedback writes failed.", persisted.Failed)
	}
	return &Outcome{Data: data, Reasoning: reasoning, ToolsCalled: tools}, nil
}

// LearnCorrectionPayload is the payload of learn-correction. When
// ModelRecommendation is empty the candidate is scored to obtain it.
type LearnCorrectionPayload struct {
	Candidate           candidate.Candidate    `json:"candidate"`
	ModelRecommendation scoring.Recommendation `json:"model_recommendation,omitempty"`
	Action              memory.Action          `json:"action"`
	Datapoints          []string               `json:"datapoints,omitempty"`
	Note                string                 `json:"note,omitempty"`
}

// LearnCorrectionData reports what was learned.
type LearnCorrectionData struct {
	learning.Correction
	ModelRecommendation scoring.Recommendation `json:"model_recommendation"`
	ScoreAfter          int                    `json:"score_after"`
}

func (d *Dispatcher) handleLearnCorrection(ctx context.Context, personaID string, req Request) (*Outcome, error) {
	p, err := decode[LearnCorrectionPayload](req)
	if err != nil {
		return nil, err
	}
	if err := p.Candidate.Validate(); err != nil {
		return nil, Errorf(CodeInvalidPayload, "%v", err)
	}
	var userLiked bool
	switch p.Action {
	case memory.ActionLike, memory.ActionSave, memory.ActionCorrectionLike:
		userLiked = true
	case memory.ActionDislike, memory.ActionCorrectionDislike:
	default:
		return nil, Errorf(CodeInvalidPayload, "unsupported action %q", p.Action)
	}

	sc, err := d.scorerFor(personaID)
	if err != nil {
		return nil, err
	}
	prior := sc.score(p.Candidate)
	model := p.ModelRecommendation
	if model == "" {
		model = prior.Recommendation
	}

	// The external record goes first; memory only learns from a correction
	// the sink accepted.
	var tools []ToolCall
	if d.deps.Feedback != nil {
		disagreed, action := learning.ClassifyCorrection(model, userLiked)
		agreed := !disagreed
		rec := FeedbackRecord{
			PersonaID:  personaID,
			EntityID:   p.Candidate.ID,
			EntityType: entityType(p.Candidate),
			Action:     action,
			Datapoints: candidate.NormalizeAll(p.Datapoints),
			Note:       p.Note,
			AIScore:    &prior.Score,
			UserAgreed: &agreed,
		}
		tc, err := toolCall("save_feedback", p.Candidate.ID, func() error {
			return d.deps.Feedback.SaveFeedback(ctx, rec)
		})
		tools = append(tools, tc)
		if err != nil {
			return nil, fmt.Errorf("saving feedback: %w", err)
		}
	}

	corr, err := d.deps.Learner.ApplyCorrection(personaID, p.Candidate, model, userLiked, p.Datapoints, p.Note)
	if err != nil {
		return nil, err
	}
	tools = append(tools, ToolCall{Name: "learning.apply_correction", Input: p.Candidate.ID, Success: true})

	after, err := d.deps.Learner.Score(personaID, p.Candidate)
	if err != nil {
		return nil, err
	}

	var reasoning string
	if corr.Disagreed {
		updated := make([]string, 0, len(corr.UpdatedWeights))
		for tok, w := range corr.UpdatedWeights {
			updated = append(updated, fmt.Sprintf("%s=%+.2f", tok, w))
		}
		sort.Strings(updated)
		reasoning = fmt.Sprintf("The model said %s but you chose %s; adjusted %d datapoint weights (%s). Score now %d.",
			model, p.Action, len(updated), strings.Join(updated, ", "), after.Score)
	} else {
		reasoning = fmt.Sprintf("Your %s agrees with the model's %s; recorded as regular feedback.", p.Action, model)
	}

	return &Outcome{
		Data:        LearnCorrectionData{Correction: corr, ModelRecommendation: model, ScoreAfter: after.Score},
		Reasoning:   reasoning,
		ToolsCalled: tools,
	}, nil
}
