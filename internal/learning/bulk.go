package learning

import (
	"fmt"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/scoring"
)

// Default auto-process thresholds.
const (
	DefaultLikeThreshold    = 75
	DefaultDislikeThreshold = 35
)

// ScoredCandidate pairs a candidate with its score.
type ScoredCandidate struct {
	Candidate candidate.Candidate `json:"candidate"`
	Result    scoring.Result      `json:"result"`
}

// BulkRecommendation partitions candidates by score. Every input candidate
// lands in exactly one partition.
type BulkRecommendation struct {
	AutoLike    []ScoredCandidate `json:"auto_like"`
	AutoDislike []ScoredCandidate `json:"auto_dislike"`
	NeedsReview []ScoredCandidate `json:"needs_review"`
}

// Total returns the number of partitioned candidates.
func (b BulkRecommendation) Total() int {
	return len(b.AutoLike) + len(b.AutoDislike) + len(b.NeedsReview)
}

// RecommendBulkAction scores every candidate and partitions them into
// auto-like (score >= likeThreshold), auto-dislike (score <= dislikeThreshold)
// and needs-review. It reads memory but never writes it.
func (ln *Learner) RecommendBulkAction(personaID string, candidates []candidate.Candidate, likeThreshold, dislikeThreshold int) (BulkRecommendation, error) {
	if likeThreshold <= dislikeThreshold {
		return BulkRecommendation{}, fmt.Errorf("%w: like=%d dislike=%d", ErrInvalidThresholds, likeThreshold, dislikeThreshold)
	}
	p, err := ln.registry.Get(personaID)
	if err != nil {
		return BulkRecommendation{}, err
	}
	weights, err := ln.EffectiveWeights(personaID)
	if err != nil {
		return BulkRecommendation{}, err
	}

	out := BulkRecommendation{
		AutoLike:    []ScoredCandidate{},
		AutoDislike: []ScoredCandidate{},
		NeedsReview: []ScoredCandidate{},
	}
	for _, c := range candidates {
		sc := ScoredCandidate{Candidate: c, Result: scoring.Score(c, p.Recipe, weights)}
		switch {
		case sc.Result.Score >= likeThreshold:
			out.AutoLike = append(out.AutoLike, sc)
		case sc.Result.Score <= dislikeThreshold:
			out.AutoDislike = append(out.AutoDislike, sc)
		default:
			out.NeedsReview = append(out.NeedsReview, sc)
		}
	}
	return out, nil
}
