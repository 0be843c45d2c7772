package memory

import (
	"slices"
	"time"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
)

// Action is a user feedback action.
type Action string

const (
	ActionLike              Action = "LIKE"
	ActionDislike           Action = "DISLIKE"
	ActionSave              Action = "SAVE"
	ActionCorrectionLike    Action = "CORRECTION_LIKE"
	ActionCorrectionDislike Action = "CORRECTION_DISLIKE"
)

// IsPositive reports whether the action expresses approval.
func (a Action) IsPositive() bool {
	switch a {
	case ActionLike, ActionSave, ActionCorrectionLike:
		return true
	default:
		return false
	}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionLike, ActionDislike, ActionSave, ActionCorrectionLike, ActionCorrectionDislike:
		return true
	default:
		return false
	}
}

// EntityRef records an entity the user reacted to.
type EntityRef struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Reason    string              `json:"reason,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
	Features  candidate.Candidate `json:"features"`
}

// Preference is a learned like/dislike for one (category, value) pair.
type Preference struct {
	Category           string    `json:"category"`
	Value              string    `json:"value"`
	Confidence         float64   `json:"confidence"`
	NegativeConfidence float64   `json:"negativeConfidence"`
	Examples           []string  `json:"examples"`
	LastUpdated        time.Time `json:"lastUpdated"`
}

// Net is the signed preference strength used by scoring and summaries.
func (p Preference) Net() float64 {
	return p.Confidence - p.NegativeConfidence
}

// Key returns the "category:value" lookup key.
func (p Preference) Key() string {
	return PreferenceKey(p.Category, p.Value)
}

// PreferenceKey builds the normalized key for a (category, value) pair.
func PreferenceKey(category, value string) string {
	return candidate.NormalizeToken(category) + ":" + candidate.NormalizeToken(value)
}

// RewardEvent is one entry in the bounded reward history.
type RewardEvent struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entityId"`
	Action    Action    `json:"action"`
	Reward    float64   `json:"reward"`
	Features  []string  `json:"features"`
	Timestamp time.Time `json:"timestamp"`
}

// PersonaMemoryState is the mutable state of one persona.
type PersonaMemoryState struct {
	LikedEntities      []EntityRef        `json:"likedEntities"`
	DislikedEntities   []EntityRef        `json:"dislikedEntities"`
	LearnedWeights     map[string]float64 `json:"learnedWeights"`
	LearnedPreferences []Preference       `json:"learnedPreferences"`
	TotalReward        float64            `json:"totalReward"`
	RewardHistory      []RewardEvent      `json:"rewardHistory"`
}

// NewPersonaMemoryState returns an empty state with all collections allocated.
func NewPersonaMemoryState() *PersonaMemoryState {
	return &PersonaMemoryState{
		LikedEntities:      []EntityRef{},
		DislikedEntities:   []EntityRef{},
		LearnedWeights:     map[string]float64{},
		LearnedPreferences: []Preference{},
		RewardHistory:      []RewardEvent{},
	}
}

// Clone returns a deep copy.
func (s *PersonaMemoryState) Clone() *PersonaMemoryState {
	if s == nil {
		return NewPersonaMemoryState()
	}
	out := &PersonaMemoryState{
		LikedEntities:      cloneRefs(s.LikedEntities),
		DislikedEntities:   cloneRefs(s.DislikedEntities),
		LearnedWeights:     make(map[string]float64, len(s.LearnedWeights)),
		LearnedPreferences: make([]Preference, len(s.LearnedPreferences)),
		TotalReward:        s.TotalReward,
		RewardHistory:      make([]RewardEvent, len(s.RewardHistory)),
	}
	for k, v := range s.LearnedWeights {
		out.LearnedWeights[k] = v
	}
	for i, p := range s.LearnedPreferences {
		p.Examples = append([]string{}, p.Examples...)
		out.LearnedPreferences[i] = p
	}
	for i, e := range s.RewardHistory {
		e.Features = append([]string{}, e.Features...)
		out.RewardHistory[i] = e
	}
	return out
}

func cloneRefs(in []EntityRef) []EntityRef {
	out := make([]EntityRef, len(in))
	for i, r := range in {
		r.Features.Highlights = append([]string(nil), r.Features.Highlights...)
		out[i] = r
	}
	return out
}

// normalize allocates nil collections after decoding.
func (s *PersonaMemoryState) normalize() {
	if s.LikedEntities == nil {
		s.LikedEntities = []EntityRef{}
	}
	if s.DislikedEntities == nil {
		s.DislikedEntities = []EntityRef{}
	}
	if s.LearnedWeights == nil {
		s.LearnedWeights = map[string]float64{}
	}
	if s.LearnedPreferences == nil {
		s.LearnedPreferences = []Preference{}
	}
	if s.RewardHistory == nil {
		s.RewardHistory = []RewardEvent{}
	}
}

// Like moves ref into the liked list, removing any prior like or dislike of
// the same entity. The most recent reaction is appended last.
func (s *PersonaMemoryState) Like(ref EntityRef) {
	s.DislikedEntities = removeRef(s.DislikedEntities, ref.ID)
	s.LikedEntities = append(removeRef(s.LikedEntities, ref.ID), ref)
}

// Dislike is the mirror of Like.
func (s *PersonaMemoryState) Dislike(ref EntityRef) {
	s.LikedEntities = removeRef(s.LikedEntities, ref.ID)
	s.DislikedEntities = append(removeRef(s.DislikedEntities, ref.ID), ref)
}

// IsLiked reports whether the entity is in the liked list.
func (s *PersonaMemoryState) IsLiked(id string) bool {
	return slices.ContainsFunc(s.LikedEntities, func(r EntityRef) bool { return r.ID == id })
}

// IsDisliked reports whether the entity is in the disliked list.
func (s *PersonaMemoryState) IsDisliked(id string) bool {
	return slices.ContainsFunc(s.DislikedEntities, func(r EntityRef) bool { return r.ID == id })
}

func removeRef(refs []EntityRef, id string) []EntityRef {
	return slices.DeleteFunc(refs, func(r EntityRef) bool { return r.ID == id })
}

// AppendReward adds ev to the reward history, evicting the oldest entries
// beyond limit, and accumulates the reward total. A limit of zero or less
// keeps the full history.
func (s *PersonaMemoryState) AppendReward(ev RewardEvent, limit int) {
	s.TotalReward += ev.Reward
	s.RewardHistory = append(s.RewardHistory, ev)
	if limit > 0 && len(s.RewardHistory) > limit {
		s.RewardHistory = append([]RewardEvent{}, s.RewardHistory[len(s.RewardHistory)-limit:]...)
	}
}

// Preference returns a pointer into the preference list for key, or nil.
func (s *PersonaMemoryState) Preference(key string) *Preference {
	for i := range s.LearnedPreferences {
		if s.LearnedPreferences[i].Key() == key {
			return &s.LearnedPreferences[i]
		}
	}
	return nil
}

// Snapshot is the persisted layout of the whole store.
type Snapshot struct {
	ActivePersonaID string                         `json:"activePersonaId"`
	Personas        map[string]*PersonaMemoryState `json:"personas"`
}
