package dispatch

import (
	"context"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
)

// Enricher fetches upstream profiles for deep dives. Every call may fail
// independently.
type Enricher interface {
	FetchPerson(ctx context.Context, id string) (*candidate.Person, error)
	FetchCompany(ctx context.Context, id string) (*candidate.Company, error)
	FetchFunding(ctx context.Context, companyID string) (*candidate.Funding, error)
}

// FeedbackRecord is one persisted feedback decision.
type FeedbackRecord struct {
	PersonaID  string        `json:"persona_id"`
	EntityID   string        `json:"entity_id"`
	EntityType string        `json:"entity_type"`
	Action     memory.Action `json:"action"`
	Datapoints []string      `json:"datapoints"`
	Note       string        `json:"note,omitempty"`
	AIScore    *int          `json:"ai_score,omitempty"`
	UserAgreed *bool         `json:"user_agreed,omitempty"`
}

// FeedbackSink persists feedback outside the process.
type FeedbackSink interface {
	SaveFeedback(ctx context.Context, rec FeedbackRecord) error
}

// SearchQuery is a parsed natural-language search.
type SearchQuery struct {
	Raw        string   `json:"raw"`
	Terms      []string `json:"terms"`
	MinYears   int      `json:"min_years,omitempty"`
	MaxYears   int      `json:"max_years,omitempty"`
	Region     string   `json:"region,omitempty"`
	SignalType string   `json:"signal_type,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// Searcher runs a parsed query against an external candidate index.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]candidate.Candidate, error)
}
