package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trigger selects the handler for a request.
type Trigger string

const (
	TriggerScorePerson       Trigger = "score-person"
	TriggerSuggestDatapoints Trigger = "suggest-datapoints"
	TriggerDeepDive          Trigger = "deep-dive"
	TriggerBulkLike          Trigger = "bulk-like"
	TriggerBulkDislike       Trigger = "bulk-dislike"
	TriggerCreateShortlist   Trigger = "create-shortlist"
	TriggerAutoScore         Trigger = "auto-score"
	TriggerSortFeed          Trigger = "sort-feed"
	TriggerCheckAlerts       Trigger = "check-alerts"
	TriggerSessionSummary    Trigger = "session-summary"
	TriggerNaturalSearch     Trigger = "natural-search"
	TriggerAutoProcess       Trigger = "auto-process"
	TriggerLearnCorrection   Trigger = "learn-correction"
)

// AllTriggers returns every trigger with a built-in handler.
func AllTriggers() []Trigger {
	return []Trigger{
		TriggerScorePerson, TriggerSuggestDatapoints, TriggerDeepDive,
		TriggerBulkLike, TriggerBulkDislike, TriggerCreateShortlist,
		TriggerAutoScore, TriggerSortFeed, TriggerCheckAlerts,
		TriggerSessionSummary, TriggerNaturalSearch, TriggerAutoProcess,
		TriggerLearnCorrection,
	}
}

// Request is one unit of work for the dispatcher.
type Request struct {
	ID        string          `json:"id"`
	Trigger   Trigger         `json:"trigger"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	PersonaID string          `json:"persona_id"`
	Timestamp time.Time       `json:"timestamp"`
	Priority  int             `json:"priority,omitempty"`
}

// NewRequest builds a request with a fresh ID, marshaling payload to JSON.
// A nil payload produces an empty payload.
func NewRequest(trigger Trigger, personaID string, payload any) (Request, error) {
	req := Request{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		PersonaID: personaID,
		Timestamp: time.Now().UTC(),
	}
	if payload == nil {
		return req, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		req.Payload = raw
		return req, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("marshaling %s payload: %w", trigger, err)
	}
	req.Payload = data
	return req, nil
}

// Status is the lifecycle state reported in a Response.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusQueued    Status = "queued"
	StatusFailed    Status = "failed"
	StatusRejected  Status = "rejected"
)

// ErrorCode classifies a failed response.
type ErrorCode string

const (
	CodeUnknownPersona ErrorCode = "UNKNOWN_PERSONA"
	CodeUnknownTrigger ErrorCode = "UNKNOWN_TRIGGER"
	CodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"
	CodeHandlerError   ErrorCode = "HANDLER_ERROR"
	CodeQueueFull      ErrorCode = "QUEUE_FULL"
)

// Error is a classified handler failure.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds a classified error.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ToolCall records one collaborator or engine call made by a handler.
type ToolCall struct {
	Name       string `json:"name"`
	Input      string `json:"input,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response is the outcome of a dispatched request.
type Response struct {
	RequestID   string     `json:"request_id"`
	Trigger     Trigger    `json:"trigger"`
	PersonaID   string     `json:"persona_id,omitempty"`
	Success     bool       `json:"success"`
	Status      Status     `json:"status"`
	Data        any        `json:"data,omitempty"`
	ToolsCalled []ToolCall `json:"tools_called"`
	Reasoning   string     `json:"reasoning"`
	DurationMs  int64      `json:"duration_ms"`
	Error       *Error     `json:"error,omitempty"`
}

// Queued reports whether the request was deferred.
func (r Response) Queued() bool { return r.Status == StatusQueued }

// Outcome is what a handler hands back to the dispatcher.
type Outcome struct {
	Data        any
	Reasoning   string
	ToolsCalled []ToolCall
}
