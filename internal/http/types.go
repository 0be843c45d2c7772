package http

import (
	"encoding/json"

	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version,omitempty"`
	ActivePersona string         `json:"active_persona,omitempty"`
	Personas      int            `json:"personas"`
	Dispatcher    dispatch.State `json:"dispatcher"`
}

// DispatchRequest is the request body for POST /api/v1/dispatch.
type DispatchRequest struct {
	Trigger   string          `json:"trigger"`
	PersonaID string          `json:"persona_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Priority  int             `json:"priority,omitempty"`
}

// PendingResponse is returned while a request is queued or running.
type PendingResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// PersonaInfo is one entry of GET /api/v1/personas.
type PersonaInfo struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Active bool           `json:"active"`
	Recipe persona.Recipe `json:"recipe"`
}

// PersonaContextResponse is the response body for GET /api/v1/personas/:id/context.
type PersonaContextResponse struct {
	PersonaID string                     `json:"persona_id"`
	Summary   string                     `json:"summary"`
	State     *memory.PersonaMemoryState `json:"state"`
}

// SetActiveRequest is the request and response body for PUT /api/v1/personas/active.
type SetActiveRequest struct {
	PersonaID string `json:"persona_id"`
}
