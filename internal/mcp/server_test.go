package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
	"github.com/fyrsmithlabs/dealscout/internal/learning"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
)

type testEnv struct {
	server  *Server
	store   *memory.Store
	session *mcp.ClientSession
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg := persona.NewDefaultRegistry()
	store := memory.NewStore(memory.WithPersonas(reg))
	d, err := dispatch.New(dispatch.Deps{
		Registry: reg,
		Store:    store,
		Learner:  learning.NewLearner(reg, store),
	})
	require.NoError(t, err)

	srv, err := NewServer(&Config{Name: "dealscout-test", Version: "test", Logger: zap.NewNop()}, d, reg, store)
	require.NoError(t, err)

	ctx := context.Background()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := srv.Connect(ctx, serverTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	return &testEnv{server: srv, store: store, session: cs}
}

func (e *testEnv) call(t *testing.T, name string, args any) *mcp.CallToolResult {
	t.Helper()
	res, err := e.session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	return res
}

// structured decodes a result's structured content into out.
func structured(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestNewServer_Validation(t *testing.T) {
	reg := persona.NewDefaultRegistry()
	store := memory.NewStore(memory.WithPersonas(reg))

	_, err := NewServer(nil, nil, reg, store)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dispatcher is required")
}

func TestServer_RegistersEveryTrigger(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make(map[string]bool, len(res.Tools))
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, trig := range dispatch.AllTriggers() {
		assert.True(t, names[ToolName(trig)], "missing tool for %s", trig)
		_, ok := env.server.Tools().Get(ToolName(trig))
		assert.True(t, ok)
	}
	for _, name := range []string{"list_personas", "set_active_persona", "persona_context", "request_result", "tool_search"} {
		assert.True(t, names[name], name)
	}
	assert.Equal(t, len(res.Tools), env.server.Tools().Count())
}

func TestToolName(t *testing.T) {
	assert.Equal(t, "score_person", ToolName(dispatch.TriggerScorePerson))
	assert.Equal(t, "learn_correction", ToolName(dispatch.TriggerLearnCorrection))
}

func TestScorePersonTool(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, "score_person", map[string]any{
		"persona_id": "early",
		"payload": map[string]any{
			"candidate": candidate.Candidate{
				ID:         "p1",
				Name:       "Ada",
				Highlights: []string{"serial_founder"},
			},
		},
	})
	require.False(t, res.IsError)

	var resp dispatch.Response
	structured(t, res, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, dispatch.TriggerScorePerson, resp.Trigger)
	assert.Equal(t, "early", resp.PersonaID)
	require.NotEmpty(t, resp.ToolsCalled)
	assert.Equal(t, "scoring.score", resp.ToolsCalled[0].Name)

	// The same response is available by ID.
	res = env.call(t, "request_result", map[string]any{"request_id": resp.RequestID})
	require.False(t, res.IsError)
}

func TestTriggerTool_UnknownPersonaIsToolError(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, "sort_feed", map[string]any{"persona_id": "nobody"})
	assert.True(t, res.IsError)
}

func TestTriggerTool_UsesActivePersona(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.SetActivePersona("growth"))

	res := env.call(t, "session_summary", map[string]any{})
	require.False(t, res.IsError)

	var resp dispatch.Response
	structured(t, res, &resp)
	assert.Equal(t, "growth", resp.PersonaID)
}

func TestBulkLikeTool_TeachesPersona(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, "bulk_like", map[string]any{
		"persona_id": "angel",
		"payload": map[string]any{
			"entities": []candidate.Candidate{
				{ID: "a", Name: "A", Highlights: []string{"technical_founder"}},
			},
		},
	})
	require.False(t, res.IsError)

	st, err := env.store.GetState("angel")
	require.NoError(t, err)
	assert.True(t, st.IsLiked("a"))
}

func TestPersonaTools(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, "set_active_persona", map[string]any{"persona_id": "recruiter"})
	require.False(t, res.IsError)
	assert.Equal(t, "recruiter", env.store.ActivePersona())

	res = env.call(t, "list_personas", map[string]any{})
	require.False(t, res.IsError)
	var list listPersonasOutput
	structured(t, res, &list)
	assert.Equal(t, "recruiter", list.Active)
	assert.Len(t, list.Personas, 4)

	res = env.call(t, "persona_context", map[string]any{})
	require.False(t, res.IsError)
	var pc personaContextOutput
	structured(t, res, &pc)
	assert.Equal(t, "recruiter", pc.PersonaID)
	assert.Contains(t, pc.Summary, "Persona: recruiter")

	res = env.call(t, "set_active_persona", map[string]any{"persona_id": "nobody"})
	assert.True(t, res.IsError)
	assert.Equal(t, "recruiter", env.store.ActivePersona())
}

func TestRequestResult_Unknown(t *testing.T) {
	env := newTestEnv(t)
	res := env.call(t, "request_result", map[string]any{"request_id": "missing"})
	assert.True(t, res.IsError)
}

func TestToolSearchTool(t *testing.T) {
	env := newTestEnv(t)

	res := env.call(t, "tool_search", map[string]any{"query": "dislike"})
	require.False(t, res.IsError)

	var out toolSearchOutput
	structured(t, res, &out)
	require.NotEmpty(t, out.Results)
	assert.Equal(t, "bulk_dislike", out.Results[0].Name)
	assert.Equal(t, env.server.Tools().Count(), out.TotalTools)

	res = env.call(t, "tool_search", map[string]any{"query": ""})
	assert.True(t, res.IsError)
}
