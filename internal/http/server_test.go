package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/candidate"
	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
	"github.com/fyrsmithlabs/dealscout/internal/learning"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	reg := persona.NewDefaultRegistry()
	store := memory.NewStore(memory.WithPersonas(reg))
	d, err := dispatch.New(dispatch.Deps{
		Registry: reg,
		Store:    store,
		Learner:  learning.NewLearner(reg, store),
	})
	require.NoError(t, err)
	return Deps{Dispatcher: d, Registry: reg, Store: store}
}

// setupTestServer creates a test server with default configuration.
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	server, err := NewServer(testDeps(t), zap.NewNop(), &Config{
		Host:    "localhost",
		Port:    9090,
		Version: "test",
	})
	require.NoError(t, err)
	return server
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 9090}
		server, err := NewServer(testDeps(t), zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(testDeps(t), zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", server.config.Host)
		assert.Equal(t, 9090, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(testDeps(t), nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when deps are missing", func(t *testing.T) {
		_, err := NewServer(Deps{}, zap.NewNop(), nil)
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestHandleStatus(t *testing.T) {
	server := setupTestServer(t)
	require.NoError(t, server.store.SetActivePersona("early"))

	rec := doJSON(t, server, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, "early", resp.ActivePersona)
	assert.Equal(t, 4, resp.Personas)
	assert.False(t, resp.Dispatcher.Busy)
	assert.Equal(t, "fifo", resp.Dispatcher.Mode)
}

func TestHandleDispatch(t *testing.T) {
	t.Run("scores a candidate", func(t *testing.T) {
		server := setupTestServer(t)
		rec := doJSON(t, server, http.MethodPost, "/api/v1/dispatch", map[string]any{
			"trigger":    "score-person",
			"persona_id": "early",
			"payload": dispatch.ScorePersonPayload{Candidate: candidate.Candidate{
				ID:         "p1",
				Name:       "Ada",
				Highlights: []string{"serial_founder"},
			}},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp dispatch.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, dispatch.StatusCompleted, resp.Status)
		assert.NotEmpty(t, resp.RequestID)

		// The completed response is retrievable by ID.
		rec = doJSON(t, server, http.MethodGet, "/api/v1/requests/"+resp.RequestID, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown persona is 404", func(t *testing.T) {
		server := setupTestServer(t)
		rec := doJSON(t, server, http.MethodPost, "/api/v1/dispatch", DispatchRequest{
			Trigger:   "sort-feed",
			PersonaID: "nobody",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var resp dispatch.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, dispatch.CodeUnknownPersona, resp.Error.Code)
	})

	t.Run("unknown trigger is 400", func(t *testing.T) {
		server := setupTestServer(t)
		rec := doJSON(t, server, http.MethodPost, "/api/v1/dispatch", DispatchRequest{
			Trigger:   "make-coffee",
			PersonaID: "early",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing trigger", func(t *testing.T) {
		server := setupTestServer(t)
		rec := doJSON(t, server, http.MethodPost, "/api/v1/dispatch", DispatchRequest{PersonaID: "early"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := setupTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch", strings.NewReader("{"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleRequest_Unknown(t *testing.T) {
	server := setupTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/v1/requests/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRequest_Pending(t *testing.T) {
	server := setupTestServer(t)

	started := make(chan struct{})
	release := make(chan struct{})
	server.dispatcher.RegisterHandler("block", func(ctx context.Context, _ string, _ dispatch.Request) (*dispatch.Outcome, error) {
		close(started)
		<-release
		return &dispatch.Outcome{}, nil
	})

	go doJSON(t, server, http.MethodPost, "/api/v1/dispatch", DispatchRequest{Trigger: "block", PersonaID: "early"})
	<-started

	rec := doJSON(t, server, http.MethodPost, "/api/v1/dispatch", DispatchRequest{Trigger: "sort-feed", PersonaID: "early"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	var queued dispatch.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &queued))
	assert.True(t, queued.Queued())

	rec = doJSON(t, server, http.MethodGet, "/api/v1/requests/"+queued.RequestID, nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	var pending PendingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	assert.Equal(t, "queued", pending.Status)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.dispatcher.WaitIdle(ctx))

	rec = doJSON(t, server, http.MethodGet, "/api/v1/requests/"+queued.RequestID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlePersonas(t *testing.T) {
	server := setupTestServer(t)
	require.NoError(t, server.store.SetActivePersona("angel"))

	rec := doJSON(t, server, http.MethodGet, "/api/v1/personas", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []PersonaInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 4)
	for _, p := range resp {
		assert.Equal(t, p.ID == "angel", p.Active, p.ID)
	}
}

func TestHandlePersonaContext(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/personas/early/context", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp PersonaContextResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "early", resp.PersonaID)
	assert.Contains(t, resp.Summary, "Persona: early")
	require.NotNil(t, resp.State)

	rec = doJSON(t, server, http.MethodGet, "/api/v1/personas/nobody/context", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSetActive(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server, http.MethodPut, "/api/v1/personas/active", SetActiveRequest{PersonaID: "growth"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "growth", server.store.ActivePersona())

	rec = doJSON(t, server, http.MethodPut, "/api/v1/personas/active", SetActiveRequest{PersonaID: "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, server, http.MethodPut, "/api/v1/personas/active", SetActiveRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "growth", server.store.ActivePersona())
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		resp dispatch.Response
		want int
	}{
		{"completed", dispatch.Response{Status: dispatch.StatusCompleted}, http.StatusOK},
		{"queued", dispatch.Response{Status: dispatch.StatusQueued}, http.StatusAccepted},
		{"rejected", dispatch.Response{Status: dispatch.StatusRejected}, http.StatusTooManyRequests},
		{"invalid payload", dispatch.Response{Status: dispatch.StatusFailed, Error: dispatch.Errorf(dispatch.CodeInvalidPayload, "x")}, http.StatusBadRequest},
		{"handler error", dispatch.Response{Status: dispatch.StatusFailed, Error: dispatch.Errorf(dispatch.CodeHandlerError, "x")}, http.StatusUnprocessableEntity},
		{"failed without error", dispatch.Response{Status: dispatch.StatusFailed}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.resp))
		})
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Run("starts and shuts down gracefully", func(t *testing.T) {
		server, err := NewServer(testDeps(t), zap.NewNop(), &Config{Host: "localhost", Port: 0})
		require.NoError(t, err)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		// Give server time to start
		time.Sleep(100 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, server.Shutdown(ctx))

		select {
		case err := <-errChan:
			assert.True(t, err == nil || err == http.ErrServerClosed)
		case <-time.After(6 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server := setupTestServer(t)
		rec := doJSON(t, server, http.MethodGet, "/health", nil)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server := setupTestServer(t)
		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			server.echo.ServeHTTP(rec, req)
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
