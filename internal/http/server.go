// Package http provides the dealscout HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
	"github.com/fyrsmithlabs/dealscout/internal/logging"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
)

// maxBodySize bounds request bodies.
const maxBodySize = "1M"

// Server provides HTTP endpoints for dealscout.
type Server struct {
	echo       *echo.Echo
	dispatcher *dispatch.Dispatcher
	registry   *persona.Registry
	store      *memory.Store
	logger     *zap.Logger
	config     *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host    string
	Port    int
	Version string
}

// Deps are the engine components the API exposes.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Registry   *persona.Registry
	Store      *memory.Store
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *zap.Logger, cfg *Config) (*Server, error) {
	if deps.Dispatcher == nil || deps.Registry == nil || deps.Store == nil {
		return nil, fmt.Errorf("dispatcher, registry and store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "127.0.0.1",
			Port: 9090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(maxBodySize))
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			c.SetRequest(c.Request().WithContext(logging.WithRequestID(c.Request().Context(), reqID)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.With(logging.ContextFields(c.Request().Context())...).Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	})

	s := &Server{
		echo:       e,
		dispatcher: deps.Dispatcher,
		registry:   deps.Registry,
		store:      deps.Store,
		logger:     logger,
		config:     cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/dispatch", s.handleDispatch)
	v1.GET("/requests/:id", s.handleRequest)
	v1.GET("/personas", s.handlePersonas)
	v1.GET("/personas/:id/context", s.handlePersonaContext)
	v1.PUT("/personas/active", s.handleSetActive)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Status:        "ok",
		Version:       s.config.Version,
		ActivePersona: s.store.ActivePersona(),
		Personas:      len(s.registry.IDs()),
		Dispatcher:    s.dispatcher.State(),
	})
}

// handleDispatch submits one request. Handler failures are returned as a
// dispatch response with a status code derived from the error code.
func (s *Server) handleDispatch(c echo.Context) error {
	var body DispatchRequest
	if err := c.Bind(&body); err != nil {
		s.logger.Warn("invalid dispatch request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if body.Trigger == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "trigger field is required")
	}

	req, err := dispatch.NewRequest(dispatch.Trigger(body.Trigger), body.PersonaID, body.Payload)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Priority = body.Priority

	resp := s.dispatcher.Dispatch(c.Request().Context(), req)
	return c.JSON(statusFor(resp), resp)
}

// handleRequest reports a request's result, or that it is still pending.
func (s *Server) handleRequest(c echo.Context) error {
	id := c.Param("id")
	resp, state := s.dispatcher.Lookup(id)
	switch state {
	case dispatch.RequestDone:
		return c.JSON(http.StatusOK, resp)
	case dispatch.RequestRunning:
		return c.JSON(http.StatusAccepted, PendingResponse{RequestID: id, Status: "running"})
	case dispatch.RequestQueued:
		return c.JSON(http.StatusAccepted, PendingResponse{RequestID: id, Status: string(dispatch.StatusQueued)})
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown request")
	}
}

func (s *Server) handlePersonas(c echo.Context) error {
	active := s.store.ActivePersona()
	out := make([]PersonaInfo, 0, len(s.registry.IDs()))
	for _, p := range s.registry.List() {
		out = append(out, PersonaInfo{
			ID:     p.ID,
			Name:   p.Name,
			Active: p.ID == active,
			Recipe: p.Recipe,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handlePersonaContext(c echo.Context) error {
	id := c.Param("id")
	summary, err := s.store.BuildContextSummary(id)
	if err != nil {
		return personaError(err)
	}
	state, err := s.store.GetState(id)
	if err != nil {
		return personaError(err)
	}
	return c.JSON(http.StatusOK, PersonaContextResponse{
		PersonaID: id,
		Summary:   summary,
		State:     state,
	})
}

func (s *Server) handleSetActive(c echo.Context) error {
	var body SetActiveRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.store.SetActivePersona(body.PersonaID); err != nil {
		return personaError(err)
	}
	s.logger.Info("active persona changed", zap.String("persona.id", body.PersonaID))
	return c.JSON(http.StatusOK, SetActiveRequest{PersonaID: body.PersonaID})
}

func personaError(err error) error {
	switch {
	case errors.Is(err, persona.ErrUnknownPersona):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, memory.ErrEmptyPersonaID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// statusFor maps a dispatch response onto an HTTP status code.
func statusFor(resp dispatch.Response) int {
	switch resp.Status {
	case dispatch.StatusCompleted:
		return http.StatusOK
	case dispatch.StatusQueued:
		return http.StatusAccepted
	case dispatch.StatusRejected:
		return http.StatusTooManyRequests
	}
	if resp.Error == nil {
		return http.StatusInternalServerError
	}
	switch resp.Error.Code {
	case dispatch.CodeUnknownPersona:
		return http.StatusNotFound
	case dispatch.CodeUnknownTrigger, dispatch.CodeInvalidPayload:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
