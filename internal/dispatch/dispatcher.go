package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/learning"
	"github.com/fyrsmithlabs/dealscout/internal/logging"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
	"github.com/fyrsmithlabs/dealscout/internal/persona"
	"github.com/fyrsmithlabs/dealscout/internal/telemetry"
)

const instrumentationName = "github.com/fyrsmithlabs/dealscout/internal/dispatch"

// DefaultResultRetention bounds the number of completed responses kept for polling.
const DefaultResultRetention = 1000

// HandlerFunc executes one trigger. personaID is already validated.
type HandlerFunc func(ctx context.Context, personaID string, req Request) (*Outcome, error)

// CompletionHook observes every response produced for a queued request.
type CompletionHook func(Response)

// Deps are the engine components and collaborators handlers use. Enricher,
// Feedback and Searcher are optional.
type Deps struct {
	Registry *persona.Registry
	Store    *memory.Store
	Learner  *learning.Learner
	Enricher Enricher
	Feedback FeedbackSink
	Searcher Searcher
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithQueueMode selects the queue policy.
func WithQueueMode(m QueueMode) Option {
	return func(d *Dispatcher) { d.mode = m }
}

// WithMaxQueue bounds the queue. Zero leaves it unbounded.
func WithMaxQueue(n int) Option {
	return func(d *Dispatcher) { d.maxQueue = n }
}

// WithResultRetention bounds the completed responses kept for Result.
func WithResultRetention(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.retention = n
		}
	}
}

// WithOnComplete registers a hook called after each queued request finishes.
func WithOnComplete(h CompletionHook) Option {
	return func(d *Dispatcher) { d.onComplete = h }
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithThresholds sets the default auto-process thresholds.
func WithThresholds(like, dislike int) Option {
	return func(d *Dispatcher) {
		d.likeThreshold = like
		d.dislikeThreshold = dislike
	}
}

// Dispatcher is a single-flight request executor.
type Dispatcher struct {
	deps     Deps
	handlers map[Trigger]HandlerFunc

	mu      sync.Mutex
	idle    *sync.Cond
	busy    bool
	current *Request
	queue   requestQueue
	seq     uint64

	results     map[string]Response
	resultOrder []string

	mode             QueueMode
	maxQueue         int
	retention        int
	onComplete       CompletionHook
	likeThreshold    int
	dislikeThreshold int

	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// New creates a dispatcher with every built-in handler registered.
func New(deps Deps, opts ...Option) (*Dispatcher, error) {
	if deps.Registry == nil || deps.Store == nil || deps.Learner == nil {
		return nil, errors.New("dispatch: registry, store and learner are required")
	}
	d := &Dispatcher{
		deps:             deps,
		handlers:         make(map[Trigger]HandlerFunc),
		results:          make(map[string]Response),
		mode:             QueueFIFO,
		retention:        DefaultResultRetention,
		likeThreshold:    learning.DefaultLikeThreshold,
		dislikeThreshold: learning.DefaultDislikeThreshold,
		logger:           zap.NewNop(),
		tracer:           otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(d)
	}
	if _, err := ParseQueueMode(string(d.mode)); err != nil {
		return nil, err
	}
	d.idle = sync.NewCond(&d.mu)
	d.queue = newQueue(d.mode)
	d.registerBuiltins()
	return d, nil
}

// RegisterHandler registers or replaces the handler for a trigger.
func (d *Dispatcher) RegisterHandler(trigger Trigger, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[trigger] = h
}

func (d *Dispatcher) handler(trigger Trigger) (HandlerFunc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.handlers[trigger]
	return h, ok
}

// Dispatch runs req now if the dispatcher is idle, or queues it and returns
// a QUEUED response if a handler is already running.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	d.mu.Lock()
	if d.busy {
		if d.maxQueue > 0 && d.queue.len() >= d.maxQueue {
			d.mu.Unlock()
			if d.metrics != nil {
				d.metrics.RejectedTotal.Inc()
			}
			d.logger.Warn("dispatch queue full",
				zap.String("request.id", req.ID),
				zap.String("trigger", string(req.Trigger)),
				zap.Int("max_queue", d.maxQueue))
			return Response{
				RequestID:   req.ID,
				Trigger:     req.Trigger,
				PersonaID:   req.PersonaID,
				Status:      StatusRejected,
				ToolsCalled: []ToolCall{},
				Reasoning:   fmt.Sprintf("The dispatcher queue is full (%d waiting); retry later.", d.maxQueue),
				Error:       Errorf(CodeQueueFull, "queue limit %d reached", d.maxQueue),
			}
		}
		d.seq++
		d.queue.push(queued{req: req, ctx: context.WithoutCancel(ctx), seq: d.seq})
		depth := d.queue.len()
		running := d.current.ID
		d.mu.Unlock()

		if d.metrics != nil {
			d.metrics.QueuedTotal.WithLabelValues(string(req.Trigger)).Inc()
			d.metrics.QueueDepth.Set(float64(depth))
		}
		d.logger.Debug("request queued",
			zap.String("request.id", req.ID),
			zap.String("trigger", string(req.Trigger)),
			zap.Int("depth", depth))
		return Response{
			RequestID:   req.ID,
			Trigger:     req.Trigger,
			PersonaID:   req.PersonaID,
			Success:     true,
			Status:      StatusQueued,
			ToolsCalled: []ToolCall{},
			Reasoning:   fmt.Sprintf("Queued behind request %s at position %d; poll for the result.", running, depth),
		}
	}
	d.busy = true
	d.current = &req
	d.mu.Unlock()
	d.setBusyGauge(1)

	resp := d.execute(ctx, req)
	d.finish()
	return resp
}

// finish releases the dispatcher after an inline request. If work is
// waiting, busy is handed to the drain worker so no new arrival can jump
// the queue.
func (d *Dispatcher) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue.len() > 0 {
		go d.drain()
		return
	}
	d.goIdleLocked()
}

func (d *Dispatcher) goIdleLocked() {
	d.busy = false
	d.current = nil
	d.setBusyGauge(0)
	d.idle.Broadcast()
}

// drain serves queued requests one at a time until the queue is empty.
func (d *Dispatcher) drain() {
	for {
		d.mu.Lock()
		next, ok := d.queue.pop()
		if !ok {
			d.goIdleLocked()
			d.mu.Unlock()
			return
		}
		d.current = &next.req
		depth := d.queue.len()
		d.mu.Unlock()
		if d.metrics != nil {
			d.metrics.QueueDepth.Set(float64(depth))
		}

		resp := d.execute(next.ctx, next.req)
		if d.onComplete != nil {
			d.safeHook(resp)
		}
	}
}

func (d *Dispatcher) safeHook(resp Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("completion hook panicked", zap.Any("panic", r), zap.String("request.id", resp.RequestID))
		}
	}()
	d.onComplete(resp)
}

// execute runs the handler for req and records the response.
func (d *Dispatcher) execute(ctx context.Context, req Request) Response {
	start := time.Now()
	personaID := req.PersonaID
	if personaID == "" {
		personaID = d.deps.Store.ActivePersona()
	}
	ctx = logging.WithPersonaID(logging.WithRequestID(ctx, req.ID), personaID)
	ctx, span := d.tracer.Start(ctx, telemetry.DispatchSpanName(string(req.Trigger)))
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", req.ID),
		attribute.String("trigger", string(req.Trigger)),
		attribute.String("persona.id", personaID),
		attribute.Int("priority", req.Priority),
	)
	log := d.logger.With(logging.ContextFields(ctx)...)

	resp := d.run(ctx, log, req, personaID)
	resp.RequestID = req.ID
	resp.Trigger = req.Trigger
	resp.DurationMs = time.Since(start).Milliseconds()
	if resp.ToolsCalled == nil {
		resp.ToolsCalled = []ToolCall{}
	}

	if resp.Error != nil {
		span.SetStatus(codes.Error, resp.Error.Message)
		span.SetAttributes(attribute.String("error.code", string(resp.Error.Code)))
		log.Warn("request failed",
			zap.String("trigger", string(req.Trigger)),
			zap.String("code", string(resp.Error.Code)),
			zap.String("error", resp.Error.Message))
	} else {
		log.Info("request completed",
			zap.String("trigger", string(req.Trigger)),
			zap.Int("tools", len(resp.ToolsCalled)),
			zap.Int64("duration_ms", resp.DurationMs))
	}
	if d.metrics != nil {
		d.metrics.RequestsTotal.WithLabelValues(string(req.Trigger), string(resp.Status)).Inc()
		d.metrics.RequestDuration.WithLabelValues(string(req.Trigger)).Observe(time.Since(start).Seconds())
	}

	d.storeResult(resp)
	return resp
}

// run resolves the handler, checks the persona, then invokes the handler
// with panic recovery.
func (d *Dispatcher) run(ctx context.Context, log *zap.Logger, req Request, personaID string) (resp Response) {
	resp.PersonaID = personaID

	h, ok := d.handler(req.Trigger)
	if !ok {
		return failed(resp, Errorf(CodeUnknownTrigger, "no handler for trigger %q", req.Trigger))
	}
	if !d.deps.Registry.Has(personaID) {
		return failed(resp, Errorf(CodeUnknownPersona, "persona %q is not registered", personaID))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panicked",
				zap.String("trigger", string(req.Trigger)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			resp = failed(resp, Errorf(CodeHandlerError, "handler panicked: %v", r))
		}
	}()

	out, err := h(ctx, personaID, req)
	if err != nil {
		return failed(resp, classify(err))
	}
	if out == nil {
		out = &Outcome{}
	}
	resp.Success = true
	resp.Status = StatusCompleted
	resp.Data = out.Data
	resp.ToolsCalled = out.ToolsCalled
	resp.Reasoning = out.Reasoning
	if resp.Reasoning == "" {
		resp.Reasoning = fmt.Sprintf("Completed %s.", req.Trigger)
	}
	return resp
}

func classify(err error) *Error {
	var de *Error
	switch {
	case errors.As(err, &de):
		return de
	case errors.Is(err, persona.ErrUnknownPersona):
		return &Error{Code: CodeUnknownPersona, Message: err.Error()}
	default:
		return &Error{Code: CodeHandlerError, Message: err.Error()}
	}
}

func failed(resp Response, e *Error) Response {
	resp.Success = false
	resp.Status = StatusFailed
	resp.Error = e
	switch e.Code {
	case CodeUnknownPersona:
		resp.Reasoning = "The requested persona does not exist, so nothing was scored. " + e.Message
	case CodeUnknownTrigger:
		resp.Reasoning = "The request names an action this agent does not support. " + e.Message
	case CodeInvalidPayload:
		resp.Reasoning = "The request payload could not be understood. " + e.Message
	default:
		resp.Reasoning = "The action failed before producing a result. " + e.Message
	}
	return resp
}

func (d *Dispatcher) storeResult(resp Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.results[resp.RequestID]; !exists {
		d.resultOrder = append(d.resultOrder, resp.RequestID)
	}
	d.results[resp.RequestID] = resp
	for len(d.resultOrder) > d.retention {
		delete(d.results, d.resultOrder[0])
		d.resultOrder = d.resultOrder[1:]
	}
}

// Result returns the response for a completed request. A request that is
// still queued or running reports ok=false.
func (d *Dispatcher) Result(id string) (Response, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.results[id]
	return r, ok
}

// RequestState is where a request sits in the dispatcher's lifecycle.
type RequestState string

const (
	RequestDone    RequestState = "done"
	RequestRunning RequestState = "running"
	RequestQueued  RequestState = "queued"
	RequestUnknown RequestState = "unknown"
)

// Lookup reports a request's response and state from a single snapshot.
// Results are stored before the next request becomes current, so a
// request is always found in exactly one place while it is retained.
func (d *Dispatcher) Lookup(id string) (Response, RequestState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.results[id]; ok {
		return r, RequestDone
	}
	if d.current != nil && d.current.ID == id {
		return Response{}, RequestRunning
	}
	for _, q := range d.queue.ids() {
		if q == id {
			return Response{}, RequestQueued
		}
	}
	return Response{}, RequestUnknown
}

// State describes the dispatcher at one instant.
type State struct {
	Busy           bool     `json:"busy"`
	CurrentRequest string   `json:"current_request,omitempty"`
	Queued         []string `json:"queued"`
	Mode           string   `json:"mode"`
}

// State returns a snapshot of the dispatcher.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := State{Busy: d.busy, Queued: d.queue.ids(), Mode: string(d.mode)}
	if d.current != nil {
		s.CurrentRequest = d.current.ID
	}
	return s
}

// WaitIdle blocks until no handler is running and the queue is empty, or
// ctx is done.
func (d *Dispatcher) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.mu.Lock()
		for d.busy && ctx.Err() == nil {
			d.idle.Wait()
		}
		d.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// Wake the waiter so it observes ctx.Err and exits.
		d.mu.Lock()
		d.idle.Broadcast()
		d.mu.Unlock()
		return ctx.Err()
	}
}

func (d *Dispatcher) setBusyGauge(v float64) {
	if d.metrics != nil {
		d.metrics.Busy.Set(v)
	}
}

// decode unmarshals a request payload into T. An empty payload yields T's
// zero value.
func decode[T any](req Request) (T, error) {
	var v T
	if len(req.Payload) == 0 || string(req.Payload) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(req.Payload, &v); err != nil {
		return v, Errorf(CodeInvalidPayload, "decoding %s payload: %v", req.Trigger, err)
	}
	return v, nil
}
