package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/persona"
)

// DefaultDebounce is the write-coalescing delay for persistence.
const DefaultDebounce = time.Second

// ErrEmptyPersonaID is returned for operations without a persona.
var ErrEmptyPersonaID = errors.New("persona ID cannot be empty")

// PersonaLookup reports whether a persona exists. *persona.Registry
// satisfies it.
type PersonaLookup interface {
	Has(id string) bool
}

// Store owns every persona's memory state and the active persona pointer.
type Store struct {
	mu     sync.RWMutex
	states map[string]*PersonaMemoryState
	active string
	dirty  bool
	timer  *time.Timer

	// saveMu serializes writes to the persister.
	saveMu sync.Mutex

	personas  PersonaLookup
	persister Persister
	debounce  time.Duration
	logger    *zap.Logger
	metrics   *Metrics
}

// Option configures a Store.
type Option func(*Store)

// WithPersister enables persistence. Without one the store is memory-only.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithDebounce sets the write-coalescing delay. Zero or negative writes
// synchronously on every mutation.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithPersonas restricts the store to personas known to lookup.
func WithPersonas(lookup PersonaLookup) Option {
	return func(s *Store) { s.personas = lookup }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		states:   make(map[string]*PersonaMemoryState),
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) checkPersona(id string) error {
	if id == "" {
		return ErrEmptyPersonaID
	}
	if s.personas != nil && !s.personas.Has(id) {
		return fmt.Errorf("%w: %q", persona.ErrUnknownPersona, id)
	}
	return nil
}

// GetState returns a deep copy of the persona's state. A persona that has
// never been mutated yields an empty state.
func (s *Store) GetState(id string) (*PersonaMemoryState, error) {
	if err := s.checkPersona(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[id].Clone(), nil
}

// Mutate applies fn to a working copy of the persona's state and commits it
// only if fn returns nil. It is the only write path into the store.
func (s *Store) Mutate(id string, fn func(*PersonaMemoryState) error) error {
	if err := s.checkPersona(id); err != nil {
		return err
	}

	if err := s.commit(id, fn); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.MutationsTotal.WithLabelValues(id).Inc()
	}
	s.afterMutation()
	return nil
}

// commit runs fn on a working copy under the write lock. A panicking fn
// leaves the committed state untouched and the lock released.
func (s *Store) commit(id string, fn func(*PersonaMemoryState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	working := s.states[id].Clone()
	if err := fn(working); err != nil {
		return err
	}
	s.states[id] = working
	s.markDirtyLocked()
	return nil
}

// ActivePersona returns the active persona ID, or "" if none is set.
func (s *Store) ActivePersona() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActivePersona changes the active persona.
func (s *Store) SetActivePersona(id string) error {
	if err := s.checkPersona(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.active = id
	s.markDirtyLocked()
	s.mu.Unlock()
	s.afterMutation()
	return nil
}

// PersonaIDs returns the IDs that currently hold state, sorted.
func (s *Store) PersonaIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns a deep copy of the whole store.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		ActivePersonaID: s.active,
		Personas:        make(map[string]*PersonaMemoryState, len(s.states)),
	}
	for id, st := range s.states {
		snap.Personas[id] = st.Clone()
	}
	return snap
}

// Load replaces the in-memory state with the persisted snapshot. Personas
// unknown to the configured lookup are dropped with a warning.
func (s *Store) Load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading memory: %w", err)
	}

	states := make(map[string]*PersonaMemoryState, len(snap.Personas))
	for id, st := range snap.Personas {
		if s.personas != nil && !s.personas.Has(id) {
			s.logger.Warn("dropping memory for unknown persona", zap.String("persona.id", id))
			continue
		}
		states[id] = st.Clone()
	}
	active := snap.ActivePersonaID
	if active != "" && s.personas != nil && !s.personas.Has(active) {
		active = ""
	}

	s.mu.Lock()
	s.states = states
	s.active = active
	s.dirty = false
	s.mu.Unlock()

	s.logger.Info("memory loaded",
		zap.Int("personas", len(states)),
		zap.String("active_persona", active))
	return nil
}

// Flush cancels any pending debounced write and persists immediately if
// anything changed since the last write.
func (s *Store) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return s.persist(ctx)
}

func (s *Store) markDirtyLocked() {
	if s.persister != nil {
		s.dirty = true
	}
}

// afterMutation schedules (or performs) the write for a mutation.
func (s *Store) afterMutation() {
	if s.persister == nil {
		return
	}
	if s.debounce <= 0 {
		if err := s.persist(context.Background()); err != nil {
			s.logger.Error("memory persist failed", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.onTimer)
		return
	}
	s.timer.Reset(s.debounce)
}

func (s *Store) onTimer() {
	if err := s.persist(context.Background()); err != nil {
		s.logger.Error("debounced memory persist failed", zap.Error(err))
	}
}

// persist writes the current snapshot if the store is dirty.
func (s *Store) persist(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snap := s.snapshotLocked()
	s.dirty = false
	s.mu.Unlock()

	start := time.Now()
	err := s.persister.Save(ctx, snap)
	if s.metrics != nil {
		s.metrics.PersistDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.PersistTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("persisting memory: %w", err)
	}
	if s.metrics != nil {
		s.metrics.PersistTotal.WithLabelValues("success").Inc()
	}
	s.logger.Debug("memory persisted", zap.Int("personas", len(snap.Personas)))
	return nil
}
