package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "dealscout.feedback"

var _ dispatch.FeedbackSink = (*NATSSink)(nil)

// Envelope wraps a record with its publish metadata.
type Envelope struct {
	ID         string                  `json:"id"`
	RecordedAt time.Time               `json:"recorded_at"`
	Record     dispatch.FeedbackRecord `json:"record"`
}

// NATSSink publishes feedback records to JetStream.
type NATSSink struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
	stream  string
	ownConn bool
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a NATSSink.
type Option func(*NATSSink)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *NATSSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Connect dials the NATS server at url and returns a sink that owns the
// connection. Close releases it.
func Connect(ctx context.Context, url, subject string, opts ...Option) (*NATSSink, error) {
	nc, err := nats.Connect(url,
		nats.Name("dealscout"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	s, err := NewNATSSink(ctx, nc, subject, opts...)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.ownConn = true
	s.logger.Info("connected to NATS", zap.String("url", url), zap.String("stream", s.stream))
	return s, nil
}

// NewNATSSink creates the feedback stream if needed and returns a sink
// publishing on nc. The caller keeps ownership of nc.
func NewNATSSink(ctx context.Context, nc *nats.Conn, subject string, opts ...Option) (*NATSSink, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = DefaultSubject
	}
	if strings.ContainsAny(subject, "*> \t") {
		return nil, fmt.Errorf("invalid feedback subject %q", subject)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	s := &NATSSink{
		nc:      nc,
		js:      js,
		subject: subject,
		stream:  StreamName(subject),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        s.stream,
		Description: "dealscout persona feedback",
		Subjects:    []string{subject + ".>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", s.stream, err)
	}
	return s, nil
}

// SaveFeedback publishes rec and waits for the stream acknowledgement.
func (s *NATSSink) SaveFeedback(ctx context.Context, rec dispatch.FeedbackRecord) error {
	if rec.PersonaID == "" || rec.EntityID == "" {
		return errors.New("feedback record requires persona and entity IDs")
	}

	env := Envelope{
		ID:         uuid.NewString(),
		RecordedAt: s.now().UTC(),
		Record:     rec,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	subj := s.SubjectFor(rec.PersonaID)
	ack, err := s.js.Publish(ctx, subj, data, jetstream.WithMsgID(env.ID))
	if err != nil {
		return fmt.Errorf("publish feedback: %w", err)
	}

	s.logger.Debug("feedback published",
		zap.String("subject", subj),
		zap.String("entity_id", rec.EntityID),
		zap.String("action", string(rec.Action)),
		zap.Uint64("seq", ack.Sequence))
	return nil
}

// SubjectFor returns the subject a persona's records are published on.
func (s *NATSSink) SubjectFor(personaID string) string {
	return s.subject + "." + subjectToken(personaID)
}

// Stream returns the JetStream stream name.
func (s *NATSSink) Stream() string {
	return s.stream
}

// Close drains the connection when the sink owns it.
func (s *NATSSink) Close() error {
	if !s.ownConn {
		return nil
	}
	return s.nc.Drain()
}

// StreamName derives a stream name from a subject prefix.
func StreamName(subject string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(subject))
}

// subjectToken maps an ID to a single subject token.
func subjectToken(id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		switch {
		case r == '.' || r == '*' || r == '>' || r <= ' ':
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
