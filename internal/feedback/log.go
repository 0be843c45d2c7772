package feedback

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
)

var _ dispatch.FeedbackSink = (*LogSink)(nil)

// LogSink records feedback in the structured log only.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink writing to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("feedback")}
}

// SaveFeedback logs rec at info level.
func (s *LogSink) SaveFeedback(_ context.Context, rec dispatch.FeedbackRecord) error {
	fields := []zap.Field{
		zap.String("persona_id", rec.PersonaID),
		zap.String("entity_id", rec.EntityID),
		zap.String("entity_type", rec.EntityType),
		zap.String("action", string(rec.Action)),
		zap.Strings("datapoints", rec.Datapoints),
	}
	if rec.AIScore != nil {
		fields = append(fields, zap.Int("ai_score", *rec.AIScore))
	}
	if rec.UserAgreed != nil {
		fields = append(fields, zap.Bool("user_agreed", *rec.UserAgreed))
	}
	s.logger.Info("feedback recorded", fields...)
	return nil
}
