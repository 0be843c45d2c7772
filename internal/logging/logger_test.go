package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	cfg := NewDefaultConfig()

	logger, err := NewLogger(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, logger.Underlying())
	assert.Equal(t, cfg, logger.config)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestLogger_LevelMethods(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithPersonaID(context.Background(), "growth")

	tests := []struct {
		name  string
		log   func()
		level zapcore.Level
	}{
		{"trace", func() { tl.Trace(ctx, "trace message") }, TraceLevel},
		{"debug", func() { tl.Debug(ctx, "debug message") }, zapcore.DebugLevel},
		{"info", func() { tl.Info(ctx, "info message") }, zapcore.InfoLevel},
		{"warn", func() { tl.Warn(ctx, "warn message") }, zapcore.WarnLevel},
		{"error", func() { tl.Error(ctx, "error message") }, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl.Reset()
			tt.log()

			logs := tl.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)
			assert.Equal(t, tt.name+" message", logs[0].Message)
			tl.AssertField(t, tt.name+" message", "persona.id", "growth")
		})
	}
}

func TestLogger_WithAndNamed(t *testing.T) {
	tl := NewTestLogger()

	child := tl.With(zap.String("component", "dispatch")).Named("queue")
	child.Info(context.Background(), "drained")

	logs := tl.FilterMessage("drained").All()
	require.Len(t, logs, 1)
	assert.Equal(t, "queue", logs[0].LoggerName)
	tl.AssertField(t, "drained", "component", "dispatch")
}

func TestTestLogger_Assertions(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "persona switched", zap.String("persona.id", "angel"), RedactedString("api_key", "sk-123"))

	tl.AssertLogged(t, zapcore.InfoLevel, "persona switched")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "persona switched")
	tl.AssertField(t, "persona switched", "persona.id", "angel")
	tl.AssertNoSecrets(t)
}

func TestLogger_Sync(t *testing.T) {
	tl := NewTestLogger()
	assert.NoError(t, tl.Sync())
}
