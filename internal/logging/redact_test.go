package logging

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/dealscout/internal/config"
)

func encode(t *testing.T, enc zapcore.Encoder, fields ...zap.Field) string {
	t.Helper()
	buf, err := enc.EncodeEntry(zapcore.Entry{Level: zapcore.InfoLevel, Time: time.Unix(0, 0), Message: "enrich"}, fields)
	require.NoError(t, err)
	return buf.String()
}

func TestRedactingEncoder_Keys(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	out := encode(t, enc,
		zap.String("api_key", "sk-live-abc"),
		zap.String("Authorization", "Basic Zm9v"),
		zap.ByteString("token", []byte("t0k")),
		zap.String("entity.id", "p1"),
	)
	assert.NotContains(t, out, "sk-live-abc")
	assert.NotContains(t, out, "Zm9v")
	assert.NotContains(t, out, "t0k")
	assert.Contains(t, out, `"entity.id":"p1"`)
}

func TestRedactingEncoder_Patterns(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	out := encode(t, enc, zap.String("header", "Bearer eyJhbGciOi"))
	assert.Contains(t, out, "[REDACTED:pattern]")
	assert.NotContains(t, out, "eyJhbGciOi")
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{})
	require.NoError(t, err)

	out := encode(t, enc, zap.String("api_key", "visible"))
	assert.Contains(t, out, "visible")
}

func TestNewRedactingEncoder_RejectsPatterns(t *testing.T) {
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{"("}})
	assert.Error(t, err)

	_, err = NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{strings.Repeat("a", maxPatternLen+1)}})
	assert.Error(t, err)
}

func TestSecretField(t *testing.T) {
	enc := newEncoder("json")
	out := encode(t, enc, Secret("enrichment", config.Secret("sk-12345")))
	assert.Contains(t, out, "[REDACTED:8]")
	assert.NotContains(t, out, "sk-12345")

	out = encode(t, enc, RedactedString("note", "abc"))
	assert.Contains(t, out, "[REDACTED:3]")
}
