package feedback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
)

func TestLogSink_SaveFeedback(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	score := 40
	require.NoError(t, sink.SaveFeedback(context.Background(), dispatch.FeedbackRecord{
		PersonaID: "angel",
		EntityID:  "co9",
		Action:    memory.ActionCorrectionDislike,
		AIScore:   &score,
	}))

	entries := logs.FilterMessage("feedback recorded").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "angel", fields["persona_id"])
	assert.Equal(t, "CORRECTION_DISLIKE", fields["action"])
	assert.Equal(t, int64(40), fields["ai_score"])
	assert.NotContains(t, fields, "user_agreed")
}

func TestLogSink_NilLogger(t *testing.T) {
	sink := NewLogSink(nil)
	assert.NoError(t, sink.SaveFeedback(context.Background(), dispatch.FeedbackRecord{}))
}
