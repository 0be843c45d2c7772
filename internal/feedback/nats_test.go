package feedback

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/dealscout/internal/dispatch"
	"github.com/fyrsmithlabs/dealscout/internal/memory"
)

// startTestNATSServer starts an embedded JetStream-enabled server.
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		NoLog:     true,
		NoSigs:    true,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()

	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestNATSSink_PublishesToPersonaSubject(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ctx := context.Background()
	sink, err := NewNATSSink(ctx, nc, "")
	require.NoError(t, err)
	assert.Equal(t, "DEALSCOUT_FEEDBACK", sink.Stream())

	score := 82
	agreed := true
	rec := dispatch.FeedbackRecord{
		PersonaID:  "early",
		EntityID:   "p1",
		EntityType: "person",
		Action:     memory.ActionLike,
		Datapoints: []string{"serial_founder"},
		AIScore:    &score,
		UserAgreed: &agreed,
	}
	require.NoError(t, sink.SaveFeedback(ctx, rec))

	stream, err := sink.js.Stream(ctx, sink.Stream())
	require.NoError(t, err)
	msg, err := stream.GetLastMsgForSubject(ctx, "dealscout.feedback.early")
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.NotEmpty(t, env.ID)
	assert.False(t, env.RecordedAt.IsZero())
	assert.Equal(t, rec.EntityID, env.Record.EntityID)
	assert.Equal(t, memory.ActionLike, env.Record.Action)
	require.NotNil(t, env.Record.AIScore)
	assert.Equal(t, 82, *env.Record.AIScore)
}

func TestNATSSink_StreamCountsEveryRecord(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ctx := context.Background()
	sink, err := NewNATSSink(ctx, nc, "scout.fb")
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, sink.SaveFeedback(ctx, dispatch.FeedbackRecord{
			PersonaID: "growth",
			EntityID:  id,
			Action:    memory.ActionDislike,
		}))
	}

	stream, err := sink.js.Stream(ctx, "SCOUT_FB")
	require.NoError(t, err)
	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), info.State.Msgs)
}

func TestNATSSink_RejectsIncompleteRecord(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	sink, err := NewNATSSink(context.Background(), nc, "")
	require.NoError(t, err)
	err = sink.SaveFeedback(context.Background(), dispatch.FeedbackRecord{PersonaID: "early"})
	assert.Error(t, err)
}

func TestConnect_OwnsConnection(t *testing.T) {
	server := startTestNATSServer(t)

	sink, err := Connect(context.Background(), server.ClientURL(), "dealscout.feedback")
	require.NoError(t, err)
	assert.True(t, sink.ownConn)
	require.NoError(t, sink.Close())
}

func TestNewNATSSink_Validation(t *testing.T) {
	_, err := NewNATSSink(context.Background(), nil, "x")
	assert.Error(t, err)

	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	_, err = NewNATSSink(context.Background(), nc, "feedback.*")
	assert.Error(t, err)
}

func TestSubjectToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"early", "early"},
		{"a.b", "a_b"},
		{"x*>y", "x__y"},
		{"with space", "with_space"},
		{"", "_"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, subjectToken(tt.in), tt.in)
	}
}
