package tutor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/belai/internal/ai"
	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

type stubSession string

func (s stubSession) ID() string { return string(s) }

type stubBackend struct {
	mu         sync.Mutex
	exchanges  []string
	lastHints  [2]*string
	failWith   error
	sessionSeq int
}

func (b *stubBackend) OpenSession(_ context.Context, instruction string) (ai.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failWith != nil {
		return nil, b.failWith
	}
	b.sessionSeq++
	return stubSession(fmt.Sprintf("%s-%d", instruction[:3], b.sessionSeq)), nil
}

func (b *stubBackend) Exchange(_ context.Context, s ai.Session, text string) (ai.Reply, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.exchanges = append(b.exchanges, s.ID()+":"+text)
	if text == "" {
		return ai.Reply{Text: "Hi! How are you?"}, nil
	}
	return ai.Reply{
		Text:      "Great to hear!",
		Citations: []domain.Citation{{URI: "https://example.com", Title: "Example"}},
	}, nil
}

func (b *stubBackend) Feedback(context.Context, string, string) ([]domain.FeedbackItem, error) {
	return []domain.FeedbackItem{
		{Category: domain.FeedbackGrammar, Message: "Use 'went'.", Suggestion: "I went."},
		{Category: domain.FeedbackGeneral, Message: "Nice flow."},
	}, nil
}

func (b *stubBackend) Hints(_ context.Context, _ string, lastUser, lastAI *string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastHints = [2]*string{lastUser, lastAI}
	return []string{"Could you repeat that?"}, nil
}

func startTutor(t *testing.T, backend *stubBackend) *GrpcClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(backend, backend, nil).Register(gs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cfg := DefaultGrpcClientConfig()
	cfg.Address = "passthrough:///bufnet"
	cfg.ConnectTimeout = 2 * time.Second
	cfg.DialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
	client, err := NewGrpcClientWithConfig(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{}
	client := startTutor(t, backend)

	require.NoError(t, client.Health(ctx))

	session, err := client.OpenSession(ctx, "You are a barista.")
	require.NoError(t, err)
	assert.Equal(t, "You-1", session.ID())

	greeting, err := client.Exchange(ctx, session, "")
	require.NoError(t, err)
	assert.Equal(t, "Hi! How are you?", greeting.Text)
	assert.Empty(t, greeting.Citations)

	reply, err := client.Exchange(ctx, session, "I'm good, thanks!")
	require.NoError(t, err)
	assert.Equal(t, "Great to hear!", reply.Text)
	assert.Equal(t, []domain.Citation{{URI: "https://example.com", Title: "Example"}}, reply.Citations)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, []string{"You-1:", "You-1:I'm good, thanks!"}, backend.exchanges)
}

func TestExchangeUnknownSession(t *testing.T) {
	client := startTutor(t, &stubBackend{})

	_, err := client.Exchange(context.Background(), remoteSession{id: "missing"}, "hi")
	require.Error(t, err)
	assert.True(t, shared.IsServiceError(err))
	assert.Contains(t, err.Error(), "NotFound")
}

func TestOpenSessionConfigurationError(t *testing.T) {
	backend := &stubBackend{failWith: &shared.ConfigurationError{Op: "open session", Err: errors.New("AI API key is not configured")}}
	client := startTutor(t, backend)

	_, err := client.OpenSession(context.Background(), "You are a barista.")
	require.Error(t, err)
	assert.True(t, shared.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "AI API key is not configured")
}

func TestFeedbackAndHints(t *testing.T) {
	ctx := context.Background()
	backend := &stubBackend{}
	client := startTutor(t, backend)

	items, err := client.Feedback(ctx, "I go yesterday", "Small talk")
	require.NoError(t, err)
	assert.Equal(t, []domain.FeedbackItem{
		{Category: domain.FeedbackGrammar, Message: "Use 'went'.", Suggestion: "I went."},
		{Category: domain.FeedbackGeneral, Message: "Nice flow."},
	}, items)

	last := "I go yesterday"
	hints, err := client.Hints(ctx, "Small talk", &last, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Could you repeat that?"}, hints)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.NotNil(t, backend.lastHints[0])
	assert.Equal(t, "I go yesterday", *backend.lastHints[0])
	assert.Nil(t, backend.lastHints[1])
}

func TestServerEvictsOldestSession(t *testing.T) {
	backend := &stubBackend{}
	srv := NewServer(backend, backend, nil)
	for i := 0; i < maxSessions; i++ {
		id := fmt.Sprintf("s%d", i)
		srv.sessions[id] = stubSession(id)
		srv.order = append(srv.order, id)
	}

	in, err := structpb.NewStruct(map[string]any{"system_instruction": "You are a guide."})
	require.NoError(t, err)
	_, err = srv.openSession(context.Background(), in)
	require.NoError(t, err)

	assert.Len(t, srv.order, maxSessions)
	assert.NotContains(t, srv.sessions, "s0")
	assert.Contains(t, srv.sessions, "s1")
	assert.Contains(t, srv.sessions, "You-1")
}
