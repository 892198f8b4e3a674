package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/belai/internal/ai"
	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/progress"
	"github.com/ashureev/belai/internal/settings"
	"github.com/ashureev/belai/internal/shared"
	"github.com/ashureev/belai/internal/store"
)

type fakeSession string

func (s fakeSession) ID() string { return string(s) }

type fakeConversation struct {
	mu       sync.Mutex
	openErr  error
	exchange func(call int, text string) (ai.Reply, error)
	sent     []string
	sessions int
}

func (f *fakeConversation) OpenSession(_ context.Context, _ string) (ai.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.sessions++
	return fakeSession(fmt.Sprintf("session-%d", f.sessions)), nil
}

func (f *fakeConversation) Exchange(_ context.Context, _ ai.Session, text string) (ai.Reply, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	call := len(f.sent)
	fn := f.exchange
	f.mu.Unlock()

	if fn != nil {
		return fn(call, text)
	}
	if text == "" {
		return ai.Reply{Text: "Hello! **Welcome** to the interview 😀"}, nil
	}
	return ai.Reply{Text: "Nice to hear that."}, nil
}

func (f *fakeConversation) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeCoach struct {
	feedback func(text string) ([]domain.FeedbackItem, error)
	hints    func(desc string, lastUser, lastAI *string) ([]string, error)
}

func (c *fakeCoach) Feedback(_ context.Context, text, _ string) ([]domain.FeedbackItem, error) {
	if c.feedback != nil {
		return c.feedback(text)
	}
	return []domain.FeedbackItem{{Category: domain.FeedbackGeneral, Message: "Well said: " + text}}, nil
}

func (c *fakeCoach) Hints(_ context.Context, desc string, lastUser, lastAI *string) ([]string, error) {
	if c.hints != nil {
		return c.hints(desc, lastUser, lastAI)
	}
	return []string{"Could you repeat that?"}, nil
}

type fakePlayer struct {
	mu      sync.Mutex
	spoken  []string
	voices  []*string
	cancels int
}

func (p *fakePlayer) Supported() bool        { return true }
func (p *fakePlayer) Voices() []domain.Voice { return nil }

func (p *fakePlayer) Speak(_ context.Context, text string, voiceID *string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spoken = append(p.spoken, text)
	p.voices = append(p.voices, voiceID)
	return nil
}

func (p *fakePlayer) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancels++
}

func (p *fakePlayer) utterances() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.spoken...)
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	orch     *Orchestrator
	conv     *fakeConversation
	coach    *fakeCoach
	player   *fakePlayer
	tracker  *progress.Tracker
	settings *settings.Store
	repo     *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemory()
	now := func() time.Time { return testNow }

	tracker, err := progress.NewTracker(ctx, repo, progress.Options{Now: now, Location: time.UTC})
	require.NoError(t, err)
	st, err := settings.NewStore(ctx, repo, nil)
	require.NoError(t, err)

	f := &fixture{
		conv:     &fakeConversation{},
		coach:    &fakeCoach{},
		player:   &fakePlayer{},
		tracker:  tracker,
		settings: st,
		repo:     repo,
	}
	f.orch = New(Deps{
		Conversation: f.conv,
		Coach:        f.coach,
		Player:       f.player,
		Progress:     tracker,
		Settings:     st,
		Now:          now,
	})
	return f
}

func interviewScenario() domain.Scenario {
	return domain.Scenario{
		ID:                "b1-job-interview",
		Title:             "Job Interview",
		Description:       "Practice answering questions in a job interview.",
		Level:             domain.LevelB1,
		Persona:           "Ms. Carter, hiring manager",
		SystemInstruction: "You are Ms. Carter, a friendly hiring manager.",
	}
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHappyPathConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))
	assert.Equal(t, StateReady, f.orch.State())

	require.NoError(t, f.orch.SubmitUserTurn(ctx, "  I am good, thanks  "))
	f.orch.Wait()

	msgs := f.orch.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.SenderSystem, msgs[0].Sender)
	assert.Equal(t, "Conversation started: Job Interview. AI: Ms. Carter, hiring manager. Waiting for AI's first message...", msgs[0].Text)
	assert.Equal(t, domain.SenderAI, msgs[1].Sender)
	assert.Equal(t, domain.SenderUser, msgs[2].Sender)
	assert.Equal(t, "I am good, thanks", msgs[2].Text)
	assert.False(t, msgs[2].FeedbackPending)
	require.Len(t, msgs[2].Feedback, 1)
	assert.Equal(t, "Well said: I am good, thanks", msgs[2].Feedback[0].Message)
	assert.Equal(t, domain.SenderAI, msgs[3].Sender)
	assert.Equal(t, "Nice to hear that.", msgs[3].Text)

	assert.Equal(t, []string{"", "I am good, thanks"}, f.conv.calls())
	assert.Equal(t, []string{"Hello! Welcome to the interview", "Nice to hear that."}, f.player.utterances())

	p := f.orch.Progress()
	assert.Equal(t, 1, p.MessagesSent)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, "2025-03-10", p.LastPracticeDate)
	assert.Empty(t, f.orch.LastError())
	assert.Equal(t, StateReady, f.orch.State())

	var sent int
	_, err := store.LoadJSON(ctx, f.repo, store.KeyMessagesSent, &sent)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestExchangeFailureRecordsSystemMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conv.exchange = func(_ int, text string) (ai.Reply, error) {
		if text == "" {
			return ai.Reply{Text: "Hi there."}, nil
		}
		return ai.Reply{}, shared.NewServiceError("exchange", errors.New("upstream unavailable"))
	}

	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))
	require.NoError(t, f.orch.SubmitUserTurn(ctx, "Hello"))
	f.orch.Wait()

	msgs := f.orch.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.SenderUser, msgs[2].Sender)
	assert.Equal(t, domain.SenderSystem, msgs[3].Sender)
	assert.Equal(t, "AI service error: upstream unavailable", msgs[3].Text)
	assert.Equal(t, msgs[3].Text, f.orch.LastError())
	assert.Equal(t, 0, f.orch.Progress().MessagesSent)
	assert.Equal(t, 0, f.orch.Progress().CurrentStreak)
	assert.Equal(t, StateReady, f.orch.State())
}

func TestGreetingFailureIsNonFatal(t *testing.T) {
	f := newFixture(t)
	f.conv.openErr = &shared.ConfigurationError{Op: "open session", Err: errors.New("AI API key is not configured")}

	require.NoError(t, f.orch.StartConversation(context.Background(), interviewScenario()))

	msgs := f.orch.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Error: AI failed to start the conversation. AI API key is not configured", msgs[1].Text)
	assert.Equal(t, msgs[1].Text, f.orch.LastError())
	assert.Equal(t, StateReady, f.orch.State())

	require.NoError(t, f.orch.SubmitUserTurn(context.Background(), "Hello?"))
	f.orch.Wait()
	msgs = f.orch.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, NoSessionMessage, msgs[3].Text)
	assert.Equal(t, NoSessionMessage, f.orch.LastError())
}

func TestReadyTransitionHappensOncePerStart(t *testing.T) {
	f := newFixture(t)
	events, unsubscribe := f.orch.Subscribe()
	defer unsubscribe()

	require.NoError(t, f.orch.StartConversation(context.Background(), interviewScenario()))

	var readies int
	for _, ev := range drain(events) {
		if ev.Kind == EventStateChanged && ev.State == StateReady {
			readies++
		}
	}
	assert.Equal(t, 1, readies)
}

func TestSupersededGreetingIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	release := make(chan struct{})
	f.conv.exchange = func(call int, _ string) (ai.Reply, error) {
		if call == 1 {
			<-release
			return ai.Reply{Text: "Late greeting"}, nil
		}
		return ai.Reply{Text: "Fresh greeting"}, nil
	}

	first := make(chan struct{})
	go func() {
		defer close(first)
		_ = f.orch.StartConversation(ctx, interviewScenario())
	}()
	require.Eventually(t, func() bool { return len(f.conv.calls()) == 1 }, time.Second, 5*time.Millisecond)

	events, unsubscribe := f.orch.Subscribe()
	defer unsubscribe()

	second := interviewScenario()
	second.ID = "b1-second"
	require.NoError(t, f.orch.StartConversation(ctx, second))
	close(release)
	<-first

	msgs := f.orch.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Fresh greeting", msgs[1].Text)
	assert.Equal(t, StateReady, f.orch.State())

	var readies int
	for _, ev := range drain(events) {
		if ev.Kind == EventStateChanged && ev.State == StateReady {
			readies++
		}
	}
	assert.Equal(t, 1, readies)
}

func TestUserMessageAppendedBeforeAsyncWork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	release := make(chan struct{})
	f.conv.exchange = func(_ int, text string) (ai.Reply, error) {
		if text == "" {
			return ai.Reply{Text: "Hi."}, nil
		}
		<-release
		return ai.Reply{Text: "Got it."}, nil
	}
	feedbackGate := make(chan struct{})
	f.coach.feedback = func(string) ([]domain.FeedbackItem, error) {
		<-feedbackGate
		return []domain.FeedbackItem{{Category: domain.FeedbackGrammar, Message: "ok"}}, nil
	}
	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.orch.SubmitUserTurn(ctx, "Tell me more")
	}()

	require.Eventually(t, func() bool {
		msgs := f.orch.Messages()
		return len(msgs) == 3 && msgs[2].Sender == domain.SenderUser && msgs[2].FeedbackPending
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateProcessing, f.orch.State())

	close(release)
	<-done
	close(feedbackGate)
	f.orch.Wait()

	msgs := f.orch.Messages()
	require.Len(t, msgs, 4)
	assert.False(t, msgs[2].FeedbackPending)
	assert.Equal(t, "Got it.", msgs[3].Text)
}

func TestOutOfOrderFeedbackLandsOnItsMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gates := map[string]chan struct{}{
		"first":  make(chan struct{}),
		"second": make(chan struct{}),
	}
	f.coach.feedback = func(text string) ([]domain.FeedbackItem, error) {
		<-gates[text]
		return []domain.FeedbackItem{{Category: domain.FeedbackVocabulary, Message: "about " + text}}, nil
	}
	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))
	require.NoError(t, f.orch.SubmitUserTurn(ctx, "first"))
	require.NoError(t, f.orch.SubmitUserTurn(ctx, "second"))

	msgs := f.orch.Messages()
	require.Len(t, msgs, 6)
	firstID, secondID := msgs[2].ID, msgs[4].ID

	close(gates["second"])
	require.Eventually(t, func() bool {
		m, _ := f.orch.Message(secondID)
		return !m.FeedbackPending
	}, time.Second, 5*time.Millisecond)
	first, _ := f.orch.Message(firstID)
	assert.True(t, first.FeedbackPending)

	close(gates["first"])
	f.orch.Wait()

	first, _ = f.orch.Message(firstID)
	second, _ := f.orch.Message(secondID)
	require.Len(t, first.Feedback, 1)
	require.Len(t, second.Feedback, 1)
	assert.Equal(t, "about first", first.Feedback[0].Message)
	assert.Equal(t, "about second", second.Feedback[0].Message)
}

func TestFeedbackFailureUsesPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.coach.feedback = func(string) ([]domain.FeedbackItem, error) {
		return nil, shared.NewServiceError("feedback", errors.New("quota exceeded"))
	}
	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))
	require.NoError(t, f.orch.SubmitUserTurn(ctx, "Hello"))
	f.orch.Wait()

	msgs := f.orch.Messages()
	require.Len(t, msgs, 4)
	require.Len(t, msgs[2].Feedback, 1)
	assert.Equal(t, domain.FeedbackGeneral, msgs[2].Feedback[0].Category)
	assert.Equal(t, FeedbackFailureMessage, msgs[2].Feedback[0].Message)
	assert.Equal(t, "Feedback Error: quota exceeded", f.orch.LastError())
	assert.Equal(t, 1, f.orch.Progress().MessagesSent)
}

func TestFeedbackOfSupersededConversationIsDropped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gate := make(chan struct{})
	f.coach.feedback = func(string) ([]domain.FeedbackItem, error) {
		<-gate
		return []domain.FeedbackItem{{Category: domain.FeedbackGeneral, Message: "late"}}, nil
	}
	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))
	require.NoError(t, f.orch.SubmitUserTurn(ctx, "Hello"))

	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))
	close(gate)
	f.orch.Wait()

	for _, m := range f.orch.Messages() {
		assert.Empty(t, m.Feedback)
	}
	assert.Len(t, f.orch.Messages(), 2)
}

func TestStaleReplyLeavesCountersUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	release := make(chan struct{})
	f.conv.exchange = func(_ int, text string) (ai.Reply, error) {
		if text == "" {
			return ai.Reply{Text: "Hi."}, nil
		}
		<-release
		return ai.Reply{Text: "Too late."}, nil
	}
	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.orch.SubmitUserTurn(ctx, "Hello")
	}()
	require.Eventually(t, func() bool { return len(f.conv.calls()) == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))
	close(release)
	<-done
	f.orch.Wait()

	msgs := f.orch.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi.", msgs[1].Text)
	assert.Equal(t, 0, f.orch.Progress().MessagesSent)
	assert.Equal(t, StateReady, f.orch.State())
}

func TestDisablingFeedbackClearsUserMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))
	require.NoError(t, f.orch.SubmitUserTurn(ctx, "one"))
	f.orch.Wait()

	gate := make(chan struct{})
	f.coach.feedback = func(string) ([]domain.FeedbackItem, error) {
		<-gate
		return []domain.FeedbackItem{{Category: domain.FeedbackGeneral, Message: "late"}}, nil
	}
	require.NoError(t, f.orch.SubmitUserTurn(ctx, "two"))

	updated, err := f.orch.UpdateSetting(ctx, settings.KeyShowFeedback, false)
	require.NoError(t, err)
	assert.False(t, updated.ShowFeedback)

	close(gate)
	f.orch.Wait()

	for _, m := range f.orch.Messages() {
		assert.Empty(t, m.Feedback, m.ID)
		assert.False(t, m.FeedbackPending, m.ID)
	}

	require.NoError(t, f.orch.SubmitUserTurn(ctx, "three"))
	f.orch.Wait()
	msgs := f.orch.Messages()
	last := msgs[len(msgs)-2]
	assert.Equal(t, "three", last.Text)
	assert.False(t, last.FeedbackPending)
	assert.Empty(t, last.Feedback)
}

func TestSubmitUserTurnValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.orch.SubmitUserTurn(ctx, "hello")
	require.Error(t, err)
	assert.True(t, shared.IsUsageError(err))
	assert.Equal(t, NoScenarioMessage, f.orch.LastError())
	assert.Empty(t, f.orch.Messages())

	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))
	err = f.orch.SubmitUserTurn(ctx, "   ")
	require.Error(t, err)
	assert.True(t, shared.IsUsageError(err))
	assert.Len(t, f.orch.Messages(), 2)
}

func TestStartConversationRejectsScenarioWithoutInstruction(t *testing.T) {
	f := newFixture(t)
	sc := interviewScenario()
	sc.SystemInstruction = " "

	err := f.orch.StartConversation(context.Background(), sc)
	require.Error(t, err)
	assert.True(t, shared.IsUsageError(err))
	assert.Equal(t, StateIdle, f.orch.State())
}

func TestEndConversationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))

	require.NoError(t, f.orch.EndConversation(ctx))
	require.NoError(t, f.orch.EndConversation(ctx))

	assert.Equal(t, StateIdle, f.orch.State())
	assert.Empty(t, f.orch.Messages())
	_, ok := f.orch.Scenario()
	assert.False(t, ok)
	assert.Equal(t, 1, f.orch.Progress().ScenariosCompleted)

	var completed int
	_, err := store.LoadJSON(ctx, f.repo, store.KeyScenariosCompleted, &completed)
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
}

func TestSpeechRespectsSettingsAndCleaning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.conv.exchange = func(_ int, text string) (ai.Reply, error) {
		if text == "" {
			return ai.Reply{Text: "** 😀 **"}, nil
		}
		return ai.Reply{Text: "Sure."}, nil
	}

	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))
	assert.Empty(t, f.player.utterances())

	_, err := f.orch.UpdateSetting(ctx, settings.KeyAIVoiceEnabled, false)
	require.NoError(t, err)
	require.NoError(t, f.orch.SubmitUserTurn(ctx, "Hello"))
	f.orch.Wait()
	assert.Empty(t, f.player.utterances())

	_, err = f.orch.UpdateSetting(ctx, settings.KeyAIVoiceEnabled, true)
	require.NoError(t, err)
	_, err = f.orch.UpdateSetting(ctx, settings.KeySelectedVoice, "voice-7")
	require.NoError(t, err)
	require.NoError(t, f.orch.SubmitUserTurn(ctx, "Again"))
	f.orch.Wait()
	assert.Equal(t, []string{"Sure."}, f.player.utterances())
	require.NotNil(t, f.player.voices[0])
	assert.Equal(t, "voice-7", *f.player.voices[0])
}

func TestUpdateSettingRejectsUnknownKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.UpdateSetting(context.Background(), "fontSize", 12)
	require.Error(t, err)
	assert.True(t, shared.IsUsageError(err))
}

func TestHintsForConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.HintsForConversation(ctx)
	assert.True(t, shared.IsUsageError(err))

	var gotUser, gotAI *string
	f.coach.hints = func(_ string, lastUser, lastAI *string) ([]string, error) {
		gotUser, gotAI = lastUser, lastAI
		return []string{"What do you mean?"}, nil
	}
	require.NoError(t, f.orch.StartConversation(ctx, interviewScenario()))

	hints, err := f.orch.HintsForConversation(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"What do you mean?"}, hints)
	assert.Nil(t, gotUser)
	require.NotNil(t, gotAI)

	require.NoError(t, f.orch.SubmitUserTurn(ctx, "I like it"))
	f.orch.Wait()
	_, err = f.orch.HintsForConversation(ctx)
	require.NoError(t, err)
	require.NotNil(t, gotUser)
	assert.Equal(t, "I like it", *gotUser)
	assert.Equal(t, "Nice to hear that.", *gotAI)
}

func TestRequestHintsFailureReturnsPlaceholder(t *testing.T) {
	f := newFixture(t)
	f.coach.hints = func(string, *string, *string) ([]string, error) {
		return nil, shared.NewServiceError("hints", errors.New("timeout"))
	}

	hints := f.orch.RequestHints(context.Background(), "At the bakery", nil, nil)
	assert.Equal(t, []string{HintFailureMessage}, hints)
	assert.Equal(t, "Hint Error: timeout", f.orch.LastError())
}

func TestVoicesAvailableSelectsDefault(t *testing.T) {
	f := newFixture(t)
	events, unsubscribe := f.orch.Subscribe()
	defer unsubscribe()

	voices := []domain.Voice{
		{ID: "en-us-1", Name: "Google US English", Language: "en-US"},
		{ID: "en-gb-f", Name: settings.DefaultVoiceName, Language: settings.DefaultVoiceLanguage},
	}
	require.NoError(t, f.orch.VoicesAvailable(context.Background(), voices))

	s := f.orch.Settings()
	require.NotNil(t, s.SelectedVoiceID)
	assert.Equal(t, "en-gb-f", *s.SelectedVoiceID)

	evs := drain(events)
	require.Len(t, evs, 1)
	assert.Equal(t, EventSettingsChanged, evs[0].Kind)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	f := newFixture(t)
	events, unsubscribe := f.orch.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open)
	require.NoError(t, f.orch.StartConversation(context.Background(), interviewScenario()))
}
