package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/ashureev/belai/internal/ai"
	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
	"github.com/ashureev/belai/internal/speech"
)

// User-facing texts recorded in the log or as the last error.
const (
	greetingFailedPrefix = "Error: AI failed to start the conversation. "
	replyFailedPrefix    = "AI service error: "
	feedbackFailedPrefix = "Feedback Error: "
	hintFailedPrefix     = "Hint Error: "

	NoSessionMessage        = "Chat session not available for AI reply. Please start a new scenario."
	NoScenarioMessage       = "Please select a scenario first."
	FeedbackFailureMessage  = "Could not load feedback due to an error."
	HintFailureMessage      = "Error: Could not fetch suggestions."
	conversationStartFormat = "Conversation started: %s. AI: %s. Waiting for AI's first message..."
)

// StartConversation replaces any active conversation with one for sc and
// asks the AI to open it. AI failures are recorded in the log, not returned.
func (o *Orchestrator) StartConversation(ctx context.Context, sc domain.Scenario) error {
	if strings.TrimSpace(sc.SystemInstruction) == "" {
		return shared.Usagef("start conversation", "scenario %q has no system instruction", sc.ID)
	}

	o.player.Cancel()

	gen := ulid.Make().String()
	o.mu.Lock()
	o.generation = gen
	o.scenario = &sc
	o.session = nil
	o.inflight = 0
	o.lastErr = ""
	o.log.reset()
	o.emitLocked(Event{Kind: EventLogCleared, Scenario: &sc})
	o.publishAppendedLocked(o.appendLocked("system", domain.SenderSystem,
		fmt.Sprintf(conversationStartFormat, sc.Title, sc.Persona)))
	o.setStateLocked(StateAwaitingGreeting)
	o.mu.Unlock()

	o.logger.Info("conversation started", "scenario_id", sc.ID, "level", sc.Level, "generation", gen)
	defer o.markReady(gen)

	ctx = context.WithoutCancel(ctx)
	session, err := o.conv.OpenSession(ctx, sc.SystemInstruction)
	if err != nil {
		o.failGreeting(gen, err)
		return nil
	}
	if !o.bindSession(gen, session) {
		return nil
	}

	reply, err := o.conv.Exchange(ctx, session, "")
	if err != nil {
		o.failGreeting(gen, err)
		return nil
	}
	o.appendAIReply(ctx, gen, "ai-greeting", reply)
	return nil
}

func (o *Orchestrator) bindSession(gen string, s ai.Session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(gen) {
		o.logger.Debug("discarding session of superseded conversation", "generation", gen)
		return false
	}
	o.session = s
	return true
}

func (o *Orchestrator) failGreeting(gen string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(gen) {
		return
	}
	o.logger.Error("AI failed to start conversation", "generation", gen, "error", err)
	o.appendSystemErrorLocked(greetingFailedPrefix + detail(err))
}

// markReady ends the greeting phase of gen unless it was superseded.
func (o *Orchestrator) markReady(gen string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.currentLocked(gen) && o.state == StateAwaitingGreeting {
		o.setStateLocked(StateReady)
	}
}

// appendAIReply adds reply to the log of gen and speaks it. It reports false
// when gen was superseded and the reply discarded.
func (o *Orchestrator) appendAIReply(ctx context.Context, gen, prefix string, reply ai.Reply) bool {
	o.mu.Lock()
	if !o.currentLocked(gen) {
		o.mu.Unlock()
		o.logger.Debug("discarding AI reply of superseded conversation", "generation", gen)
		return false
	}
	m := o.appendLocked(prefix, domain.SenderAI, reply.Text)
	if len(reply.Citations) > 0 {
		m, _ = o.log.patch(m.ID, func(msg *domain.Message) {
			msg.Citations = append([]domain.Citation(nil), reply.Citations...)
		})
	}
	o.publishAppendedLocked(m)
	o.mu.Unlock()

	o.speak(ctx, reply.Text)
	return true
}

// speak plays text when AI voice is enabled and the cleaned text is not empty.
func (o *Orchestrator) speak(ctx context.Context, text string) {
	s := o.settings.Get()
	if !s.AIVoiceEnabled || !o.player.Supported() {
		return
	}
	cleaned := speech.CleanForSpeech(text)
	if cleaned == "" {
		return
	}
	if err := o.player.Speak(ctx, cleaned, s.SelectedVoiceID); err != nil {
		o.logger.Warn("speech playback failed", "error", err)
	}
}

// SubmitUserTurn appends the learner's text and resolves the AI reply and,
// when enabled, feedback on the text. AI failures are recorded in the log.
func (o *Orchestrator) SubmitUserTurn(ctx context.Context, text string) error {
	const op = "submit user turn"

	text = strings.TrimSpace(text)
	if text == "" {
		return shared.Usagef(op, "message text is empty")
	}

	showFeedback := o.settings.Get().ShowFeedback

	o.mu.Lock()
	if o.scenario == nil {
		o.setErrorLocked(NoScenarioMessage)
		o.mu.Unlock()
		return shared.Usagef(op, "no scenario is active")
	}
	if o.state == StateAwaitingGreeting {
		o.mu.Unlock()
		return shared.Usagef(op, "the AI has not opened the conversation yet")
	}
	gen := o.generation
	desc := o.scenario.Description
	session := o.session

	m := o.appendLocked("user", domain.SenderUser, text)
	if showFeedback {
		m, _ = o.log.patch(m.ID, func(msg *domain.Message) { msg.FeedbackPending = true })
	}
	o.publishAppendedLocked(m)
	o.inflight++
	o.setStateLocked(StateProcessing)
	if showFeedback {
		o.feedback.Add(1)
		go o.fetchFeedback(context.WithoutCancel(ctx), gen, m.ID, text, desc)
	}
	o.mu.Unlock()

	defer o.finishTurn(gen)

	if session == nil {
		o.mu.Lock()
		if o.currentLocked(gen) {
			o.appendSystemErrorLocked(NoSessionMessage)
		}
		o.mu.Unlock()
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	reply, err := o.conv.Exchange(ctx, session, text)
	if err != nil {
		o.mu.Lock()
		if o.currentLocked(gen) {
			o.logger.Error("AI exchange failed", "generation", gen, "error", err)
			o.appendSystemErrorLocked(replyFailedPrefix + detail(err))
		}
		o.mu.Unlock()
		return nil
	}

	if !o.appendAIReply(ctx, gen, "ai-reply", reply) {
		return nil
	}
	o.recordTurn(ctx, gen)
	return nil
}

func (o *Orchestrator) recordTurn(ctx context.Context, gen string) {
	state, err := o.progress.RecordTurn(ctx)
	if err != nil {
		o.logger.Error("failed to persist progress", "generation", gen, "error", err)
	}
	o.mu.Lock()
	o.emitLocked(Event{Kind: EventProgressChanged, Progress: &state})
	o.mu.Unlock()
}

func (o *Orchestrator) finishTurn(gen string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(gen) {
		return
	}
	o.inflight--
	if o.inflight <= 0 {
		o.inflight = 0
		if o.state == StateProcessing {
			o.setStateLocked(StateReady)
		}
	}
}

// fetchFeedback resolves feedback for message id and patches it in place.
func (o *Orchestrator) fetchFeedback(ctx context.Context, gen, id, text, desc string) {
	defer o.feedback.Done()

	items, err := o.coach.Feedback(ctx, text, desc)

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.currentLocked(gen) {
		o.logger.Debug("discarding feedback of superseded conversation", "message_id", id, "generation", gen)
		return
	}
	if !o.settings.Get().ShowFeedback {
		o.logger.Debug("discarding feedback after display was disabled", "message_id", id)
		return
	}
	if err != nil {
		o.logger.Warn("feedback generation failed", "message_id", id, "error", err)
		items = []domain.FeedbackItem{{Category: domain.FeedbackGeneral, Message: FeedbackFailureMessage}}
		o.setErrorLocked(feedbackFailedPrefix + detail(err))
	}
	m, ok := o.log.patch(id, func(msg *domain.Message) {
		msg.Feedback = append([]domain.FeedbackItem(nil), items...)
		msg.FeedbackPending = false
	})
	if ok {
		o.emitLocked(Event{Kind: EventMessagePatched, Message: &m})
	}
}

// RequestHints asks for phrases the learner could say next. It never fails:
// a generator error yields a single placeholder hint and sets the last error.
func (o *Orchestrator) RequestHints(ctx context.Context, scenarioContext string, lastUserText, lastAIText *string) []string {
	hints, err := o.coach.Hints(ctx, scenarioContext, lastUserText, lastAIText)
	if err != nil {
		o.logger.Warn("hint generation failed", "error", err)
		o.mu.Lock()
		o.setErrorLocked(hintFailedPrefix + detail(err))
		o.mu.Unlock()
		return []string{HintFailureMessage}
	}
	return hints
}

// HintsForConversation requests hints for the active scenario using the most
// recent user and AI messages in the log.
func (o *Orchestrator) HintsForConversation(ctx context.Context) ([]string, error) {
	o.mu.Lock()
	if o.scenario == nil {
		o.mu.Unlock()
		return nil, shared.Usagef("request hints", "no scenario is active")
	}
	desc := o.scenario.Description
	lastUser := o.log.lastText(domain.SenderUser)
	lastAI := o.log.lastText(domain.SenderAI)
	o.mu.Unlock()

	return o.RequestHints(ctx, desc, lastUser, lastAI), nil
}

// EndConversation discards the active conversation and returns to idle. A
// conversation that was active counts as completed. Ending twice is a no-op.
func (o *Orchestrator) EndConversation(ctx context.Context) error {
	o.player.Cancel()

	o.mu.Lock()
	active := o.scenario != nil
	if active {
		o.logger.Info("conversation ended", "scenario_id", o.scenario.ID, "generation", o.generation,
			"messages", o.log.len())
	}
	o.generation = ""
	o.scenario = nil
	o.session = nil
	o.inflight = 0
	o.lastErr = ""
	if active {
		o.log.reset()
		o.emitLocked(Event{Kind: EventLogCleared})
	}
	o.setStateLocked(StateIdle)
	o.mu.Unlock()

	if !active {
		return nil
	}
	state, err := o.progress.RecordScenarioCompleted(ctx)
	o.mu.Lock()
	o.emitLocked(Event{Kind: EventProgressChanged, Progress: &state})
	o.mu.Unlock()
	if err != nil {
		return fmt.Errorf("end conversation: %w", err)
	}
	return nil
}
