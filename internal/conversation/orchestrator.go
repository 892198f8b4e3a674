// Package conversation sequences a practice conversation: AI turns, user
// turns, asynchronous feedback and speech playback, over one message log.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/belai/internal/ai"
	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
	"github.com/ashureev/belai/internal/speech"
)

// State is the turn-sequencing state of the orchestrator.
type State string

// Orchestrator states.
const (
	StateIdle             State = "idle"
	StateAwaitingGreeting State = "awaiting_greeting"
	StateReady            State = "ready_for_user_turn"
	StateProcessing       State = "processing_user_turn"
)

// ProgressRecorder is the process-wide progress state.
type ProgressRecorder interface {
	State() domain.ProgressState
	RecordTurn(ctx context.Context) (domain.ProgressState, error)
	RecordScenarioCompleted(ctx context.Context) (domain.ProgressState, error)
}

// SettingsStore is the process-wide settings state.
type SettingsStore interface {
	Get() domain.UserSettings
	Update(ctx context.Context, key string, value any) (domain.UserSettings, error)
	EnsureDefaultVoice(ctx context.Context, voices []domain.Voice) (domain.UserSettings, bool, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Conversation ai.ConversationClient
	Coach        ai.Coach
	Player       speech.Player
	Progress     ProgressRecorder
	Settings     SettingsStore
	Logger       *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator is the single source of truth for the active conversation.
// All mutation of the log, state and active identity happens under mu.
type Orchestrator struct {
	conv     ai.ConversationClient
	coach    ai.Coach
	player   speech.Player
	progress ProgressRecorder
	settings SettingsStore
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.Mutex
	state      State
	scenario   *domain.Scenario
	session    ai.Session
	generation string
	log        *messageLog
	lastErr    string
	inflight   int
	subs       map[int]chan Event
	nextSub    int

	feedback sync.WaitGroup
}

// New creates an idle orchestrator.
func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		conv:     d.Conversation,
		coach:    d.Coach,
		player:   d.Player,
		progress: d.Progress,
		settings: d.Settings,
		logger:   d.Logger,
		now:      d.Now,
		state:    StateIdle,
		log:      newMessageLog(),
		subs:     make(map[int]chan Event),
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.player == nil {
		o.player = speech.NoopPlayer{}
	}
	return o
}

// Snapshot is a consistent view of the active conversation.
type Snapshot struct {
	State      State            `json:"state"`
	Generation string           `json:"generation,omitempty"`
	Scenario   *domain.Scenario `json:"scenario,omitempty"`
	Messages   []domain.Message `json:"messages"`
	LastError  string           `json:"last_error,omitempty"`
}

// Snapshot returns the state, scenario, log and last error read together.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		State:      o.state,
		Generation: o.generation,
		Messages:   o.log.snapshot(),
		LastError:  o.lastErr,
	}
	if o.scenario != nil {
		sc := *o.scenario
		s.Scenario = &sc
	}
	return s
}

// Messages returns a copy of the message log.
func (o *Orchestrator) Messages() []domain.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.log.snapshot()
}

// Message returns the message with id.
func (o *Orchestrator) Message(id string) (domain.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.log.get(id)
}

// State returns the current turn-sequencing state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Scenario returns the active scenario, if any.
func (o *Orchestrator) Scenario() (domain.Scenario, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.scenario == nil {
		return domain.Scenario{}, false
	}
	return *o.scenario, true
}

// LastError returns the most recent user-visible error, or "".
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Progress returns the learner's practice counters.
func (o *Orchestrator) Progress() domain.ProgressState {
	return o.progress.State()
}

// Settings returns the current user settings.
func (o *Orchestrator) Settings() domain.UserSettings {
	return o.settings.Get()
}

// Player returns the speech player used for AI messages.
func (o *Orchestrator) Player() speech.Player {
	return o.player
}

// Wait blocks until in-flight feedback fetches have resolved.
func (o *Orchestrator) Wait() {
	o.feedback.Wait()
}

func (o *Orchestrator) setStateLocked(s State) {
	if o.state == s {
		return
	}
	o.logger.Debug("conversation state changed", "from", o.state, "to", s, "generation", o.generation)
	o.state = s
	o.emitLocked(Event{Kind: EventStateChanged, State: s})
}

func (o *Orchestrator) setErrorLocked(msg string) {
	o.lastErr = msg
	o.emitLocked(Event{Kind: EventError, Error: msg})
}

func (o *Orchestrator) appendLocked(prefix string, sender domain.Sender, text string) domain.Message {
	m := domain.Message{
		ID:        prefix + "-" + uuid.NewString(),
		Text:      text,
		Sender:    sender,
		CreatedAt: o.now(),
	}
	o.log.append(m)
	return m
}

func (o *Orchestrator) publishAppendedLocked(m domain.Message) {
	c := m.Clone()
	o.emitLocked(Event{Kind: EventMessageAppended, Message: &c})
}

// appendSystemErrorLocked adds a system message and records it as the last error.
func (o *Orchestrator) appendSystemErrorLocked(text string) {
	o.publishAppendedLocked(o.appendLocked("system", domain.SenderSystem, text))
	o.setErrorLocked(text)
}

// currentLocked reports whether gen is still the active conversation.
func (o *Orchestrator) currentLocked(gen string) bool {
	return gen != "" && gen == o.generation
}

// detail extracts the human-readable cause from a collaborator error.
func detail(err error) string {
	var cfg *shared.ConfigurationError
	if errors.As(err, &cfg) && cfg.Err != nil {
		return cfg.Err.Error()
	}
	var svc *shared.ServiceError
	if errors.As(err, &svc) && svc.Err != nil {
		return svc.Err.Error()
	}
	return err.Error()
}
