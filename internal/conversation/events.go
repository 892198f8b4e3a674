package conversation

import "github.com/ashureev/belai/internal/domain"

// EventKind names an orchestrator change.
type EventKind string

// Event kinds.
const (
	EventMessageAppended EventKind = "message_appended"
	EventMessagePatched  EventKind = "message_patched"
	EventLogCleared      EventKind = "log_cleared"
	EventStateChanged    EventKind = "state_changed"
	EventSettingsChanged EventKind = "settings_changed"
	EventProgressChanged EventKind = "progress_changed"
	EventError           EventKind = "error"
)

// Event describes one change to orchestrator state. Only the fields relevant
// to Kind are set.
type Event struct {
	Kind       EventKind             `json:"kind"`
	Generation string                `json:"generation,omitempty"`
	Message    *domain.Message       `json:"message,omitempty"`
	State      State                 `json:"state,omitempty"`
	Scenario   *domain.Scenario      `json:"scenario,omitempty"`
	Settings   *domain.UserSettings  `json:"settings,omitempty"`
	Progress   *domain.ProgressState `json:"progress,omitempty"`
	Error      string                `json:"error,omitempty"`
}

const subscriberBuffer = 64

// Subscribe registers for events. Delivery never blocks the orchestrator: a
// subscriber whose buffer is full misses events and should re-read the
// snapshot. The returned func unsubscribes and closes the channel.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	o.mu.Unlock()

	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(ch)
		}
	}
}

// emitLocked publishes ev. Callers hold o.mu, which keeps events in order.
func (o *Orchestrator) emitLocked(ev Event) {
	if ev.Generation == "" {
		ev.Generation = o.generation
	}
	for id, ch := range o.subs {
		select {
		case ch <- ev:
		default:
			o.logger.Warn("dropping event for slow subscriber", "subscriber", id, "kind", ev.Kind)
		}
	}
}
