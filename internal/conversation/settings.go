package conversation

import (
	"context"

	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/settings"
	"github.com/ashureev/belai/internal/shared"
)

// UpdateSetting merges one setting, persists it and applies its effect on
// the conversation. Disabling feedback clears feedback from every user
// message; disabling voice stops playback.
func (o *Orchestrator) UpdateSetting(ctx context.Context, key string, value any) (domain.UserSettings, error) {
	updated, err := o.settings.Update(ctx, key, value)
	if err != nil && shared.IsUsageError(err) {
		return updated, err
	}
	if err != nil {
		o.logger.Error("failed to persist settings", "key", key, "error", err)
	}

	o.mu.Lock()
	if key == settings.KeyShowFeedback && !updated.ShowFeedback {
		o.clearFeedbackLocked()
	}
	o.emitLocked(Event{Kind: EventSettingsChanged, Settings: &updated})
	o.mu.Unlock()

	if key == settings.KeyAIVoiceEnabled && !updated.AIVoiceEnabled {
		o.player.Cancel()
	}
	return updated, err
}

func (o *Orchestrator) clearFeedbackLocked() {
	for _, m := range o.log.msgs {
		if m.Sender != domain.SenderUser || (len(m.Feedback) == 0 && !m.FeedbackPending) {
			continue
		}
		patched, _ := o.log.patch(m.ID, func(msg *domain.Message) {
			msg.Feedback = nil
			msg.FeedbackPending = false
		})
		o.emitLocked(Event{Kind: EventMessagePatched, Message: &patched})
	}
}

// VoicesAvailable is called when the platform reports its voice list. It
// selects the default voice when none is chosen yet.
func (o *Orchestrator) VoicesAvailable(ctx context.Context, voices []domain.Voice) error {
	updated, changed, err := o.settings.EnsureDefaultVoice(ctx, voices)
	if changed {
		o.mu.Lock()
		o.emitLocked(Event{Kind: EventSettingsChanged, Settings: &updated})
		o.mu.Unlock()
	}
	return err
}
