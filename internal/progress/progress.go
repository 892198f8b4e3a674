// Package progress tracks practice counters and the daily streak.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/store"
)

// DateLayout is the calendar-date format of LastPracticeDate.
const DateLayout = "2006-01-02"

// CalendarDate returns t's calendar date in loc.
func CalendarDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}

// previousDay returns the calendar date before date, or "" if date is malformed.
func previousDay(date string) string {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, -1).Format(DateLayout)
}

// Evaluate applies the streak rule for the calendar day today.
//
// With practiced set it records a successful turn: same day keeps the streak,
// the day after the last practice extends it, anything else restarts it at 1.
// Without practiced it only checks for a broken streak: a streak whose last
// practice is neither today nor yesterday is zeroed.
func Evaluate(state domain.ProgressState, today string, practiced bool) domain.ProgressState {
	last := state.LastPracticeDate
	continuing := last == today || (last != "" && last == previousDay(today))

	if !practiced {
		if !continuing {
			state.CurrentStreak = 0
		}
		return state
	}

	switch {
	case last == today:
	case continuing:
		state.CurrentStreak++
	default:
		state.CurrentStreak = 1
	}
	state.LastPracticeDate = today
	return state
}

// Options configures a Tracker.
type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// Location defines calendar days; defaults to time.Local.
	Location *time.Location
	Logger   *slog.Logger
}

// Tracker owns the process-wide ProgressState. It loads persisted counters on
// creation and writes every change through to the repository.
type Tracker struct {
	mu     sync.Mutex
	repo   store.Repository
	state  domain.ProgressState
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

// NewTracker loads persisted progress, zeroing a streak that lapsed while the
// application was not running.
func NewTracker(ctx context.Context, repo store.Repository, opts Options) (*Tracker, error) {
	t := &Tracker{
		repo:   repo,
		now:    opts.Now,
		loc:    opts.Location,
		logger: opts.Logger,
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.loc == nil {
		t.loc = time.Local
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}

	fields := []struct {
		key string
		dst any
	}{
		{store.KeyScenariosCompleted, &t.state.ScenariosCompleted},
		{store.KeyMessagesSent, &t.state.MessagesSent},
		{store.KeyCurrentStreak, &t.state.CurrentStreak},
		{store.KeyLastPracticeDate, &t.state.LastPracticeDate},
	}
	for _, f := range fields {
		if _, err := store.LoadJSON(ctx, repo, f.key, f.dst); err != nil {
			return nil, fmt.Errorf("load progress: %w", err)
		}
	}

	evaluated := Evaluate(t.state, t.today(), false)
	if evaluated.CurrentStreak != t.state.CurrentStreak {
		t.logger.Info("streak lapsed",
			"previous_streak", t.state.CurrentStreak,
			"last_practice_date", t.state.LastPracticeDate)
		t.state = evaluated
		if err := store.SaveJSON(ctx, repo, store.KeyCurrentStreak, t.state.CurrentStreak); err != nil {
			return nil, fmt.Errorf("persist lapsed streak: %w", err)
		}
	}

	return t, nil
}

func (t *Tracker) today() string {
	return CalendarDate(t.now(), t.loc)
}

// State returns a snapshot of the current progress.
func (t *Tracker) State() domain.ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RecordTurn counts one successful AI exchange and updates the streak. The
// counter and streak fields are persisted together.
func (t *Tracker) RecordTurn(ctx context.Context) (domain.ProgressState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := Evaluate(t.state, t.today(), true)
	next.MessagesSent++
	t.state = next

	err := store.SaveManyJSON(ctx, t.repo, map[string]any{
		store.KeyMessagesSent:     next.MessagesSent,
		store.KeyCurrentStreak:    next.CurrentStreak,
		store.KeyLastPracticeDate: next.LastPracticeDate,
	})
	if err != nil {
		return next, fmt.Errorf("persist progress: %w", err)
	}
	return next, nil
}

// RecordScenarioCompleted counts one finished conversation.
func (t *Tracker) RecordScenarioCompleted(ctx context.Context) (domain.ProgressState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.ScenariosCompleted++
	next := t.state
	if err := store.SaveJSON(ctx, t.repo, store.KeyScenariosCompleted, next.ScenariosCompleted); err != nil {
		return next, fmt.Errorf("persist scenarios completed: %w", err)
	}
	return next, nil
}
