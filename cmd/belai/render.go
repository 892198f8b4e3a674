package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/ashureev/belai/internal/domain"
)

// renderer prints conversation output. It is safe for concurrent use so
// event-driven output never interleaves mid-line with prompts.
type renderer struct {
	mu  sync.Mutex
	out io.Writer
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out}
}

func (r *renderer) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

// Message prints one log entry.
func (r *renderer) Message(m domain.Message) {
	var sb strings.Builder
	switch m.Sender {
	case domain.SenderAI:
		sb.WriteString(color.CyanString("AI: ") + m.Text + "\n")
		for _, c := range m.Citations {
			fmt.Fprintf(&sb, "    %s %s\n", color.HiBlackString("source:"), c.Title+" <"+c.URI+">")
		}
	case domain.SenderUser:
		sb.WriteString(color.GreenString("You: ") + m.Text + "\n")
	default:
		sb.WriteString(color.YellowString("! %s", m.Text) + "\n")
	}
	r.printf("%s", sb.String())
}

// Feedback prints the feedback attached to a user message.
func (r *renderer) Feedback(m domain.Message) {
	if len(m.Feedback) == 0 {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s %q\n", color.MagentaString("feedback on"), truncate(m.Text, 40))
	for _, f := range m.Feedback {
		fmt.Fprintf(&sb, "    %s %s\n", color.MagentaString("[%s]", f.Category), f.Message)
		if f.Suggestion != "" {
			fmt.Fprintf(&sb, "      %s %s\n", color.HiBlackString("try:"), f.Suggestion)
		}
	}
	r.printf("%s", sb.String())
}

// Hints prints suggested phrases.
func (r *renderer) Hints(hints []string) {
	var sb strings.Builder
	sb.WriteString(color.BlueString("Hints:\n"))
	for _, h := range hints {
		fmt.Fprintf(&sb, "  • %s\n", h)
	}
	r.printf("%s", sb.String())
}

// Error prints an error line.
func (r *renderer) Error(err error) {
	r.printf("%s\n", color.RedString("error: %v", err))
}

// Banner prints a persistent configuration warning.
func (r *renderer) Banner(text string) {
	r.printf("%s\n", color.New(color.FgWhite, color.BgRed).Sprint(" "+text+" "))
}

// Progress prints the learner's counters.
func (r *renderer) Progress(p domain.ProgressState) {
	last := p.LastPracticeDate
	if last == "" {
		last = "never"
	}
	r.printf("%s %d day(s)\n%s %d\n%s %d\n%s %s\n",
		color.CyanString("Current streak:    "), p.CurrentStreak,
		color.CyanString("Messages sent:     "), p.MessagesSent,
		color.CyanString("Scenarios finished:"), p.ScenariosCompleted,
		color.CyanString("Last practice:     "), last)
}

// Scenarios prints a level's scenarios.
func (r *renderer) Scenarios(level domain.Level, scenarios []domain.Scenario) {
	var sb strings.Builder
	sb.WriteString(color.CyanString(level.Label()) + "\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n")
	for _, s := range scenarios {
		fmt.Fprintf(&sb, "  %-28s %s\n", color.HiBlackString(s.ID), s.Title)
		if s.Description != "" {
			fmt.Fprintf(&sb, "  %-28s %s\n", "", truncate(s.Description, 70))
		}
	}
	r.printf("%s\n", sb.String())
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
