package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/ashureev/belai/internal/conversation"
	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/settings"
	"github.com/ashureev/belai/internal/shared"
)

const chatHelp = `Commands:
  /hint            suggest phrases to say next
  /feedback on|off toggle feedback on your messages
  /voice on|off    toggle the AI voice
  /end, /quit      finish the conversation`

// chatSession drives one conversation from a line-oriented input.
type chatSession struct {
	orch *conversation.Orchestrator
	out  *renderer
	in   io.Reader
}

// run starts sc, reads learner input until /end or EOF and then ends the
// conversation. Orchestrator events are printed as they arrive.
func (c *chatSession) run(ctx context.Context, sc domain.Scenario) error {
	events, unsubscribe := c.orch.Subscribe()
	var printer sync.WaitGroup
	printer.Add(1)
	go func() {
		defer printer.Done()
		for ev := range events {
			c.print(ev)
		}
	}()
	// Stop the printer only after every feedback goroutine has published.
	defer func() {
		c.orch.Wait()
		unsubscribe()
		printer.Wait()
	}()

	c.out.printf("%s %s\n%s\n\n", color.CyanString("Scenario:"), sc.Title, color.HiBlackString(chatHelp))

	if err := c.orch.StartConversation(ctx, sc); err != nil {
		return err
	}

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			done, err := c.command(ctx, line)
			if err != nil {
				c.out.Error(err)
			}
			if done {
				break
			}
			continue
		}
		if err := c.orch.SubmitUserTurn(ctx, line); err != nil {
			c.out.Error(err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	// Let feedback on the last message arrive before the log is cleared.
	c.orch.Wait()
	return c.orch.EndConversation(context.WithoutCancel(ctx))
}

// command handles one slash command and reports whether the session is over.
func (c *chatSession) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/end", "/quit", "/exit":
		return true, nil
	case "/help":
		c.out.printf("%s\n", color.HiBlackString(chatHelp))
	case "/hint", "/hints":
		hints, err := c.orch.HintsForConversation(ctx)
		if err != nil {
			return false, err
		}
		c.out.Hints(hints)
	case "/feedback":
		return false, c.toggle(ctx, settings.KeyShowFeedback, fields)
	case "/voice":
		return false, c.toggle(ctx, settings.KeyAIVoiceEnabled, fields)
	default:
		return false, shared.Usagef("", "unknown command %s, try /help", fields[0])
	}
	return false, nil
}

func (c *chatSession) toggle(ctx context.Context, key string, fields []string) error {
	if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
		return shared.Usagef("", "usage: %s on|off", fields[0])
	}
	s, err := c.orch.UpdateSetting(ctx, key, fields[1] == "on")
	if shared.IsUsageError(err) {
		return err
	}
	if err != nil {
		// Applied for this session, only persistence failed.
		c.out.Error(err)
	}
	c.out.printf("%s feedback=%t voice=%t\n", color.HiBlackString("settings:"), s.ShowFeedback, s.AIVoiceEnabled)
	return nil
}

func (c *chatSession) print(ev conversation.Event) {
	switch ev.Kind {
	case conversation.EventMessageAppended:
		if ev.Message != nil {
			c.out.Message(*ev.Message)
		}
	case conversation.EventMessagePatched:
		if ev.Message != nil && !ev.Message.FeedbackPending {
			c.out.Feedback(*ev.Message)
		}
	}
}
