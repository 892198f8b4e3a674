package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ashureev/belai/internal/catalog"
	"github.com/ashureev/belai/internal/config"
	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/settings"
	"github.com/ashureev/belai/internal/shared"
	"github.com/ashureev/belai/internal/speech"
)

func scenariosCmd(g *globals) *cobra.Command {
	var level string

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List practice scenarios by level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.Default()
			if err != nil {
				return err
			}
			levels := cat.Levels()
			if level != "" {
				l, err := domain.ParseLevel(level)
				if err != nil {
					return err
				}
				levels = []domain.Level{l}
			}
			r := newRenderer(cmd.OutOrStdout())
			for _, l := range levels {
				r.Scenarios(l, cat.ScenariosByLevel(l))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&level, "level", "l", "", "Only list this level (A1..C2)")
	return cmd
}

func chatCmd(g *globals) *cobra.Command {
	var (
		level string
		topic string
		mute  bool
	)

	cmd := &cobra.Command{
		Use:   "chat [scenario-id]",
		Short: "Practice a scenario in the terminal",
		Long: `Start a conversation with an AI persona.

Pass a scenario id from "belai scenarios", or --level with --topic to talk
about a topic of your own. End with /end or Ctrl-D.`,
		Example: `  belai chat b1-job-interview-basic
  belai chat --level B2 --topic "renting a flat in London"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cat, err := catalog.Default()
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			sc, err := pickScenario(cat, id, level, topic, time.Now())
			if err != nil {
				return err
			}

			var player speech.Player = speech.NoopPlayer{}
			if !mute {
				player = speech.NewCommandPlayer(g.cfg.TTSCommand, g.logger)
			}

			a, err := g.open(ctx, player)
			if err != nil {
				return err
			}
			defer closeApp(a)

			out := newRenderer(cmd.OutOrStdout())
			if a.ConfigErr != nil {
				out.Banner(config.MissingKeyBanner)
			}
			if player.Supported() {
				if err := a.Orchestrator.VoicesAvailable(ctx, player.Voices()); err != nil {
					g.logger.Warn("Failed to save default voice", "error", err)
				}
			}

			session := &chatSession{orch: a.Orchestrator, out: out, in: cmd.InOrStdin()}
			if err := session.run(ctx, sc); err != nil {
				return err
			}
			out.printf("\n")
			out.Progress(a.Orchestrator.Progress())
			return nil
		},
	}

	cmd.Flags().StringVarP(&level, "level", "l", "", "Level for a custom topic (A1..C2)")
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Talk about your own topic")
	cmd.Flags().BoolVar(&mute, "mute", false, "Do not speak AI messages aloud")
	return cmd
}

// pickScenario resolves the chat arguments to a scenario. A custom-topic
// template id requires a topic.
func pickScenario(cat *catalog.Catalog, id, level, topic string, now time.Time) (domain.Scenario, error) {
	if id != "" {
		sc, ok := cat.Scenario(id)
		if !ok {
			return domain.Scenario{}, shared.Usagef("chat", "unknown scenario %q, see belai scenarios", id)
		}
		if !sc.IsCustomTopicTemplate() {
			return sc, nil
		}
		if topic == "" {
			return domain.Scenario{}, shared.Usagef("chat", "scenario %s needs --topic", id)
		}
		return catalog.SynthesizeCustomTopic(sc.Level, topic, now)
	}
	if topic == "" {
		return domain.Scenario{}, shared.Usagef("chat", "pass a scenario id or --topic")
	}
	if level == "" {
		return domain.Scenario{}, shared.Usagef("chat", "--topic needs --level")
	}
	l, err := domain.ParseLevel(level)
	if err != nil {
		return domain.Scenario{}, &shared.UsageError{Op: "chat", Err: err}
	}
	return catalog.SynthesizeCustomTopic(l, topic, now)
}

func progressCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show your practice streak and counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			newRenderer(cmd.OutOrStdout()).Progress(a.Orchestrator.Progress())
			return nil
		},
	}
}

func settingsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show your preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			printSettings(newRenderer(cmd.OutOrStdout()), a.Orchestrator.Settings())
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one preference",
		Long: fmt.Sprintf(`Change one preference.

Keys: %s, %s, %s (true/false) and %s (a voice id, or "null" for the
platform default).`, settings.KeyAIVoiceEnabled, settings.KeyShowFeedback, settings.KeyDarkMode, settings.KeySelectedVoice),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeApp(a)

			s, err := a.Orchestrator.UpdateSetting(cmd.Context(), args[0], parseSettingValue(args[1]))
			if err != nil {
				return err
			}
			printSettings(newRenderer(cmd.OutOrStdout()), s)
			return nil
		},
	}
	cmd.AddCommand(set)
	return cmd
}

// parseSettingValue maps command-line text to the value types settings accept.
func parseSettingValue(v string) any {
	switch strings.ToLower(v) {
	case "true", "on", "yes":
		return true
	case "false", "off", "no":
		return false
	case "", "null", "none", "default":
		return nil
	default:
		return v
	}
}

func printSettings(r *renderer, s domain.UserSettings) {
	voice := "platform default"
	if s.SelectedVoiceID != nil {
		voice = *s.SelectedVoiceID
	}
	r.printf("%s %t\n%s %s\n%s %t\n%s %t\n",
		color.CyanString("%-17s", settings.KeyAIVoiceEnabled), s.AIVoiceEnabled,
		color.CyanString("%-17s", settings.KeySelectedVoice), voice,
		color.CyanString("%-17s", settings.KeyShowFeedback), s.ShowFeedback,
		color.CyanString("%-17s", settings.KeyDarkMode), s.DarkMode)
}

func voicesCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List English voices of the local speech synthesizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			player := speech.NewCommandPlayer(g.cfg.TTSCommand, g.logger)
			if !player.Supported() {
				return &shared.CapabilityUnsupportedError{Capability: "speech synthesis"}
			}

			a, err := g.open(cmd.Context(), player)
			if err != nil {
				return err
			}
			defer closeApp(a)

			voices := player.Voices()
			if err := a.Orchestrator.VoicesAvailable(cmd.Context(), voices); err != nil {
				fmt.Fprintln(os.Stderr, color.RedString("save default voice: %v", err))
			}
			selected := a.Orchestrator.Settings().SelectedVoiceID

			r := newRenderer(cmd.OutOrStdout())
			for _, v := range settings.EnglishVoices(voices) {
				mark := " "
				if selected != nil && *selected == v.ID {
					mark = color.GreenString("*")
				}
				r.printf("%s %-32s %s\n", mark, v.ID, color.HiBlackString("%s (%s)", v.Name, v.Language))
			}
			return nil
		},
	}
}
