// Package main provides the BelAI terminal practice CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/belai/internal/app"
	"github.com/ashureev/belai/internal/config"
	"github.com/ashureev/belai/internal/speech"
)

var version = "0.1.0"

// globals holds the persistent flags and what they configure.
type globals struct {
	verbose   bool
	ephemeral bool
	noColor   bool

	cfg    *config.Config
	logger *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:     "belai",
		Short:   "Practice English conversation with an AI partner",
		Version: version,
		Long: `BelAI: scenario-based English conversation practice.

Pick a scenario at your level, chat with an AI persona, get feedback on
your messages and ask for hints when you are stuck.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&g.ephemeral, "ephemeral", false, "Keep progress and settings in memory only")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddGroup(
		&cobra.Group{ID: "practice", Title: "Practice:"},
		&cobra.Group{ID: "state", Title: "Learner state:"},
		&cobra.Group{ID: "service", Title: "Services:"},
	)

	for _, c := range []*cobra.Command{chatCmd(g), scenariosCmd(g)} {
		c.GroupID = "practice"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{progressCmd(g), settingsCmd(g), voicesCmd(g)} {
		c.GroupID = "state"
		rootCmd.AddCommand(c)
	}
	t := tutorCmd(g)
	t.GroupID = "service"
	rootCmd.AddCommand(t)

	return rootCmd
}

func (g *globals) setup() error {
	level := slog.LevelWarn
	if g.verbose {
		level = slog.LevelDebug
	}
	g.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.logger)

	if g.noColor {
		color.NoColor = true
	}

	if err := godotenv.Load(); err != nil {
		g.logger.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}

// open builds the application. player may be nil.
func (g *globals) open(ctx context.Context, player speech.Player) (*app.App, error) {
	a, err := app.New(ctx, g.cfg, app.Options{
		Ephemeral: g.ephemeral,
		Player:    player,
		Logger:    g.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("start belai: %w", err)
	}
	return a, nil
}

// closeApp releases a and reports failures on stderr.
func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("close: %v", err))
	}
}
