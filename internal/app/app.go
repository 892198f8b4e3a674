// Package app wires configuration, storage, the AI backend and the
// orchestrator together for the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/belai/internal/ai"
	"github.com/ashureev/belai/internal/catalog"
	"github.com/ashureev/belai/internal/config"
	"github.com/ashureev/belai/internal/conversation"
	"github.com/ashureev/belai/internal/progress"
	"github.com/ashureev/belai/internal/settings"
	"github.com/ashureev/belai/internal/speech"
	"github.com/ashureev/belai/internal/store"
	"github.com/ashureev/belai/internal/tutor"
)

// Options selects the variable parts of the wiring.
type Options struct {
	// Ephemeral keeps learner state in memory instead of SQLite.
	Ephemeral bool
	// Player narrates AI messages; nil means no speech synthesis.
	Player speech.Player
	Logger *slog.Logger
}

// App holds the long-lived components of one process.
type App struct {
	Config       *config.Config
	Repo         store.Repository
	Catalog      *catalog.Catalog
	Progress     *progress.Tracker
	Settings     *settings.Store
	Orchestrator *conversation.Orchestrator
	// ConfigErr is the configuration problem to surface as a banner.
	ConfigErr error
	Backend   Backend

	closers []func() error
	logger  *slog.Logger
}

// New builds an App from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	repo, err := openRepository(cfg, opts.Ephemeral)
	if err != nil {
		return nil, err
	}
	a.Repo = repo
	a.closers = append(a.closers, repo.Close)

	if err := repo.Ping(ctx); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	if a.Catalog, err = catalog.Default(); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("load scenario catalog: %w", err)
	}

	a.Progress, err = progress.NewTracker(ctx, repo, progress.Options{Location: cfg.Location, Logger: logger})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.Settings, err = settings.NewStore(ctx, repo, logger); err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Backend = NewBackend(cfg, logger)
	if a.Backend.Close != nil {
		a.closers = append(a.closers, a.Backend.Close)
	}
	a.ConfigErr = a.Backend.ConfigErr
	if a.ConfigErr != nil {
		logger.Warn("AI is not configured", "error", a.ConfigErr)
	}

	a.Orchestrator = conversation.New(conversation.Deps{
		Conversation: a.Backend.Conversation,
		Coach:        a.Backend.Coach,
		Player:       opts.Player,
		Progress:     a.Progress,
		Settings:     a.Settings,
		Logger:       logger,
	})

	logger.Info("application ready",
		"scenarios", a.Catalog.Len(),
		"backend", a.Backend.Name,
		"ephemeral", opts.Ephemeral)
	return a, nil
}

func openRepository(cfg *config.Config, ephemeral bool) (store.Repository, error) {
	if ephemeral {
		return store.NewMemory(), nil
	}
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return repo, nil
}

// Close waits for in-flight feedback and releases resources in reverse order.
func (a *App) Close() error {
	if a.Orchestrator != nil {
		a.Orchestrator.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Backend is the AI implementation chosen by configuration.
type Backend struct {
	Name         string
	Conversation ai.ConversationClient
	Coach        ai.Coach
	ConfigErr    error
	Close        func() error
}

// NewBackend connects to the tutor service when TUTOR_ADDR is set and falls
// back to the OpenAI-compatible API otherwise or when the tutor is down.
func NewBackend(cfg *config.Config, logger *slog.Logger) Backend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TutorAddr != "" {
		logger.Info("connecting to tutor service", "address", cfg.TutorAddr)
		client, err := tutor.NewGrpcClient(cfg.TutorAddr, logger)
		if err == nil {
			return Backend{
				Name:         "tutor",
				Conversation: client,
				Coach:        client,
				Close: func() error {
					client.Close()
					return nil
				},
			}
		}
		logger.Warn("tutor service unavailable, using the AI API directly", "error", err)
	}

	direct := *cfg
	direct.TutorAddr = ""
	client := ai.NewOpenAIClient(ai.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}, logger)
	return Backend{
		Name:         "openai",
		Conversation: client,
		Coach:        client,
		ConfigErr:    direct.ConfigurationError(),
	}
}
