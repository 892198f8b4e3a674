package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/ashureev/belai/internal/ai"
	"github.com/ashureev/belai/internal/tutor"
)

func tutorCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tutor",
		Short: "Run the AI tutor as a separate gRPC service",
	}

	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve conversations, feedback and hints over gRPC",
		Long: `Serve the AI backend over gRPC so several BelAI servers can share one
credential. Point them at it with TUTOR_ADDR.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := ai.NewOpenAIClient(ai.Config{
				APIKey:  g.cfg.AI.APIKey,
				BaseURL: g.cfg.AI.BaseURL,
				Model:   g.cfg.AI.Model,
				Timeout: g.cfg.AI.Timeout,
			}, g.logger)
			if err := g.cfg.ConfigurationError(); err != nil {
				g.logger.Warn("Tutor starting without AI credentials", "error", err)
			}

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}

			gs := grpc.NewServer(grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
				MinTime:             time.Minute,
				PermitWithoutStream: true,
			}))
			tutor.NewServer(client, client, g.logger).Register(gs)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)
			go func() {
				<-sig
				g.logger.Info("Stopping tutor")
				gs.GracefulStop()
			}()

			fmt.Fprintf(cmd.ErrOrStderr(), "tutor listening on %s\n", lis.Addr())
			return gs.Serve(lis)
		},
	}
	serve.Flags().StringVar(&addr, "addr", ":50051", "Listen address")

	cmd.AddCommand(serve)
	return cmd
}
