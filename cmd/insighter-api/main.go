package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/insighter/internal/app/conversation"
	"github.com/PabloGalante/insighter/internal/config"
	"github.com/PabloGalante/insighter/internal/domain"
	"github.com/PabloGalante/insighter/internal/observability"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "insighter-api",
		Short:        "Multi-agent data analysis assistant",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		observability.SetLevel(cfg.LogLevel)
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newAskCmd(load),
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := &http.Server{
				Addr:              ":" + cfg.Server.Port,
				Handler:           a.handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			log := observability.Logger()
			errCh := make(chan error, 1)
			go func() {
				log.Info("insighter api listening", "addr", srv.Addr, "mode", cfg.Mode, "llm_provider", cfg.LLM.Provider)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newAskCmd(load func() (*config.Config, error)) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run one request through the orchestrator and print the replies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			started, err := a.conversations.StartSession(ctx, conversation.StartSessionInput{UserID: domain.UserID(userID), Title: "cli"})
			if err != nil {
				return err
			}

			out, err := a.conversations.SendMessage(ctx, conversation.SendMessageInput{
				SessionID: started.Session.ID,
				UserID:    domain.UserID(userID),
				Text:      strings.Join(args, " "),
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, m := range out.Replies {
				fmt.Fprintf(w, "[%s]\n%s\n\n", m.Author, m.Text())
			}
			for _, s := range out.Steps {
				fmt.Fprintf(w, "turn %d: %s (%s, %s)\n", s.Turn, s.Agent, s.Source, s.Status)
			}
			if out.Summary != "" {
				fmt.Fprintf(w, "summary: %s\n", out.Summary)
			}
			if len(out.Leftover) > 0 {
				fmt.Fprintf(w, "unserved tasks: %s\n", strings.Join(out.Leftover, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "cli", "user id that owns the session")
	return cmd
}
