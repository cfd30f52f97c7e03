package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/lettersync/config"
	"github.com/jpalmerr/lettersync/internal/csrf"
	"github.com/jpalmerr/lettersync/internal/server"
	"github.com/jpalmerr/lettersync/internal/store"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the letter-status server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the letter-status server",
	Long: `Start the reference letter-status server.

The server will:
  - Load configuration from the specified YAML file
  - Open the store (PostgreSQL if server.database_url is set, memory otherwise)
  - Seed the configured letters, keeping letters that already exist
  - Serve the letter-status page and API on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  lettersync serve -c config.yaml
  lettersync serve --config /etc/lettersync/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().BoolP("verbose", "v", false, "enable debug logging")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := newLogger(verbose)

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	added, err := seedLetters(ctx, st, cfg.Server.Letters)
	if err != nil {
		return fmt.Errorf("failed to seed letters: %w", err)
	}
	logger.Info("letters seeded",
		"configured", len(cfg.Server.Letters),
		"added", added,
	)

	srv, err := server.NewServer(st, csrf.New(cfg.Server.CSRFTTL.Duration()), cfg.Server.Port, cfg.Title, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting server",
		"port", cfg.Server.Port,
		"csrf_ttl", cfg.Server.CSRFTTL.Duration().String(),
	)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	<-ctx.Done()

	// signal received, wait for graceful shutdown with timeout
	select {
	case <-srv.Done():
		logger.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out",
			"timeout", shutdownTimeout.String(),
			"action", "forcing exit",
		)
	}
	return nil
}

// openStore returns the configured store and a function releasing it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.Server.DatabaseURL == "" {
		logger.Info("using in-memory store")
		return store.NewMemoryStore(), func() {}, nil
	}

	pg, err := store.NewPgStore(ctx, cfg.Server.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Info("connected to database", "db", pg.String())

	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return pg, pg.Close, nil
}

// seedLetters adds the configured letters to st and returns how many were
// new. Letters already stored keep their status.
func seedLetters(ctx context.Context, st store.Store, letters []config.LetterConfig) (int, error) {
	added := 0
	for _, l := range letters {
		err := st.Add(ctx, l.Number, l.Status)
		if errors.Is(err, store.ErrExists) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("letter %s: %w", l.Number, err)
		}
		added++
	}
	return added, nil
}
