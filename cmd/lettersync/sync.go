package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/lettersync"
	"github.com/jpalmerr/lettersync/config"
	"github.com/jpalmerr/lettersync/internal/tui"
)

// syncCmd keeps the configured page in sync with the server.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Keep a letter-status page in sync",
	Long: `Load the configured page and keep its letter statuses in sync with the
server.

Every poll_interval the letter numbers on the page are sent to the server's
status endpoint. Each changed letter gets its badge updated, its row
highlighted for highlight_duration and one notification. Notifications are
logged, or shown as toasts with --tui.

The sync runs until interrupted (Ctrl+C), SIGTERM, or q in the terminal page.

Example:
  lettersync sync -c config.yaml
  lettersync sync -c config.yaml --tui
  lettersync sync -c config.yaml --once`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	syncCmd.Flags().Bool("tui", false, "show the page in the terminal")
	syncCmd.Flags().Bool("once", false, "run a single sync cycle and exit")
	syncCmd.Flags().BoolP("verbose", "v", false, "enable debug logging")
	_ = syncCmd.MarkFlagRequired("config")
}

func runSync(cmd *cobra.Command, args []string) error {
	useTUI, _ := cmd.Flags().GetBool("tui")
	once, _ := cmd.Flags().GetBool("once")
	verbose, _ := cmd.Flags().GetBool("verbose")

	logger := newLogger(verbose)
	if useTUI && !once {
		// the alternate screen owns the terminal
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := lettersync.LoadPage(ctx, cfg.PageURL(), cfg.RequestTimeout.Duration())
	if err != nil {
		return err
	}
	logger.Info("page loaded",
		"url", cfg.PageURL(),
		"letters", len(p.TrackedKeys()),
	)

	var extra []lettersync.Option
	var notes <-chan lettersync.Notification
	if useTUI && !once {
		var notifier lettersync.Notifier
		notifier, notes = tui.Notifier()
		extra = append(extra, lettersync.WithNotifier(notifier))
	}

	s, err := lettersync.New(p, config.BuildSyncOptions(cfg, logger, extra...)...)
	if err != nil {
		return fmt.Errorf("failed to create syncer: %w", err)
	}
	defer s.Stop()

	if once {
		return runOnce(ctx, cmd.OutOrStdout(), s)
	}

	if !s.Eligible() {
		return fmt.Errorf("%s: %w", cfg.PageURL(), lettersync.ErrNotEligible)
	}

	logger.Info("starting sync",
		"status_url", s.StatusURL(),
		"poll_interval", s.Interval().String(),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start(ctx)
	}()

	if useTUI {
		if err := tui.Run(ctx, p, notes, cfg.Title); err != nil {
			return err
		}
		s.Stop()
		return <-errChan
	}

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		// signal received, wait for in-flight cycles with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return err
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}

// runOnce runs a single cycle and prints its summary to w.
func runOnce(ctx context.Context, w io.Writer, s *lettersync.Syncer) error {
	if !s.Eligible() {
		return lettersync.ErrNotEligible
	}

	result, err := s.SyncOnce(ctx)
	printCycle(w, result)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printCycle(w io.Writer, r lettersync.CycleResult) {
	if r.Skipped {
		fmt.Fprintln(w, "No letters on the page, nothing to sync.")
		return
	}
	fmt.Fprintf(w, "Cycle %s\n", r.CycleID)
	fmt.Fprintf(w, "  Tracked:  %d\n", r.Tracked)
	fmt.Fprintf(w, "  Returned: %d\n", r.Returned)
	fmt.Fprintf(w, "  Changed:  %d\n", len(r.Changed))
	for _, n := range r.Changed {
		fmt.Fprintf(w, "    %s\n", n)
	}
	if r.Err != nil {
		fmt.Fprintf(w, "  Error:    %v\n", r.Err)
	}
}
