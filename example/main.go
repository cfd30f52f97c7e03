package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/lettersync"
	"github.com/jpalmerr/lettersync/internal/csrf"
	"github.com/jpalmerr/lettersync/internal/server"
	"github.com/jpalmerr/lettersync/internal/store"
)

const port = 8080

func main() {
	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// server side: five letters whose status moves on its own (see mock_server.go)
	numbers := []string{"L-100", "L-101", "L-102", "L-103", "L-104"}
	st := store.NewMemoryStore()
	for _, n := range numbers {
		if err := st.Add(ctx, n, "Pending"); err != nil {
			slog.Error("failed to seed letter", "letter_number", n, "error", err)
			os.Exit(1)
		}
	}
	go runStatusChanger(ctx, st, numbers)

	srv, err := server.NewServer(st, csrf.New(csrf.DefaultTTL), port, "Letters demo", slog.Default())
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}
	if err := srv.Start(ctx); err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	// client side: load the page and keep it in sync every 2s
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	p, err := lettersync.LoadPage(ctx, baseURL+"/letter_status", 5*time.Second)
	if err != nil {
		slog.Error("failed to load page", "error", err)
		os.Exit(1)
	}

	s, err := lettersync.New(p,
		lettersync.WithBaseURL(baseURL),
		lettersync.WithInterval(2*time.Second),
		lettersync.WithNotifier(lettersync.NotifierFunc(func(n lettersync.Notification) {
			fmt.Printf("  🔔 %s\n", n.Message)
		})),
	)
	if err != nil {
		slog.Error("failed to create syncer", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   lettersync Demo                                     ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Server page: http://localhost:8080/letter_status    ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   • 5 letters, each changing status every 5-15s       ║")
	fmt.Println("  ║   • the client syncs its copy of the page every 2s    ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	if err := s.Start(ctx); err != nil {
		slog.Error("sync error", "error", err)
		os.Exit(1)
	}
}
