package main

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jpalmerr/lettersync/internal/store"
)

// mockState tracks status and next change time for a single letter.
type mockState struct {
	statusIdx    int
	nextChangeAt time.Time
}

// runStatusChanger moves every letter through Pending → Verified → Rejected,
// changing each one every 5-15 seconds, until ctx is cancelled.
func runStatusChanger(ctx context.Context, st store.Store, numbers []string) {
	statuses := []string{"Pending", "Verified", "Rejected"}
	states := make(map[string]*mockState, len(numbers))
	for _, n := range numbers {
		states[n] = &mockState{nextChangeAt: time.Now().Add(nextChange())}
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, n := range numbers {
				state := states[n]
				if now.Before(state.nextChangeAt) {
					continue
				}

				oldStatus := statuses[state.statusIdx]
				state.statusIdx = (state.statusIdx + 1) % len(statuses)
				state.nextChangeAt = now.Add(nextChange())

				if _, err := st.Set(ctx, n, statuses[state.statusIdx]); err != nil {
					slog.Error("failed to change status", "letter_number", n, "error", err)
					continue
				}
				slog.Info("server status change", "letter_number", n, "from", oldStatus, "to", statuses[state.statusIdx])
			}
		}
	}
}

func nextChange() time.Duration {
	return time.Duration(5+rand.Intn(11)) * time.Second
}
