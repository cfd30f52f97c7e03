package lettersync

import (
	"fmt"
	"log/slog"
	"time"
)

// NotificationLevel is the level attached to change notifications.
const NotificationLevel = "info"

// Notifier receives one [Notification] per detected status change.
//
// Notify is called on the sync cycle's goroutine and must not block.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts an ordinary function to the [Notifier] interface.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// logNotifier is the default notifier; it writes each notification to the
// logger at INFO.
type logNotifier struct {
	logger *slog.Logger
}

func (l logNotifier) Notify(n Notification) {
	l.logger.Info(n.Message,
		"letter_number", n.LetterNumber,
		"status", n.Status.String(),
		"level", n.Level,
	)
}

// newNotification builds the notification for a single status change.
func newNotification(letterNumber string, status Status) Notification {
	return Notification{
		LetterNumber: letterNumber,
		Status:       status,
		Message:      fmt.Sprintf("Letter %s status updated: %s", letterNumber, status),
		Level:        NotificationLevel,
		CreatedAt:    time.Now(),
	}
}
