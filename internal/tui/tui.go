// Package tui renders a synced letter page in the terminal.
//
// The model redraws whenever the page publishes an element change, shows
// each change notification as a toast that dismisses itself after
// [ToastDuration], and quits on q or ctrl+c.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jpalmerr/lettersync"
	"github.com/jpalmerr/lettersync/page"
)

// ToastDuration is how long a notification stays on screen.
const ToastDuration = 5 * time.Second

// tickInterval is how often expired toasts are swept.
const tickInterval = 250 * time.Millisecond

// notificationBuffer is the buffer of the channel behind [Notifier].
const notificationBuffer = 64

type (
	elementMsg      page.Element
	notificationMsg lettersync.Notification
	tickMsg         time.Time
	// updatesClosedMsg is sent once the page subscription is closed.
	updatesClosedMsg struct{}
)

type toast struct {
	message string
	expires time.Time
}

type keyMap struct {
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Quit}} }

var defaultKeys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Model is the Bubble Tea model of the terminal page.
type Model struct {
	page    *page.MemoryPage
	updates <-chan page.Element
	notes   <-chan lettersync.Notification
	title   string
	toasts  []toast
	keys    keyMap
	help    help.Model
	now     func() time.Time
	synced  int
}

// NewModel creates a model that draws p, redraws on every message from
// updates and shows notes as toasts. Either channel may be nil.
func NewModel(p *page.MemoryPage, updates <-chan page.Element, notes <-chan lettersync.Notification, title string) Model {
	return Model{
		page:    p,
		updates: updates,
		notes:   notes,
		title:   title,
		keys:    defaultKeys,
		help:    help.New(),
		now:     time.Now,
	}
}

// Notifier returns a [lettersync.Notifier] feeding the returned channel. A
// full channel drops the notification rather than block the sync cycle.
func Notifier() (lettersync.Notifier, <-chan lettersync.Notification) {
	ch := make(chan lettersync.Notification, notificationBuffer)
	n := lettersync.NotifierFunc(func(n lettersync.Notification) {
		select {
		case ch <- n:
		default:
		}
	})
	return n, ch
}

// Run shows p until the user quits or ctx is cancelled.
func Run(ctx context.Context, p *page.MemoryPage, notes <-chan lettersync.Notification, title string) error {
	updates := p.Subscribe()
	defer p.Unsubscribe(updates)

	prog := tea.NewProgram(NewModel(p, updates, notes, title), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := prog.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal page: %w", err)
	}
	return nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForElement(m.updates), waitForNotification(m.notes), tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case elementMsg:
		m.synced++
		return m, waitForElement(m.updates)

	case updatesClosedMsg:
		m.updates = nil

	case notificationMsg:
		m.toasts = append(m.toasts, toast{
			message: msg.Message,
			expires: m.now().Add(ToastDuration),
		})
		return m, waitForNotification(m.notes)

	case tickMsg:
		m.toasts = liveToasts(m.toasts, m.now())
		return m, tick()
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	title := m.title
	if title == "" {
		title = "Letter status"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("  ")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%s · %d updates", m.page.Path(), m.synced)))
	b.WriteString("\n\n")

	elements := m.page.Elements()
	if len(elements) == 0 {
		b.WriteString(mutedStyle.Render("No letters on this page."))
		b.WriteString("\n")
	} else {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-16s", "Letter number")))
		b.WriteString("  ")
		b.WriteString(headerStyle.Render("Status"))
		b.WriteString("\n")
		for _, el := range elements {
			b.WriteString(row(el))
			b.WriteString("\n")
		}
	}

	for _, t := range m.toasts {
		b.WriteString("\n")
		b.WriteString(toastStyle.Render(t.message))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// Toasts returns the messages currently on screen, oldest first.
func (m Model) Toasts() []string {
	out := make([]string, len(m.toasts))
	for i, t := range m.toasts {
		out[i] = t.message
	}
	return out
}

func row(el page.Element) string {
	number := fmt.Sprintf("%-16s", el.LetterNumber)
	if el.Highlighted {
		number = highlightStyle.Render(number)
	}

	status := el.Status
	if el.HasBadge {
		status = badge(el.Status, el.BadgeColor, el.BadgeIcon)
	}
	return number + "  " + status
}

// liveToasts drops the toasts that expired at or before now.
func liveToasts(toasts []toast, now time.Time) []toast {
	live := make([]toast, 0, len(toasts))
	for _, t := range toasts {
		if now.Before(t.expires) {
			live = append(live, t)
		}
	}
	return live
}

func waitForElement(ch <-chan page.Element) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		el, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return elementMsg(el)
	}
}

func waitForNotification(ch <-chan lettersync.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
