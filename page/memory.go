package page

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownElement is returned when an operation names a letter that is not
// rendered on the page.
var ErrUnknownElement = errors.New("no tracked element for letter")

// subscriberBuffer is the channel buffer size for each subscriber.
const subscriberBuffer = 100

// Element is one tracked item on the page.
//
// Element is a value type; [MemoryPage] hands out copies so callers can never
// mutate page state behind its lock.
type Element struct {
	// LetterNumber is the external key (data-letter-number).
	LetterNumber string `json:"letter_number"`

	// Status is the currently recorded status (data-letter-status).
	Status string `json:"status"`

	// HasBadge reports whether the row renders a status badge. Rows without a
	// badge still record status changes but have no presentation to update.
	HasBadge bool `json:"has_badge"`

	// BadgeColor is the badge colour class suffix (e.g. "success").
	BadgeColor string `json:"badge_color,omitempty"`

	// BadgeIcon is the badge icon name (e.g. "check-circle").
	BadgeIcon string `json:"badge_icon,omitempty"`

	// Highlighted reports whether the transient change highlight is applied.
	Highlighted bool `json:"highlighted"`
}

// MemoryPage is an in-memory, thread-safe page of tracked elements.
//
// Elements keep the order in which they were added, which is the order
// [MemoryPage.TrackedKeys] reports them in. Every mutation is published to
// subscribers through buffered channels; sends are non-blocking, so a slow
// subscriber misses updates rather than stalling the poller.
type MemoryPage struct {
	mu       sync.RWMutex
	path     string
	csrf     string
	sidebar  bool
	order    []string
	elements map[string]Element

	subMu       sync.RWMutex
	subscribers map[chan Element]struct{}
}

// NewMemoryPage creates an empty page served at path.
//
// The page starts without a sidebar marker or CSRF token; use
// [MemoryPage.SetSidebar] and [MemoryPage.SetCSRFToken] to describe an
// authenticated page.
func NewMemoryPage(path string) *MemoryPage {
	return &MemoryPage{
		path:        path,
		elements:    make(map[string]Element),
		subscribers: make(map[chan Element]struct{}),
	}
}

// Add renders a new tracked element. Keys are unique; adding a letter that is
// already on the page returns an error and leaves the page unchanged.
func (p *MemoryPage) Add(el Element) error {
	if el.LetterNumber == "" {
		return errors.New("letter number is required")
	}

	p.mu.Lock()
	if _, exists := p.elements[el.LetterNumber]; exists {
		p.mu.Unlock()
		return fmt.Errorf("duplicate letter number %q", el.LetterNumber)
	}
	p.elements[el.LetterNumber] = el
	p.order = append(p.order, el.LetterNumber)
	p.mu.Unlock()

	p.notifySubscribers(el)
	return nil
}

// SetCSRFToken sets the anti-forgery token embedded in the page.
func (p *MemoryPage) SetCSRFToken(token string) {
	p.mu.Lock()
	p.csrf = token
	p.mu.Unlock()
}

// SetSidebar sets whether the page carries the authenticated-layout sidebar.
func (p *MemoryPage) SetSidebar(present bool) {
	p.mu.Lock()
	p.sidebar = present
	p.mu.Unlock()
}

// Path returns the path the page was served at.
func (p *MemoryPage) Path() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.path
}

// HasSidebar reports whether the sidebar marker is present.
func (p *MemoryPage) HasSidebar() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sidebar
}

// CSRFToken returns the embedded anti-forgery token. The second result is
// false when the page has no csrf-token meta tag.
func (p *MemoryPage) CSRFToken() (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.csrf, p.csrf != ""
}

// TrackedKeys returns the letter numbers of all tracked elements in page order.
func (p *MemoryPage) TrackedKeys() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	keys := make([]string, len(p.order))
	copy(keys, p.order)
	return keys
}

// Element returns a copy of the element for key.
func (p *MemoryPage) Element(key string) (Element, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	el, ok := p.elements[key]
	return el, ok
}

// Elements returns copies of all elements in page order.
func (p *MemoryPage) Elements() []Element {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Element, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, p.elements[key])
	}
	return out
}

// CurrentStatus returns the recorded status of key.
func (p *MemoryPage) CurrentStatus(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	el, ok := p.elements[key]
	return el.Status, ok
}

// ApplyStatus records a new status for key and, when the row has a badge,
// rewrites the badge colour and icon.
func (p *MemoryPage) ApplyStatus(key, status, color, icon string) error {
	p.mu.Lock()
	el, ok := p.elements[key]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w %q", ErrUnknownElement, key)
	}
	el.Status = status
	if el.HasBadge {
		el.BadgeColor = color
		el.BadgeIcon = icon
	}
	p.elements[key] = el
	p.mu.Unlock()

	p.notifySubscribers(el)
	return nil
}

// SetHighlight adds or removes the transient change highlight on key.
// Setting the flag to its current value is a no-op and publishes nothing.
func (p *MemoryPage) SetHighlight(key string, on bool) error {
	p.mu.Lock()
	el, ok := p.elements[key]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%w %q", ErrUnknownElement, key)
	}
	if el.Highlighted == on {
		p.mu.Unlock()
		return nil
	}
	el.Highlighted = on
	p.elements[key] = el
	p.mu.Unlock()

	p.notifySubscribers(el)
	return nil
}

// Subscribe returns a channel that receives a copy of every element after it
// changes. The channel is buffered; when the buffer is full further changes
// are dropped for that subscriber.
//
// Callers must call [MemoryPage.Unsubscribe] when done.
func (p *MemoryPage) Subscribe() <-chan Element {
	ch := make(chan Element, subscriberBuffer)

	p.subMu.Lock()
	p.subscribers[ch] = struct{}{}
	p.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// more than once or with an unknown channel.
func (p *MemoryPage) Unsubscribe(ch <-chan Element) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	for subCh := range p.subscribers {
		if subCh == ch {
			delete(p.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (p *MemoryPage) notifySubscribers(el Element) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()

	for ch := range p.subscribers {
		select {
		case ch <- el:
		default:
			// slow subscriber, drop
		}
	}
}
