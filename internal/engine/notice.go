package engine

import (
	"sync"
	"time"

	"shootboard/internal/events"
)

// DefaultNoticeTTL is how long a notice stays up.
const DefaultNoticeTTL = 5 * time.Second

// Notifier holds the single transient user-visible notice. A newer notice
// replaces the current one and restarts the dismiss timer.
type Notifier struct {
	mu      sync.Mutex
	ttl     time.Duration
	message string
	seq     uint64
	timer   *time.Timer
	bus     events.Publisher
}

func NewNotifier(ttl time.Duration, bus events.Publisher) *Notifier {
	if ttl <= 0 {
		ttl = DefaultNoticeTTL
	}
	return &Notifier{ttl: ttl, bus: bus}
}

// Raise shows message until the TTL elapses or another notice replaces it.
func (n *Notifier) Raise(message string) {
	if message == "" {
		return
	}
	n.mu.Lock()
	n.seq++
	seq := n.seq
	n.message = message
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.ttl, func() { n.expire(seq) })
	n.mu.Unlock()

	if n.bus != nil {
		n.bus.Publish(events.Change{Type: events.NoticeRaised, Message: message})
	}
}

func (n *Notifier) expire(seq uint64) {
	n.mu.Lock()
	if n.seq != seq {
		n.mu.Unlock()
		return
	}
	n.message = ""
	n.timer = nil
	n.mu.Unlock()

	if n.bus != nil {
		n.bus.Publish(events.Change{Type: events.NoticeCleared})
	}
}

// Current returns the visible notice, if any.
func (n *Notifier) Current() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.message, n.message != ""
}

// Dismiss clears the notice immediately.
func (n *Notifier) Dismiss() {
	n.mu.Lock()
	n.seq++
	had := n.message != ""
	n.message = ""
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	n.mu.Unlock()
	if had && n.bus != nil {
		n.bus.Publish(events.Change{Type: events.NoticeCleared})
	}
}
