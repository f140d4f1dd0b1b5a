package events

import "sync"

// Type identifies a change signal sent to the presentation layer.
type Type string

const (
	// StoreReplaced: a collection was swapped for a fresh list.
	StoreReplaced Type = "store.replaced"
	// StorePatched: the open project received an optimistic patch.
	StorePatched Type = "store.patched"
	// SaveStateChanged: the autosave save-state moved.
	SaveStateChanged Type = "autosave.state"
	NoticeRaised     Type = "notice.raised"
	NoticeCleared    Type = "notice.cleared"
)

// Change is a re-render signal. Only the fields relevant to Type are set.
type Change struct {
	Type      Type
	Kind      string
	ProjectID string
	State     string
	Message   string
}

// Publisher fans changes out to subscribers.
type Publisher interface {
	Publish(c Change)
	Subscribe() <-chan Change
	Unsubscribe(ch <-chan Change)
	Close()
}

// Bus is an in-memory Publisher. Publish never blocks: a subscriber whose
// buffer is full misses the change.
type Bus struct {
	mu         sync.RWMutex
	subs       []chan Change
	bufferSize int
	closed     bool
}

type BusOption func(*Bus)

func WithBufferSize(size int) BusOption {
	return func(b *Bus) {
		b.bufferSize = size
	}
}

func NewBus(opts ...BusOption) *Bus {
	b := &Bus{bufferSize: 64}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Publish(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (b *Bus) Subscribe() <-chan Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Change, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Unsubscribe(ch <-chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == ch {
			close(sub)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
