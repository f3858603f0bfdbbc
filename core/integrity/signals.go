package integrity

import "sync"

// Kind names a browser signal.
type Kind string

const (
	KindVisibility Kind = "visibility"
	KindResize     Kind = "resize"
	KindFullscreen Kind = "fullscreen"
	KindContainer  Kind = "container"
	KindKey        Kind = "key"

	// KindMonitor is only used to label violations raised by the remote monitor poll.
	KindMonitor Kind = "monitor"
)

// Signal is one event reported by the exam page.
// It carries no timestamp: the tracker clock times every signal on arrival.
type Signal struct {
	Kind   Kind     `json:"kind" validate:"required,oneof=visibility resize fullscreen container key"`
	Hidden bool     `json:"hidden,omitempty"` // visibility
	Active bool     `json:"active,omitempty"` // fullscreen
	Size   Size     `json:"size"`             // resize: viewport, container: bounding box
	Key    KeyEvent `json:"key"`
}

type HandlerFunc func(Signal)

// Source lets the tracker subscribe to browser signals without knowing where they come from.
type Source interface {
	Subscribe(kind Kind, fn HandlerFunc) (id int)
	Unsubscribe(kind Kind, id int)
}

type handlerEntry struct {
	id int
	fn HandlerFunc
}

// Bus is an in-process Source. Signals are dispatched synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[Kind][]handlerEntry
}

var _ Source = (*Bus)(nil)

func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]handlerEntry)}
}

func (b *Bus) Subscribe(kind Kind, fn HandlerFunc) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], handlerEntry{id: b.nextID, fn: fn})
	return b.nextID
}

func (b *Bus) Unsubscribe(kind Kind, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.handlers[kind]
	for i, e := range entries {
		if e.id == id {
			b.handlers[kind] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(b.handlers[kind]) == 0 {
		delete(b.handlers, kind)
	}
}

// Publish dispatches sig to the handlers of its kind and returns how many were called.
// Handlers run outside the bus lock so they may subscribe or unsubscribe.
func (b *Bus) Publish(sig Signal) int {
	b.mu.RLock()
	entries := make([]handlerEntry, len(b.handlers[sig.Kind]))
	copy(entries, b.handlers[sig.Kind])
	b.mu.RUnlock()

	for _, e := range entries {
		e.fn(sig)
	}
	return len(entries)
}

// Subscriptions returns the number of live subscriptions, all kinds included.
func (b *Bus) Subscriptions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var n int
	for _, entries := range b.handlers {
		n += len(entries)
	}
	return n
}
