package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// StateChanged fires on every connection-state transition.
	StateChanged EventType = "state_changed"
	// NoticeRaised carries a transient user-facing message.
	NoticeRaised EventType = "notice_raised"
	// QrCodeIssued fires when a login QR code is ready to show.
	QrCodeIssued EventType = "qrcode_issued"
	// QrCodeDismissed fires when the QR presentation is closed.
	QrCodeDismissed EventType = "qrcode_dismissed"
	// BusyChanged fires when a status check starts or finishes.
	BusyChanged EventType = "busy_changed"
)

// Buffer sizes for subscriber channels.
const (
	ChannelBufferSize    = 32
	ChannelBufferSizeAll = 128
)

// Event represents a single event in the system
type Event struct {
	Type      EventType `json:"type"`
	OldState  string    `json:"old_state,omitempty"`
	NewState  string    `json:"new_state,omitempty"`
	Notice    string    `json:"notice,omitempty"`
	Busy      bool      `json:"busy,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Bus is a thread-safe event bus for pub/sub messaging
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	all         []chan Event
	closed      bool
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
	}
}

// Subscribe returns a channel receiving events of eventType. The channel is
// buffered; a slow reader loses events rather than blocking publishers.
func (b *Bus) Subscribe(eventType EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, ChannelBufferSize)
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	return ch
}

// SubscribeAll returns a channel receiving every event, including types that
// have no dedicated subscriber yet.
func (b *Bus) SubscribeAll() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, ChannelBufferSizeAll)
	b.all = append(b.all, ch)
	return ch
}

// Unsubscribe removes and closes a subscription channel
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for i, sub := range b.all {
		if sub == ch {
			b.all = append(b.all[:i], b.all[i+1:]...)
			close(sub)
			return
		}
	}

	for eventType, subs := range b.subscribers {
		for i, sub := range subs {
			if sub != ch {
				continue
			}
			subs[i] = subs[len(subs)-1]
			subs = subs[:len(subs)-1]
			if len(subs) == 0 {
				delete(b.subscribers, eventType)
			} else {
				b.subscribers[eventType] = subs
			}
			close(sub)
			return
		}
	}
}

// Publish delivers event to its subscribers without blocking; full channels drop it.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, ch := range b.subscribers[event.Type] {
		select {
		case ch <- event:
		default:
		}
	}
	for _, ch := range b.all {
		select {
		case ch <- event:
		default:
		}
	}
}

// Close closes the event bus and all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, subs := range b.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	for _, ch := range b.all {
		close(ch)
	}
	b.subscribers = make(map[EventType][]chan Event)
	b.all = nil
}
