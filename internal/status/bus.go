// internal/status/bus.go
package status

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type classifies a status message.
type Type string

const (
	TypeRecordingStarted  Type = "recording_started"
	TypeRecordingStopped  Type = "recording_stopped"
	TypeRunStarted        Type = "run_started"
	TypeCountdown         Type = "countdown"
	TypeRowStarted        Type = "row_started"
	TypeRowCompleted      Type = "row_completed"
	TypeRowSkipped        Type = "row_skipped"
	TypeMappingDiscovered Type = "mapping_discovered"
	TypeFieldRetry        Type = "field_retry"
	TypeWarning           Type = "warning"
	TypePaused            Type = "paused"
	TypeResumed           Type = "resumed"
	TypeCompleted         Type = "completed"
	TypeStopped           Type = "stopped"
	TypeError             Type = "error"
)

// Terminal reports whether t ends a run.
func (t Type) Terminal() bool {
	return t == TypeCompleted || t == TypeStopped || t == TypeError
}

// Message is the envelope delivered to subscribers.
type Message struct {
	ID        string
	Timestamp time.Time
	Type      Type
	RunID     string
	// Row is the 0-based data row the message concerns, or -1.
	Row  int
	Text string
	Err  string
}

// Bus fans status messages out to subscribers. Publish never blocks: when a
// subscriber's buffer is full the message is dropped for that subscriber and
// counted.
type Bus struct {
	logger     *zap.Logger
	bufferSize int

	mu          sync.RWMutex
	subscribers map[chan Message]map[Type]bool
	closed      bool

	dropped      atomic.Uint64
	shutdownOnce sync.Once
}

// NewBus creates a bus whose subscriber channels hold bufferSize messages.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Bus{
		logger:      logger.Named("status_bus"),
		bufferSize:  bufferSize,
		subscribers: make(map[chan Message]map[Type]bool),
	}
}

// Publish stamps msg with an ID and time and offers it to every interested
// subscriber without waiting.
func (b *Bus) Publish(msg Message) {
	msg.ID = uuid.NewString()
	msg.Timestamp = time.Now().UTC()

	// Sends happen under the read lock; they cannot block, and holding it keeps
	// unsubscribe and shutdown from closing a channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for ch, types := range b.subscribers {
		if types != nil && !types[msg.Type] {
			continue
		}
		select {
		case ch <- msg:
		default:
			n := b.dropped.Add(1)
			b.logger.Debug("Subscriber buffer full; message dropped",
				zap.String("type", string(msg.Type)), zap.Uint64("dropped_total", n))
		}
	}
}

// Subscribe returns a channel receiving the given message types, or every
// type when none are given. The unsubscribe func closes the channel.
func (b *Bus) Subscribe(types ...Type) (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Message, b.bufferSize)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	var filter map[Type]bool
	if len(types) > 0 {
		filter = make(map[Type]bool, len(types))
		for _, t := range types {
			filter[t] = true
		}
	}
	b.subscribers[ch] = filter

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[ch]; ok {
				delete(b.subscribers, ch)
				close(ch)
			}
		})
	}
	return ch, unsubscribe
}

// Dropped is the number of deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Shutdown closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Shutdown() {
	b.shutdownOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.closed = true
		for ch := range b.subscribers {
			close(ch)
		}
		b.subscribers = make(map[chan Message]map[Type]bool)
		b.logger.Debug("Status bus shut down", zap.Uint64("dropped_total", b.dropped.Load()))
	})
}
