package events

import (
	"sync"
	"time"
)

// AllTopics subscribes to every topic.
const AllTopics = "*"

// Well-known topics.
const (
	// TopicSceneCommands carries command batch lifecycle events.
	TopicSceneCommands = "scene.commands"
	// TopicScheduleChanged carries schedule create/update/delete events.
	TopicScheduleChanged = "schedule.changed"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// Logger defines the logging interface used by the events package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Message is a single published event.
type Message struct {
	Topic     string    `json:"topic"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type subscriber struct {
	topic string
	ch    chan Message
}

// Bus is a topic-based publish/subscribe hub.
//
// Thread Safety: all methods are safe for concurrent use.
type Bus struct {
	mu         sync.RWMutex
	subs       map[*subscriber]struct{}
	bufferSize int
	closed     bool
	logger     Logger
}

// NewBus creates an event bus. logger may be nil.
func NewBus(logger Logger) *Bus {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bus{
		subs:       make(map[*subscriber]struct{}),
		bufferSize: DefaultBufferSize,
		logger:     logger,
	}
}

// Publish delivers an event to every subscriber of topic.
// Subscribers with a full buffer miss the event.
func (b *Bus) Publish(topic, eventType string, payload any) {
	msg := Message{
		Topic:     topic,
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for s := range b.subs {
		if s.topic != AllTopics && s.topic != topic {
			continue
		}
		select {
		case s.ch <- msg:
		default:
			b.logger.Debug("event dropped for slow subscriber", "topic", topic, "type", eventType)
		}
	}
}

// Subscribe registers for events on topic (or AllTopics). The returned
// cancel function unsubscribes and closes the channel; it is safe to call
// more than once.
func (b *Bus) Subscribe(topic string) (<-chan Message, func()) {
	s := &subscriber{topic: topic, ch: make(chan Message, b.bufferSize)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() { b.remove(s) })
	}
}

func (b *Bus) remove(s *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}
