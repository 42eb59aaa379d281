package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-lighting/internal/events"
)

// Logger defines the logging interface used by the audit package.
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

// writeTimeout bounds a single journal insert.
const writeTimeout = 5 * time.Second

// Journal persists every bus event as an Entry.
//
// Writes are best-effort: a failed insert is logged and the event dropped.
type Journal struct {
	bus    *events.Bus
	repo   Repository
	logger Logger
}

// NewJournal creates a journal recording bus events into repo.
func NewJournal(bus *events.Bus, repo Repository, logger Logger) *Journal {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Journal{bus: bus, repo: repo, logger: logger}
}

// Run records events until ctx is cancelled or the bus closes.
func (j *Journal) Run(ctx context.Context) error {
	msgs, cancel := j.bus.Subscribe(events.AllTopics)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			j.Record(ctx, msg)
		}
	}
}

// Record persists one event.
func (j *Journal) Record(ctx context.Context, msg events.Message) {
	entry := EntryFromMessage(msg)

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := j.repo.Create(wctx, &entry); err != nil {
		j.logger.Warn("activity not recorded",
			"topic", msg.Topic,
			"type", msg.Type,
			"error", err,
		)
	}
}

// EntryFromMessage maps an event onto a journal entry. The entity is the
// schedule, scene or command batch the payload names, in that order.
func EntryFromMessage(msg events.Message) Entry {
	details := payloadMap(msg.Payload)

	e := Entry{
		Topic:      msg.Topic,
		EventType:  msg.Type,
		EntityType: EntityOther,
		Source:     msg.Topic,
		Details:    details,
		CreatedAt:  msg.Timestamp,
	}

	switch {
	case stringField(details, "schedule_id") != "":
		e.EntityType, e.EntityID = EntitySchedule, stringField(details, "schedule_id")
	case stringField(details, "scene_id") != "":
		e.EntityType, e.EntityID = EntityScene, stringField(details, "scene_id")
	case stringField(details, "correlation_id") != "":
		e.EntityType, e.EntityID = EntityBatch, stringField(details, "correlation_id")
	}

	for _, key := range []string{"trigger_source", "source"} {
		if s := stringField(details, key); s != "" {
			e.Source = s
			break
		}
	}
	return e
}

// payloadMap flattens any JSON-encodable payload into a map.
func payloadMap(payload any) map[string]any {
	if payload == nil {
		return nil
	}
	if m, ok := payload.(map[string]any); ok {
		return m
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	var m map[string]any
	if json.Unmarshal(b, &m) != nil {
		return map[string]any{"value": string(b)}
	}
	return m
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
