package command

import (
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultAckTimeout applies when neither the caller nor the config sets one.
const DefaultAckTimeout = 30 * time.Second

// recentLimit bounds how many finished batches Snapshot can still report.
const recentLimit = 256

// Logger defines the logging interface used by the command package.
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

// Publisher delivers lifecycle events. Delivery is at-most-once.
type Publisher interface {
	Publish(topic, eventType string, payload any)
}

// OutcomeRecorder persists terminal batch outcomes for later analysis.
type OutcomeRecorder interface {
	RecordCommandOutcome(correlationID, state, source string, expected, confirmed int, latency time.Duration)
}

// Metrics receives tracker instrumentation.
type Metrics interface {
	SetPendingBatches(n int)
	ObserveOutcome(state string, latency time.Duration)
	IncStaleAcks()
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	// DefaultTimeout is used when Dispatch is called with timeout <= 0.
	DefaultTimeout time.Duration
}

type batch struct {
	mu        sync.Mutex
	id        string
	source    string
	expected  map[string]struct{}
	confirmed map[string]time.Time
	createdAt time.Time
	deadline  time.Time
	state     State
	timer     *time.Timer
	dropped   bool
}

// Tracker correlates dispatched commands with device acknowledgements.
//
// Each dispatch opens a batch keyed by a fresh correlation ID. The batch
// is CONFIRMED when every expected device has acked, or TIMED_OUT when its
// deadline passes first. Exactly one terminal event is published per batch,
// after which the batch is evicted from the active set.
//
// Lock order is batch.mu before Tracker.mu.
//
// Thread Safety: all methods are safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	batches map[string]*batch
	recent  map[string]BatchSnapshot
	order   []string
	closed  bool

	defaultTimeout time.Duration
	publisher      Publisher
	recorder       OutcomeRecorder
	metrics        Metrics
	logger         Logger
	now            func() time.Time
	newID          func() string
}

// NewTracker creates a correlation tracker. publisher may be nil.
func NewTracker(cfg TrackerConfig, publisher Publisher) *Tracker {
	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultAckTimeout
	}
	return &Tracker{
		batches:        make(map[string]*batch),
		recent:         make(map[string]BatchSnapshot),
		defaultTimeout: timeout,
		publisher:      publisher,
		logger:         noopLogger{},
		now:            func() time.Time { return time.Now().UTC() },
		newID:          func() string { return ulid.Make().String() },
	}
}

// SetLogger sets the logger for the tracker.
func (t *Tracker) SetLogger(logger Logger) {
	if logger != nil {
		t.logger = logger
	}
}

// SetRecorder installs an outcome recorder.
func (t *Tracker) SetRecorder(recorder OutcomeRecorder) {
	t.recorder = recorder
}

// SetMetrics installs a metrics sink.
func (t *Tracker) SetMetrics(metrics Metrics) {
	t.metrics = metrics
}

// Dispatch opens a batch for deviceIDs. See DispatchWithSource.
func (t *Tracker) Dispatch(deviceIDs []string, timeout time.Duration) (string, error) {
	return t.DispatchWithSource("", deviceIDs, timeout)
}

// DispatchWithSource opens a PENDING batch expecting an ack from every
// device in deviceIDs, publishes SCENE_PENDING and arms the deadline.
//
// Parameters:
//   - source: originator tag carried on every event (e.g. "scene:evening")
//   - deviceIDs: expected devices; duplicates and blanks are ignored
//   - timeout: ack deadline; <= 0 uses the tracker default
//
// Returns:
//   - string: the new correlation ID
//   - error: ErrEmptyTarget if no devices remain, ErrTrackerClosed after Close
func (t *Tracker) DispatchWithSource(source string, deviceIDs []string, timeout time.Duration) (string, error) {
	expected := make(map[string]struct{}, len(deviceIDs))
	for _, id := range deviceIDs {
		if id != "" {
			expected[id] = struct{}{}
		}
	}
	if len(expected) == 0 {
		return "", ErrEmptyTarget
	}
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}

	now := t.now()
	b := &batch{
		id:        t.newID(),
		source:    source,
		expected:  expected,
		confirmed: make(map[string]time.Time, len(expected)),
		createdAt: now,
		deadline:  now.Add(timeout),
		state:     StatePending,
	}

	// Holding b.mu until the timer is armed keeps acks from racing ahead
	// of SCENE_PENDING.
	b.mu.Lock()
	defer b.mu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return "", ErrTrackerClosed
	}
	t.batches[b.id] = b
	pending := len(t.batches)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.SetPendingBatches(pending)
	}

	t.emit(EventPending, b, nil)
	b.timer = time.AfterFunc(timeout, func() { t.expire(b) })

	t.logger.Debug("command batch opened",
		"correlation_id", b.id,
		"source", source,
		"devices", len(expected),
		"timeout", timeout,
	)
	return b.id, nil
}

// Acknowledge records an ack from deviceID for correlationID.
//
// Acks for unknown, finished or evicted batches are stale and ignored.
// Acks from devices outside the batch and repeated acks are ignored.
// It reports whether the ack advanced the batch.
func (t *Tracker) Acknowledge(correlationID, deviceID string) bool {
	t.mu.Lock()
	b, ok := t.batches[correlationID]
	t.mu.Unlock()

	if !ok {
		t.stale(correlationID, deviceID)
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StatePending || b.dropped {
		t.stale(correlationID, deviceID)
		return false
	}
	if _, want := b.expected[deviceID]; !want {
		t.logger.Warn("ack from device outside batch",
			"correlation_id", correlationID,
			"device_id", deviceID,
		)
		return false
	}
	if _, dup := b.confirmed[deviceID]; dup {
		t.logger.Debug("duplicate ack ignored",
			"correlation_id", correlationID,
			"device_id", deviceID,
		)
		return false
	}

	now := t.now()
	b.confirmed[deviceID] = now
	if len(b.confirmed) < len(b.expected) {
		return true
	}

	b.state = StateConfirmed
	if b.timer != nil {
		b.timer.Stop()
	}
	latency := now.Sub(b.createdAt)
	t.finish(b, now)
	t.record(b, latency)
	t.emit(EventConfirmed, b, &latency)

	t.logger.Info("command batch confirmed",
		"correlation_id", b.id,
		"source", b.source,
		"devices", len(b.expected),
		"latency_ms", latency.Milliseconds(),
	)
	return true
}

// expire is the deadline callback.
func (t *Tracker) expire(b *batch) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StatePending || b.dropped {
		return
	}

	now := t.now()
	b.state = StateTimedOut
	t.finish(b, now)
	t.record(b, now.Sub(b.createdAt))
	t.emit(EventTimeout, b, nil)

	t.logger.Warn("command batch timed out",
		"correlation_id", b.id,
		"source", b.source,
		"expected", len(b.expected),
		"confirmed", len(b.confirmed),
	)
}

// finish evicts b from the active set and remembers its final snapshot.
// Caller holds b.mu.
func (t *Tracker) finish(b *batch, at time.Time) {
	snap := b.snapshot()
	snap.CompletedAt = &at

	t.mu.Lock()
	delete(t.batches, b.id)
	pending := len(t.batches)
	t.recent[b.id] = snap
	t.order = append(t.order, b.id)
	if len(t.order) > recentLimit {
		delete(t.recent, t.order[0])
		t.order = t.order[1:]
	}
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.SetPendingBatches(pending)
	}
}

// emit publishes a lifecycle event. Caller holds b.mu.
func (t *Tracker) emit(eventType EventType, b *batch, latency *time.Duration) {
	if t.publisher == nil {
		return
	}
	ev := Event{
		Type:               eventType,
		CorrelationID:      b.id,
		Source:             b.source,
		DevicesExpected:    len(b.expected),
		DevicesConfirmed:   len(b.confirmed),
		ConfirmedDeviceIDs: sortedKeys(b.confirmed),
		Timestamp:          t.now(),
	}
	if latency != nil {
		ms := latency.Milliseconds()
		ev.LatencyMS = &ms
	}
	t.publisher.Publish(EventTopic, string(eventType), ev)
}

func (t *Tracker) record(b *batch, latency time.Duration) {
	if t.metrics != nil {
		t.metrics.ObserveOutcome(string(b.state), latency)
	}
	if t.recorder != nil {
		t.recorder.RecordCommandOutcome(b.id, string(b.state), b.source, len(b.expected), len(b.confirmed), latency)
	}
}

func (t *Tracker) stale(correlationID, deviceID string) {
	if t.metrics != nil {
		t.metrics.IncStaleAcks()
	}
	t.logger.Debug("ignoring ack",
		"error", ErrStaleAck,
		"correlation_id", correlationID,
		"device_id", deviceID,
	)
}

// Pending returns the number of active batches.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.batches)
}

// Snapshot returns the current view of a batch. Recently finished batches
// are still reported in their terminal state.
func (t *Tracker) Snapshot(correlationID string) (BatchSnapshot, bool) {
	t.mu.Lock()
	b, active := t.batches[correlationID]
	done, finished := t.recent[correlationID]
	t.mu.Unlock()

	if finished {
		return done, true
	}
	if !active {
		return BatchSnapshot{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot(), true
}

// Close stops every deadline timer and drops active batches without
// publishing events. Later dispatches fail with ErrTrackerClosed.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	active := make([]*batch, 0, len(t.batches))
	for _, b := range t.batches {
		active = append(active, b)
	}
	t.batches = make(map[string]*batch)
	t.mu.Unlock()

	for _, b := range active {
		b.mu.Lock()
		b.dropped = true
		if b.timer != nil {
			b.timer.Stop()
		}
		b.mu.Unlock()
	}

	if t.metrics != nil {
		t.metrics.SetPendingBatches(0)
	}
	if len(active) > 0 {
		t.logger.Info("command tracker closed", "dropped_batches", len(active))
	}
}

// snapshot copies the batch. Caller holds b.mu.
func (b *batch) snapshot() BatchSnapshot {
	return BatchSnapshot{
		CorrelationID: b.id,
		Source:        b.source,
		State:         b.state,
		Expected:      sortedKeys(b.expected),
		Confirmed:     sortedKeys(b.confirmed),
		CreatedAt:     b.createdAt,
		DeadlineAt:    b.deadline,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
