package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
)

// Event topic and types published for schedule lifecycle changes.
const (
	EventTopic     = "schedule.changed"
	EventTriggered = "SCHEDULE_TRIGGERED"
	EventSaved     = "SCHEDULE_SAVED"
	EventDeleted   = "SCHEDULE_DELETED"
)

// Logger defines the logging interface used by the schedule package.
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

// Dispatcher sends a schedule's actions as one correlated command batch.
type Dispatcher interface {
	DispatchActions(ctx context.Context, source string, actions []command.Action) (command.Dispatch, error)
}

// Publisher delivers schedule events.
type Publisher interface {
	Publish(topic, eventType string, payload any)
}

// RunnerMetrics receives fire counts.
type RunnerMetrics interface {
	IncScheduleFire(ok bool)
}

// Runner fires enabled schedules whose occurrence starts in the current
// minute. Each wall-clock minute is processed at most once, so a late or
// repeated tick never fires a schedule twice.
//
// Thread Safety: Tick and Run are safe for concurrent use.
type Runner struct {
	repo       Repository
	normalizer *Normalizer
	dispatcher Dispatcher
	publisher  Publisher
	metrics    RunnerMetrics
	logger     Logger
	now        func() time.Time

	mu         sync.Mutex
	lastMinute time.Time
}

// NewRunner creates a schedule runner. publisher may be nil.
func NewRunner(repo Repository, normalizer *Normalizer, dispatcher Dispatcher, publisher Publisher, logger Logger) *Runner {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Runner{
		repo:       repo,
		normalizer: normalizer,
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// SetMetrics installs a metrics sink.
func (r *Runner) SetMetrics(m RunnerMetrics) {
	r.metrics = m
}

// Run ticks at every minute boundary until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("schedule runner started")
	defer r.logger.Info("schedule runner stopped")

	r.Tick(ctx, r.now())
	for {
		now := r.now()
		next := now.Truncate(time.Minute).Add(time.Minute)
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			r.Tick(ctx, r.now())
		}
	}
}

// Tick fires every enabled schedule with an occurrence starting in the
// minute containing now. It returns the number of schedules fired.
func (r *Runner) Tick(ctx context.Context, now time.Time) int {
	minute := now.In(r.normalizer.Location()).Truncate(time.Minute)

	r.mu.Lock()
	if !minute.After(r.lastMinute) {
		r.mu.Unlock()
		return 0
	}
	r.lastMinute = minute
	r.mu.Unlock()

	schedules, err := r.repo.LoadEnabled(ctx)
	if err != nil {
		r.logger.Error("loading schedules", "error", err)
		return 0
	}

	fired := 0
	for i := range schedules {
		s := &schedules[i]
		if !r.due(s, minute) {
			continue
		}
		if r.fire(ctx, s, now) {
			fired++
		}
	}
	return fired
}

func (r *Runner) due(s *Schedule, minute time.Time) bool {
	for range r.normalizer.Occurrences(s.Trigger, minute, time.Minute) {
		return true
	}
	return false
}

func (r *Runner) fire(ctx context.Context, s *Schedule, now time.Time) bool {
	dispatch, err := r.dispatcher.DispatchActions(ctx, "schedule:"+s.ID, s.Actions)
	if r.metrics != nil {
		r.metrics.IncScheduleFire(err == nil)
	}
	if err != nil {
		r.logger.Error("schedule dispatch failed",
			"schedule_id", s.ID,
			"schedule_name", s.Name,
			"error", err,
		)
		return false
	}

	if err := r.repo.RecordTrigger(ctx, s.ID, now); err != nil {
		r.logger.Warn("recording schedule trigger", "schedule_id", s.ID, "error", err)
	}

	r.logger.Info("schedule triggered",
		"schedule_id", s.ID,
		"schedule_name", s.Name,
		"trigger", s.Trigger.String(),
		"correlation_id", dispatch.CorrelationID,
	)

	if r.publisher != nil {
		r.publisher.Publish(EventTopic, EventTriggered, map[string]any{
			"schedule_id":    s.ID,
			"schedule_name":  s.Name,
			"correlation_id": dispatch.CorrelationID,
			"triggered_at":   now.UTC(),
			"trigger_count":  s.TriggerCount + 1,
		})
	}
	return true
}
