package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
)

// memoryRepository is an in-memory Repository.
type memoryRepository struct {
	mu        sync.Mutex
	schedules map[string]*Schedule
	loadErr   error
}

func newMemoryRepository(schedules ...*Schedule) *memoryRepository {
	r := &memoryRepository{schedules: make(map[string]*Schedule)}
	for _, s := range schedules {
		r.schedules[s.ID] = s.DeepCopy()
	}
	return r
}

func (r *memoryRepository) Get(_ context.Context, id string) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return s.DeepCopy(), nil
}

func (r *memoryRepository) List(_ context.Context) ([]Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Schedule, 0, len(r.schedules))
	for _, s := range r.schedules {
		out = append(out, *s.DeepCopy())
	}
	return out, nil
}

func (r *memoryRepository) LoadEnabled(ctx context.Context) ([]Schedule, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	all, _ := r.List(ctx)
	var out []Schedule
	for _, s := range all {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memoryRepository) Create(_ context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[s.ID]; ok {
		return ErrScheduleExists
	}
	r.schedules[s.ID] = s.DeepCopy()
	return nil
}

func (r *memoryRepository) Update(_ context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[s.ID]; !ok {
		return ErrScheduleNotFound
	}
	r.schedules[s.ID] = s.DeepCopy()
	return nil
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.schedules, id)
	return nil
}

func (r *memoryRepository) RecordTrigger(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return ErrScheduleNotFound
	}
	s.LastTriggeredAt = &at
	s.TriggerCount++
	return nil
}

type dispatchCall struct {
	source  string
	actions []command.Action
}

type mockDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

func (d *mockDispatcher) DispatchActions(_ context.Context, source string, actions []command.Action) (command.Dispatch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{source, actions})
	if d.err != nil {
		return command.Dispatch{}, d.err
	}
	return command.Dispatch{CorrelationID: "corr-" + source}, nil
}

type published struct {
	topic, eventType string
	payload          any
}

type mockPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *mockPublisher) Publish(topic, eventType string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic, eventType, payload})
}

type mockFires struct {
	ok, failed int
}

func (m *mockFires) IncScheduleFire(ok bool) {
	if ok {
		m.ok++
	} else {
		m.failed++
	}
}

func scheduleAt(id, at string, enabled bool) *Schedule {
	s := validSchedule()
	s.ID = id
	s.Name = id
	s.Enabled = enabled
	s.Trigger = Trigger{Kind: TriggerTime, At: at}
	return s
}

func TestRunner_FiresDueSchedulesOncePerMinute(t *testing.T) {
	repo := newMemoryRepository(
		scheduleAt("evening", "21:30", true),
		scheduleAt("late", "23:00", true),
		scheduleAt("off", "21:30", false),
	)
	dispatcher := &mockDispatcher{}
	pub := &mockPublisher{}
	fires := &mockFires{}
	r := NewRunner(repo, newTestNormalizer(), dispatcher, pub, nil)
	r.SetMetrics(fires)

	ctx := context.Background()
	tick := monday.Add(21*time.Hour + 30*time.Minute + 20*time.Second)

	assert.Equal(t, 1, r.Tick(ctx, tick))
	assert.Equal(t, 0, r.Tick(ctx, tick.Add(30*time.Second)), "same minute is processed once")
	assert.Equal(t, 0, r.Tick(ctx, tick.Add(time.Minute)))

	require.Len(t, dispatcher.calls, 1)
	assert.Equal(t, "schedule:evening", dispatcher.calls[0].source)
	assert.Len(t, dispatcher.calls[0].actions, 1)
	assert.Equal(t, 1, fires.ok)

	got, err := repo.Get(ctx, "evening")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TriggerCount)
	require.NotNil(t, got.LastTriggeredAt)
	assert.True(t, tick.Equal(*got.LastTriggeredAt))

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventTopic, pub.events[0].topic)
	assert.Equal(t, EventTriggered, pub.events[0].eventType)
	payload, ok := pub.events[0].payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "corr-schedule:evening", payload["correlation_id"])
	assert.Equal(t, 1, payload["trigger_count"])
}

func TestRunner_EarlierMinuteIgnored(t *testing.T) {
	repo := newMemoryRepository(scheduleAt("a", "10:00", true))
	dispatcher := &mockDispatcher{}
	r := NewRunner(repo, newTestNormalizer(), dispatcher, nil, nil)

	ctx := context.Background()
	assert.Equal(t, 0, r.Tick(ctx, monday.Add(10*time.Hour+time.Minute)))
	assert.Equal(t, 0, r.Tick(ctx, monday.Add(10*time.Hour)), "clock went backwards")
	assert.Empty(t, dispatcher.calls)
}

func TestRunner_DispatchFailureNotRecorded(t *testing.T) {
	repo := newMemoryRepository(scheduleAt("a", "10:00", true))
	dispatcher := &mockDispatcher{err: errors.New("mqtt down")}
	pub := &mockPublisher{}
	fires := &mockFires{}
	r := NewRunner(repo, newTestNormalizer(), dispatcher, pub, nil)
	r.SetMetrics(fires)

	assert.Equal(t, 0, r.Tick(context.Background(), monday.Add(10*time.Hour)))
	assert.Equal(t, 1, fires.failed)
	assert.Empty(t, pub.events)

	got, err := repo.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, 0, got.TriggerCount)
}

func TestRunner_LoadErrorFiresNothing(t *testing.T) {
	repo := newMemoryRepository(scheduleAt("a", "10:00", true))
	repo.loadErr = errors.New("disk gone")
	dispatcher := &mockDispatcher{}
	r := NewRunner(repo, newTestNormalizer(), dispatcher, nil, nil)

	assert.Equal(t, 0, r.Tick(context.Background(), monday.Add(10*time.Hour)))
	assert.Empty(t, dispatcher.calls)
}

func TestRunner_SunTrigger(t *testing.T) {
	s := validSchedule()
	s.ID = "dusk"
	s.Trigger = Trigger{Kind: TriggerSun, Event: Sunset, OffsetMinutes: -30}
	dispatcher := &mockDispatcher{}
	r := NewRunner(newMemoryRepository(s), newTestNormalizer(), dispatcher, nil, nil)

	assert.Equal(t, 0, r.Tick(context.Background(), monday.Add(17*time.Hour+29*time.Minute)))
	assert.Equal(t, 1, r.Tick(context.Background(), monday.Add(17*time.Hour+30*time.Minute)))
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	r := NewRunner(newMemoryRepository(), newTestNormalizer(), &mockDispatcher{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
