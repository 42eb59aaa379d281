package conflict

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
)

// DefaultPendingTTL is how long a checked candidate stays resolvable.
const DefaultPendingTTL = 15 * time.Minute

// Repository is the schedule persistence the service needs.
type Repository interface {
	Get(ctx context.Context, id string) (*schedule.Schedule, error)
	LoadEnabled(ctx context.Context) ([]schedule.Schedule, error)
	Create(ctx context.Context, s *schedule.Schedule) error
	Update(ctx context.Context, s *schedule.Schedule) error
	Delete(ctx context.Context, id string) error
}

// Publisher delivers schedule change events.
type Publisher interface {
	Publish(topic, eventType string, payload any)
}

// Metrics receives conflict check counts.
type Metrics interface {
	ObserveConflictCheck(blocking, warning, info int)
}

// CheckRecorder persists conflict check outcomes for later analysis.
type CheckRecorder interface {
	RecordConflictCheck(scheduleID string, blocking, warning, info int)
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// PendingTTL bounds how long ApplyResolution accepts a checked conflict.
	PendingTTL time.Duration
}

type pendingCheck struct {
	candidate *schedule.Schedule
	replaces  bool // candidate.ID names a stored schedule
	resolved  ResolvedSchedule
	conflicts map[string]Conflict
	expires   time.Time
}

// Service guards schedule writes with conflict detection.
//
// Check remembers each candidate with its conflicts so a follow-up
// ApplyResolution can refer to them by ID. Entries expire after the
// pending TTL.
//
// Thread Safety: all methods are safe for concurrent use.
type Service struct {
	detector  *Detector
	repo      Repository
	publisher Publisher
	metrics   Metrics
	recorder  CheckRecorder
	logger    Logger
	ttl       time.Duration
	now       func() time.Time

	mu        sync.Mutex
	pending   map[string]*pendingCheck // candidate ID -> check
	conflicts map[string]string        // conflict ID -> candidate ID
}

// NewService creates a conflict service. publisher may be nil.
func NewService(detector *Detector, repo Repository, publisher Publisher, cfg ServiceConfig) *Service {
	ttl := cfg.PendingTTL
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &Service{
		detector:  detector,
		repo:      repo,
		publisher: publisher,
		logger:    noopLogger{},
		ttl:       ttl,
		now:       time.Now,
		pending:   make(map[string]*pendingCheck),
		conflicts: make(map[string]string),
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetMetrics installs a metrics sink.
func (s *Service) SetMetrics(m Metrics) {
	s.metrics = m
}

// SetRecorder installs a check outcome recorder.
func (s *Service) SetRecorder(r CheckRecorder) {
	s.recorder = r
}

// Check validates candidate and detects its conflicts with the enabled
// schedules in persistence. A candidate without an ID is assigned one,
// which the returned Result carries. A candidate whose ID names a stored
// schedule is checked as an edit of it, and a resolution applied later
// updates that schedule.
//
// Returns:
//   - Result: conflicts ordered by severity then name
//   - error: schedule.ErrInvalidSchedule, device.ErrUnknownTarget, or a
//     persistence error
func (s *Service) Check(ctx context.Context, candidate *schedule.Schedule) (Result, error) {
	if err := schedule.Validate(candidate); err != nil {
		return Result{}, err
	}
	replaces, err := s.stored(ctx, candidate.ID)
	if err != nil {
		return Result{}, err
	}
	return s.check(ctx, candidate, replaces)
}

// CheckNew is Check for a schedule that is about to be created. A
// candidate whose ID is already taken fails with schedule.ErrScheduleExists.
func (s *Service) CheckNew(ctx context.Context, candidate *schedule.Schedule) (Result, error) {
	if err := s.prepareNew(ctx, candidate); err != nil {
		return Result{}, err
	}
	return s.check(ctx, candidate, false)
}

func (s *Service) check(ctx context.Context, candidate *schedule.Schedule, replaces bool) (Result, error) {
	if candidate.ID == "" {
		candidate.ID = schedule.GenerateID()
	}

	existing, err := s.repo.LoadEnabled(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("loading schedules: %w", err)
	}

	resolved := ResolvedSchedule{Schedule: candidate}
	if candidate.Enabled {
		if resolved, err = s.detector.Resolve(ctx, candidate); err != nil {
			return Result{}, err
		}
	}
	conflicts, err := s.detector.Detect(ctx, candidate, existing)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		CandidateID:  candidate.ID,
		HasConflicts: len(conflicts) > 0,
		Conflicts:    conflicts,
	}
	blocking, warning, info := res.Counts()
	res.Summary = summarise(blocking, warning, info)

	s.remember(candidate, replaces, resolved, conflicts)
	if s.metrics != nil {
		s.metrics.ObserveConflictCheck(blocking, warning, info)
	}
	if s.recorder != nil {
		s.recorder.RecordConflictCheck(candidate.ID, blocking, warning, info)
	}

	s.logger.Debug("schedule conflict check",
		"schedule_id", candidate.ID,
		"blocking", blocking,
		"warning", warning,
		"info", info,
	)
	return res, nil
}

// Submit creates candidate when it has no conflicts or confirm is set.
// Disabled candidates are saved without a check. A candidate whose ID is
// already taken is rejected before any check.
//
// Returns:
//   - *schedule.Schedule: the saved schedule
//   - error: *BlockingError (matches ErrConflictBlocking) when conflicts
//     exist and confirm is false; schedule.ErrScheduleExists; validation
//     and persistence errors
func (s *Service) Submit(ctx context.Context, candidate *schedule.Schedule, confirm bool) (*schedule.Schedule, error) {
	if err := s.prepareNew(ctx, candidate); err != nil {
		return nil, err
	}
	return s.submit(ctx, candidate, confirm, false)
}

// Replace overwrites the stored schedule with candidate's ID, under the
// same rules as Submit. The schedule never conflicts with its own
// previous version.
//
// Returns:
//   - error: schedule.ErrScheduleNotFound when no schedule has the ID,
//     otherwise as Submit
func (s *Service) Replace(ctx context.Context, candidate *schedule.Schedule, confirm bool) (*schedule.Schedule, error) {
	if err := schedule.Validate(candidate); err != nil {
		return nil, err
	}
	if candidate.ID == "" {
		return nil, schedule.ErrScheduleNotFound
	}
	if _, err := s.repo.Get(ctx, candidate.ID); err != nil {
		return nil, err
	}
	return s.submit(ctx, candidate, confirm, true)
}

func (s *Service) submit(ctx context.Context, candidate *schedule.Schedule, confirm, replaces bool) (*schedule.Schedule, error) {
	if candidate.Enabled {
		res, err := s.check(ctx, candidate, replaces)
		if err != nil {
			return nil, err
		}
		if res.HasConflicts && !confirm {
			return nil, &BlockingError{Result: res}
		}
		if res.HasConflicts {
			s.logger.Info("schedule saved despite conflicts",
				"schedule_id", candidate.ID,
				"conflicts", len(res.Conflicts),
			)
		}
	} else if candidate.ID == "" {
		candidate.ID = schedule.GenerateID()
	}

	if err := s.save(ctx, candidate, replaces); err != nil {
		return nil, err
	}
	s.forget(candidate.ID)
	return candidate, nil
}

// prepareNew validates a schedule about to be created and rejects a
// client-chosen ID that is already taken.
func (s *Service) prepareNew(ctx context.Context, candidate *schedule.Schedule) error {
	if err := schedule.Validate(candidate); err != nil {
		return err
	}
	taken, err := s.stored(ctx, candidate.ID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s", schedule.ErrScheduleExists, candidate.ID)
	}
	return nil
}

// stored reports whether a schedule with id is persisted.
func (s *Service) stored(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	_, err := s.repo.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, schedule.ErrScheduleNotFound):
		return false, nil
	}
	return false, fmt.Errorf("loading schedule %s: %w", id, err)
}

// ApplyResolution applies a proposed resolution and saves the candidate
// it was proposed for. Applying counts as confirmation: the candidate is
// saved even if other conflicts remain.
//
// params["minutes"] overrides the shift size of shift resolutions.
// Schedules are soft-disabled, never deleted.
//
// Returns:
//   - []schedule.Schedule: every schedule written, candidate first
//   - error: ErrConflictNotFound, ErrResolutionNotFound, ErrInvalidParams,
//     or validation and persistence errors
func (s *Service) ApplyResolution(ctx context.Context, conflictID, resolutionID string, params map[string]any) ([]schedule.Schedule, error) {
	check, c, ok := s.lookup(conflictID)
	if !ok {
		return nil, ErrConflictNotFound
	}

	resolution, err := s.pick(c, check.resolved, resolutionID, params)
	if err != nil {
		return nil, err
	}

	candidate := check.candidate.DeepCopy()
	var others []*schedule.Schedule
	for _, change := range resolution.Changes {
		if change.ScheduleID == candidate.ID {
			change.Apply(candidate)
			continue
		}
		other, err := s.repo.Get(ctx, change.ScheduleID)
		if err != nil {
			return nil, fmt.Errorf("loading schedule %s: %w", change.ScheduleID, err)
		}
		change.Apply(other)
		others = append(others, other)
	}

	if err := schedule.Validate(candidate); err != nil {
		return nil, err
	}
	for _, other := range others {
		if err := s.repo.Update(ctx, other); err != nil {
			return nil, fmt.Errorf("updating schedule %s: %w", other.ID, err)
		}
		s.publish(schedule.EventSaved, other)
	}
	if err := s.save(ctx, candidate, check.replaces); err != nil {
		return nil, err
	}
	s.forget(candidate.ID)

	s.logger.Info("conflict resolution applied",
		"conflict_id", conflictID,
		"resolution_id", resolution.ID,
		"schedule_id", candidate.ID,
	)

	updated := make([]schedule.Schedule, 0, 1+len(others))
	updated = append(updated, *candidate)
	for _, other := range others {
		updated = append(updated, *other)
	}
	return updated, nil
}

// Delete removes a schedule. Command batches it already started run to
// completion.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.forget(id)
	if s.publisher != nil {
		s.publisher.Publish(schedule.EventTopic, schedule.EventDeleted, map[string]any{"schedule_id": id})
	}
	return nil
}

// pick finds resolutionID in c, rebuilding shift resolutions when
// params carries a minutes override.
func (s *Service) pick(c Conflict, resolved ResolvedSchedule, resolutionID string, params map[string]any) (Resolution, error) {
	var found *Resolution
	for i := range c.Resolutions {
		if c.Resolutions[i].ID == resolutionID {
			found = &c.Resolutions[i]
			break
		}
	}
	if found == nil {
		return Resolution{}, fmt.Errorf("%w: %s", ErrResolutionNotFound, resolutionID)
	}

	raw, ok := params["minutes"]
	if !ok || !strings.HasPrefix(found.ID, shiftPrefix) {
		return *found, nil
	}
	minutes, err := intParam(raw)
	if err != nil {
		return Resolution{}, err
	}
	r, ok := shiftResolution(resolved.Schedule, minutes)
	if !ok {
		return Resolution{}, fmt.Errorf("%w: cannot shift by %d minutes", ErrInvalidParams, minutes)
	}
	return r, nil
}

// save creates sched, or updates it when replaces is set, and announces it.
func (s *Service) save(ctx context.Context, sched *schedule.Schedule, replaces bool) error {
	var err error
	if replaces {
		err = s.repo.Update(ctx, sched)
	} else {
		err = s.repo.Create(ctx, sched)
	}
	if err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	s.publish(schedule.EventSaved, sched)
	return nil
}

func (s *Service) publish(eventType string, sched *schedule.Schedule) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(schedule.EventTopic, eventType, map[string]any{
		"schedule_id":   sched.ID,
		"schedule_name": sched.Name,
		"enabled":       sched.Enabled,
	})
}

func (s *Service) remember(candidate *schedule.Schedule, replaces bool, resolved ResolvedSchedule, conflicts []Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	s.dropLocked(candidate.ID)
	if len(conflicts) == 0 {
		return
	}

	cp := candidate.DeepCopy()
	resolved.Schedule = cp
	check := &pendingCheck{
		candidate: cp,
		replaces:  replaces,
		resolved:  resolved,
		conflicts: make(map[string]Conflict, len(conflicts)),
		expires:   s.now().Add(s.ttl),
	}
	for _, c := range conflicts {
		check.conflicts[c.ID] = c
		s.conflicts[c.ID] = cp.ID
	}
	s.pending[cp.ID] = check
}

func (s *Service) lookup(conflictID string) (*pendingCheck, Conflict, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	candidateID, ok := s.conflicts[conflictID]
	if !ok {
		return nil, Conflict{}, false
	}
	check := s.pending[candidateID]
	c, ok := check.conflicts[conflictID]
	return check, c, ok
}

func (s *Service) forget(candidateID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(candidateID)
}

// Pending returns the number of candidates awaiting resolution.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	return len(s.pending)
}

func (s *Service) dropLocked(candidateID string) {
	check, ok := s.pending[candidateID]
	if !ok {
		return
	}
	for id := range check.conflicts {
		delete(s.conflicts, id)
	}
	delete(s.pending, candidateID)
}

func (s *Service) pruneLocked() {
	now := s.now()
	for id, check := range s.pending {
		if now.After(check.expires) {
			s.dropLocked(id)
		}
	}
}

func intParam(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: minutes must be a whole number", ErrInvalidParams)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("%w: minutes must be a number", ErrInvalidParams)
}

func summarise(blocking, warning, info int) string {
	total := blocking + warning + info
	if total == 0 {
		return "No conflicts"
	}
	var parts []string
	for _, p := range []struct {
		n    int
		name string
	}{{blocking, "blocking"}, {warning, "warning"}, {info, "info"}} {
		if p.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", p.n, p.name))
		}
	}
	noun := "conflicts"
	if total == 1 {
		noun = "conflict"
	}
	return fmt.Sprintf("%d %s (%s)", total, noun, strings.Join(parts, ", "))
}
