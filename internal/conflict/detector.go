package conflict

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
)

// Defaults for DetectorConfig.
const (
	DefaultSimilarityWindow = 30 * time.Minute
	DefaultShiftMinutes     = 15
)

// Logger defines the logging interface used by the conflict package.
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

// TargetResolver expands a target expression into device IDs.
type TargetResolver interface {
	ResolveIDs(ctx context.Context, expr string) ([]string, error)
}

// DetectorConfig configures a Detector.
type DetectorConfig struct {
	// Horizon bounds how far ahead occurrences are compared.
	Horizon time.Duration
	// BrightnessTolerance is the largest level difference still compatible.
	BrightnessTolerance int
	// SimilarityWindow is how close two time-of-day triggers must be to be
	// reported as similar when they never overlap.
	SimilarityWindow time.Duration
	// ShiftMinutes sizes the proposed shift resolution.
	ShiftMinutes int
}

// Detector finds schedules whose occurrences coincide with a candidate's
// on shared devices.
//
// Detection is a read-only computation; a Detector is safe for concurrent
// use.
type Detector struct {
	resolver   TargetResolver
	normalizer *schedule.Normalizer
	cfg        DetectorConfig
	logger     Logger
	now        func() time.Time
}

// NewDetector creates a conflict detector.
func NewDetector(resolver TargetResolver, normalizer *schedule.Normalizer, cfg DetectorConfig) *Detector {
	if cfg.Horizon <= 0 {
		cfg.Horizon = schedule.DefaultHorizon
	}
	if cfg.BrightnessTolerance < 0 {
		cfg.BrightnessTolerance = 0
	}
	if cfg.SimilarityWindow <= 0 {
		cfg.SimilarityWindow = DefaultSimilarityWindow
	}
	if cfg.ShiftMinutes <= 0 {
		cfg.ShiftMinutes = DefaultShiftMinutes
	}
	return &Detector{
		resolver:   resolver,
		normalizer: normalizer,
		cfg:        cfg,
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger for the detector.
func (d *Detector) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// ShiftMinutes returns the configured shift size.
func (d *Detector) ShiftMinutes() int {
	return d.cfg.ShiftMinutes
}

// Resolve expands every action of s into its devices.
func (d *Detector) Resolve(ctx context.Context, s *schedule.Schedule) (ResolvedSchedule, error) {
	rs := ResolvedSchedule{Schedule: s, Devices: make([][]string, len(s.Actions))}
	for i, a := range s.Actions {
		ids, err := d.resolver.ResolveIDs(ctx, a.Target)
		if err != nil {
			return ResolvedSchedule{}, fmt.Errorf("action %d: %w", i, err)
		}
		rs.Devices[i] = ids
	}
	return rs, nil
}

// Detect compares candidate against existing and returns one conflict per
// affected schedule, most severe first, then by schedule name.
//
// A disabled candidate, an empty existing set, the candidate itself and
// disabled schedules never produce conflicts. Existing schedules whose
// targets no longer resolve are skipped.
//
// Returns:
//   - []Conflict: never nil
//   - error: the candidate's targets could not be resolved
func (d *Detector) Detect(ctx context.Context, candidate *schedule.Schedule, existing []schedule.Schedule) ([]Conflict, error) {
	conflicts := []Conflict{}
	if candidate == nil || !candidate.Enabled || len(existing) == 0 {
		return conflicts, nil
	}

	cand, err := d.Resolve(ctx, candidate)
	if err != nil {
		return nil, err
	}

	from := d.startOfDay()
	candWindows := d.normalizer.Windows(candidate.Trigger, from, d.cfg.Horizon)

	for i := range existing {
		other := &existing[i]
		if other.ID == candidate.ID || !other.Enabled {
			continue
		}

		resolved, err := d.Resolve(ctx, other)
		if err != nil {
			d.logger.Warn("skipping schedule with unresolvable targets",
				"schedule_id", other.ID,
				"error", err,
			)
			continue
		}

		c, ok := d.compare(cand, candWindows, resolved, d.normalizer.Windows(other.Trigger, from, d.cfg.Horizon))
		if !ok {
			continue
		}
		c.Resolutions = ProposeWithShift(c, cand, d.cfg.ShiftMinutes)
		conflicts = append(conflicts, c)
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		a, b := conflicts[i], conflicts[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() > b.Severity.rank()
		}
		if a.OtherScheduleName != b.OtherScheduleName {
			return a.OtherScheduleName < b.OtherScheduleName
		}
		return a.OtherScheduleID < b.OtherScheduleID
	})
	return conflicts, nil
}

// compare builds the conflict between cand and other, if any.
func (d *Detector) compare(cand ResolvedSchedule, candWindows []schedule.Window, other ResolvedSchedule, otherWindows []schedule.Window) (Conflict, bool) {
	shared := sharedDevices(cand, other)
	if len(shared) == 0 {
		return Conflict{}, false
	}

	c := Conflict{
		ID:                   cand.Schedule.ID + ":" + other.Schedule.ID,
		CandidateScheduleID:  cand.Schedule.ID,
		OtherScheduleID:      other.Schedule.ID,
		OtherScheduleName:    other.Schedule.Name,
		OverlappingDeviceIDs: shared,
	}

	first, overlaps := firstOverlap(candWindows, otherWindows)
	if !overlaps {
		if !d.similar(cand.Schedule.Trigger, other.Schedule.Trigger) {
			return Conflict{}, false
		}
		c.Severity = SeverityInfo
		c.Type = TypeSimilarTrigger
		c.Description = fmt.Sprintf("These schedules have similar triggers (%s vs %s) and both control %s.",
			cand.Schedule.Trigger, other.Schedule.Trigger, describeDevices(shared))
		return c, true
	}

	c.FirstOverlap = &first
	verdict := d.classifyDevices(effectsByDevice(cand), effectsByDevice(other), shared)
	c.Type = verdict.kind
	c.Severity = SeverityWarning
	if verdict.kind.Contradictory() {
		c.Severity = SeverityBlocking
	}
	c.Description = describe(verdict, first.In(d.normalizer.Location()), shared)
	return c, true
}

// Contradicts reports whether two effects on the same device at the same
// time are contradictory under tolerance. It is symmetric.
func Contradicts(a, b command.Effect, tolerance int) bool {
	return classify(a, b, tolerance).Contradictory()
}

// classify names the relationship between two effects on one device.
// Every rule is symmetric in a and b.
func classify(a, b command.Effect, tolerance int) Type {
	switch {
	case (a.Lit() && b.Dark()) || (a.Dark() && b.Lit()):
		return TypeContradiction
	case a.Kind == command.EffectApplyScene && b.Kind == command.EffectApplyScene:
		if a.SceneID != b.SceneID {
			return TypeSceneOverlap
		}
		return TypeDuplicate
	case (a.Kind == command.EffectApplyScene && b.Dark()) ||
		(a.Dark() && b.Kind == command.EffectApplyScene):
		return TypeSceneOverlap
	case a.Brightness != nil && b.Brightness != nil:
		if abs(*a.Brightness-*b.Brightness) > tolerance {
			return TypeBrightnessConflict
		}
		if a.Kind == b.Kind && *a.Brightness == *b.Brightness {
			return TypeDuplicate
		}
		return TypeTimingOverlap
	case a.Kind == b.Kind && a.Brightness == nil && b.Brightness == nil:
		return TypeDuplicate
	}
	return TypeTimingOverlap
}

type verdict struct {
	kind     Type
	deviceID string
	ours     command.Effect
	theirs   command.Effect
}

// classifyDevices returns the worst relationship across every pair of
// effects the two schedules apply to each shared device.
func (d *Detector) classifyDevices(ours, theirs map[string][]command.Effect, shared []string) verdict {
	var worst verdict
	for _, id := range shared {
		for _, a := range ours[id] {
			for _, b := range theirs[id] {
				kind := classify(a, b, d.cfg.BrightnessTolerance)
				if kind.rank() > worst.kind.rank() {
					worst = verdict{kind: kind, deviceID: id, ours: a, theirs: b}
				}
			}
		}
	}
	return worst
}

// similar reports whether two triggers look alike: same kind and day set,
// and either the same sun event or times of day within the similarity
// window.
func (d *Detector) similar(a, b schedule.Trigger) bool {
	if a.Kind != b.Kind || !a.SharesWeekday(b) {
		return false
	}
	switch a.Kind {
	case schedule.TriggerSun:
		return a.Event == b.Event
	case schedule.TriggerTime:
		ah, am, as, err := schedule.ParseTimeOfDay(a.At)
		if err != nil {
			return false
		}
		bh, bm, bs, err := schedule.ParseTimeOfDay(b.At)
		if err != nil {
			return false
		}
		const day = 24 * 60 * 60
		diff := abs((ah*3600 + am*60 + as) - (bh*3600 + bm*60 + bs))
		diff = min(diff, day-diff)
		return time.Duration(diff)*time.Second <= d.cfg.SimilarityWindow
	}
	return false
}

func (d *Detector) startOfDay() time.Time {
	now := d.now().In(d.normalizer.Location())
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// firstOverlap scans two start-ordered window lists for the earliest
// intersecting pair.
func firstOverlap(a, b []schedule.Window) (time.Time, bool) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Overlaps(b[j]) {
			start := a[i].Start
			if b[j].Start.After(start) {
				start = b[j].Start
			}
			return start, true
		}
		if a[i].End.After(b[j].End) {
			j++
		} else {
			i++
		}
	}
	return time.Time{}, false
}

func effectsByDevice(rs ResolvedSchedule) map[string][]command.Effect {
	out := make(map[string][]command.Effect)
	for i, devs := range rs.Devices {
		for _, id := range devs {
			out[id] = append(out[id], rs.Schedule.Actions[i].Effect)
		}
	}
	return out
}

func sharedDevices(a, b ResolvedSchedule) []string {
	theirs := b.DeviceIDs()
	var shared []string
	for id := range a.DeviceIDs() {
		if theirs[id] {
			shared = append(shared, id)
		}
	}
	sort.Strings(shared)
	return shared
}

func describe(v verdict, at time.Time, shared []string) string {
	when := at.Format("Mon 2 Jan 15:04")
	devices := describeDevices(shared)
	switch v.kind {
	case TypeContradiction:
		return fmt.Sprintf("These schedules will turn lights ON and OFF at the same time (%s) for %s: %s vs %s on %s.",
			when, devices, v.ours, v.theirs, v.deviceID)
	case TypeSceneOverlap:
		return fmt.Sprintf("These schedules apply conflicting scenes at the same time (%s) for %s: %s vs %s on %s.",
			when, devices, v.ours, v.theirs, v.deviceID)
	case TypeBrightnessConflict:
		return fmt.Sprintf("These schedules set different brightness levels at the same time (%s) for %s: %s vs %s on %s.",
			when, devices, v.ours, v.theirs, v.deviceID)
	case TypeDuplicate:
		return fmt.Sprintf("These schedules do the same thing at the same time (%s) for %s.", when, devices)
	}
	return fmt.Sprintf("These schedules both control %s at the same time (%s): %s vs %s.",
		devices, when, v.ours, v.theirs)
}

func describeDevices(ids []string) string {
	const maxListed = 3
	if len(ids) == 1 {
		return "device " + ids[0]
	}
	if len(ids) <= maxListed {
		return "devices " + strings.Join(ids, ", ")
	}
	return fmt.Sprintf("devices %s and %d more", strings.Join(ids[:maxListed], ", "), len(ids)-maxListed)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
