package conflict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
	"github.com/nerrad567/gray-logic-lighting/internal/device"
	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
)

// mockResolver maps target expressions to device IDs.
type mockResolver map[string][]string

func (m mockResolver) ResolveIDs(_ context.Context, expr string) ([]string, error) {
	ids, ok := m[expr]
	if !ok {
		return nil, &device.UnknownTargetError{Target: expr}
	}
	return ids, nil
}

var testDevices = mockResolver{
	"all":                 {"bedroom-lamp", "hall", "kitchen"},
	"room:bedroom":        {"bedroom-lamp"},
	"room:kitchen":        {"kitchen"},
	"device:bedroom-lamp": {"bedroom-lamp"},
	"device:hall":         {"hall"},
	"device:kitchen":      {"kitchen"},
	"group:ground":        {"hall", "kitchen"},
}

// fixedSun sets at 18:00 and rises at 06:00 every day.
type fixedSun struct{}

func (fixedSun) SunEventTime(date time.Time, event schedule.SunEvent) (time.Time, error) {
	hour := 6
	if event == schedule.Sunset {
		hour = 18
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location()), nil
}

// monday is 2026-03-02 09:00 UTC.
var monday = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func newTestDetector(cfg DetectorConfig) *Detector {
	n := schedule.NewNormalizer(schedule.NormalizerConfig{Location: time.UTC}, fixedSun{})
	d := NewDetector(testDevices, n, cfg)
	d.now = func() time.Time { return monday }
	return d
}

func turnOff() command.Effect { return command.Effect{Kind: command.EffectTurnOff} }
func turnOn() command.Effect  { return command.Effect{Kind: command.EffectTurnOn} }
func level(n int) command.Effect {
	return command.Effect{Kind: command.EffectSetBrightness, Brightness: command.Brightness(n)}
}
func scene(id string) command.Effect {
	return command.Effect{Kind: command.EffectApplyScene, SceneID: id}
}

func at(id, name, tod, target string, effect command.Effect) schedule.Schedule {
	return schedule.Schedule{
		ID:      id,
		Name:    name,
		Enabled: true,
		Trigger: schedule.Trigger{Kind: schedule.TriggerTime, At: tod},
		Actions: []schedule.Action{{Target: target, Effect: effect}},
	}
}

func sun(id, name string, event schedule.SunEvent, offset int, target string, effect command.Effect) schedule.Schedule {
	s := at(id, name, "", target, effect)
	s.Trigger = schedule.Trigger{Kind: schedule.TriggerSun, Event: event, OffsetMinutes: offset}
	return s
}

func resolutionIDs(rs []Resolution) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}

func findResolution(t *testing.T, rs []Resolution, id string) Resolution {
	t.Helper()
	for _, r := range rs {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("resolution %q not offered, got %v", id, resolutionIDs(rs))
	return Resolution{}
}

func TestDetect_TurnOffAllVsBedroomBrightness(t *testing.T) {
	d := newTestDetector(DetectorConfig{})
	candidate := at("lights-out", "Lights out", "22:00", "all", turnOff())
	existing := []schedule.Schedule{at("reading", "Bedroom reading", "22:00", "room:bedroom", level(50))}

	conflicts, err := d.Detect(context.Background(), &candidate, existing)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, "lights-out:reading", c.ID)
	assert.Equal(t, "reading", c.OtherScheduleID)
	assert.Equal(t, "Bedroom reading", c.OtherScheduleName)
	assert.Equal(t, SeverityBlocking, c.Severity)
	assert.Equal(t, TypeContradiction, c.Type)
	assert.Equal(t, []string{"bedroom-lamp"}, c.OverlappingDeviceIDs)
	require.NotNil(t, c.FirstOverlap)
	assert.Equal(t, time.Date(2026, time.March, 2, 22, 0, 0, 0, time.UTC), *c.FirstOverlap)
	assert.Contains(t, c.Description, "ON and OFF")

	assert.Equal(t, []string{"disable_other", "shift_15m", "narrow_target"}, resolutionIDs(c.Resolutions))

	disable := findResolution(t, c.Resolutions, ResolutionDisableOther)
	require.Len(t, disable.Changes, 1)
	assert.Equal(t, "reading", disable.Changes[0].ScheduleID)
	require.NotNil(t, disable.Changes[0].Enabled)
	assert.False(t, *disable.Changes[0].Enabled)

	shift := findResolution(t, c.Resolutions, "shift_15m")
	require.NotNil(t, shift.Changes[0].TimeOfDay)
	assert.Equal(t, "22:15", *shift.Changes[0].TimeOfDay)
	assert.Equal(t, "lights-out", shift.Changes[0].ScheduleID)

	narrow := findResolution(t, c.Resolutions, ResolutionNarrowTarget)
	assert.Equal(t, []schedule.Action{
		{Target: "device:hall", Effect: turnOff()},
		{Target: "device:kitchen", Effect: turnOff()},
	}, narrow.Changes[0].Actions)
}

func TestDetect_SunsetOffsetsWithinGrace(t *testing.T) {
	d := newTestDetector(DetectorConfig{})
	candidate := sun("dusk-on", "Dusk on", schedule.Sunset, -30, "device:hall", turnOn())
	existing := []schedule.Schedule{sun("dusk-off", "Dusk off", schedule.Sunset, -25, "device:hall", turnOff())}

	conflicts, err := d.Detect(context.Background(), &candidate, existing)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, SeverityBlocking, conflicts[0].Severity)

	// The only device overlaps, so narrowing is not offered.
	assert.Equal(t, []string{"disable_other", "shift_offset_15m"}, resolutionIDs(conflicts[0].Resolutions))
	shift := conflicts[0].Resolutions[1]
	require.NotNil(t, shift.Changes[0].OffsetMinutes)
	assert.Equal(t, -15, *shift.Changes[0].OffsetMinutes)
}

func TestDetect_NoSharedDevicesNoConflict(t *testing.T) {
	d := newTestDetector(DetectorConfig{})
	candidate := at("a", "Kitchen off", "22:00", "room:kitchen", turnOff())
	existing := []schedule.Schedule{
		at("b", "Bedroom on", "22:00", "room:bedroom", turnOn()),
		at("c", "Hall on", "22:00", "device:hall", level(80)),
	}

	conflicts, err := d.Detect(context.Background(), &candidate, existing)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetect_EdgeCases(t *testing.T) {
	d := newTestDetector(DetectorConfig{})
	ctx := context.Background()
	candidate := at("a", "Off", "22:00", "all", turnOff())

	conflicts, err := d.Detect(ctx, &candidate, nil)
	require.NoError(t, err)
	assert.NotNil(t, conflicts)
	assert.Empty(t, conflicts)

	// Itself, and disabled schedules, are ignored.
	self := candidate
	self.Actions = []schedule.Action{{Target: "all", Effect: turnOn()}}
	disabled := at("b", "Disabled", "22:00", "all", turnOn())
	disabled.Enabled = false
	conflicts, err = d.Detect(ctx, &candidate, []schedule.Schedule{self, disabled})
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	// A disabled candidate has nothing to detect.
	off := candidate
	off.Enabled = false
	conflicts, err = d.Detect(ctx, &off, []schedule.Schedule{at("c", "On", "22:00", "all", turnOn())})
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetect_UnresolvableTargets(t *testing.T) {
	d := newTestDetector(DetectorConfig{})
	ctx := context.Background()

	bad := at("a", "Ghost", "22:00", "room:attic", turnOff())
	_, err := d.Detect(ctx, &bad, []schedule.Schedule{at("b", "On", "22:00", "all", turnOn())})
	assert.ErrorIs(t, err, device.ErrUnknownTarget)

	candidate := at("a", "Off", "22:00", "all", turnOff())
	conflicts, err := d.Detect(ctx, &candidate, []schedule.Schedule{
		at("b", "Ghost", "22:00", "room:attic", turnOn()),
		at("c", "On", "22:00", "device:hall", turnOn()),
	})
	require.NoError(t, err)
	require.Len(t, conflicts, 1, "schedules with stale targets are skipped")
	assert.Equal(t, "c", conflicts[0].OtherScheduleID)
}

func TestDetect_Severities(t *testing.T) {
	tests := []struct {
		name      string
		tolerance int
		candidate schedule.Schedule
		other     schedule.Schedule
		severity  Severity
		kind      Type
	}{
		{
			name:      "compatible effects warn",
			candidate: at("a", "A", "22:00", "device:hall", turnOn()),
			other:     at("b", "B", "22:00", "device:hall", level(50)),
			severity:  SeverityWarning,
			kind:      TypeTimingOverlap,
		},
		{
			name:      "identical effects are duplicates",
			candidate: at("a", "A", "22:00", "all", turnOff()),
			other:     at("b", "B", "22:00", "group:ground", turnOff()),
			severity:  SeverityWarning,
			kind:      TypeDuplicate,
		},
		{
			name:      "brightness beyond tolerance blocks",
			candidate: at("a", "A", "22:00", "device:hall", level(50)),
			other:     at("b", "B", "22:01", "device:hall", level(55)),
			severity:  SeverityBlocking,
			kind:      TypeBrightnessConflict,
		},
		{
			name:      "brightness within tolerance warns",
			tolerance: 10,
			candidate: at("a", "A", "22:00", "device:hall", level(50)),
			other:     at("b", "B", "22:01", "device:hall", level(55)),
			severity:  SeverityWarning,
			kind:      TypeTimingOverlap,
		},
		{
			name:      "different scenes block",
			candidate: at("a", "A", "19:00", "room:kitchen", scene("dinner")),
			other:     at("b", "B", "19:00", "all", scene("movie")),
			severity:  SeverityBlocking,
			kind:      TypeSceneOverlap,
		},
		{
			name:      "scene versus off blocks",
			candidate: at("a", "A", "19:00", "room:kitchen", scene("dinner")),
			other:     at("b", "B", "19:00", "all", turnOff()),
			severity:  SeverityBlocking,
			kind:      TypeSceneOverlap,
		},
		{
			name:      "zero brightness is dark",
			candidate: at("a", "A", "07:00", "device:hall", level(0)),
			other:     at("b", "B", "07:00", "device:hall", turnOn()),
			severity:  SeverityBlocking,
			kind:      TypeContradiction,
		},
		{
			name:      "near miss is info",
			candidate: at("a", "A", "22:00", "device:hall", turnOff()),
			other:     at("b", "B", "22:20", "device:hall", turnOn()),
			severity:  SeverityInfo,
			kind:      TypeSimilarTrigger,
		},
		{
			name:      "same sun event without overlap is info",
			candidate: sun("a", "A", schedule.Sunset, 0, "device:hall", turnOn()),
			other:     sun("b", "B", schedule.Sunset, 60, "device:hall", turnOff()),
			severity:  SeverityInfo,
			kind:      TypeSimilarTrigger,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(DetectorConfig{BrightnessTolerance: tt.tolerance})
			conflicts, err := d.Detect(context.Background(), &tt.candidate, []schedule.Schedule{tt.other})
			require.NoError(t, err)
			require.Len(t, conflicts, 1)
			assert.Equal(t, tt.severity, conflicts[0].Severity)
			assert.Equal(t, tt.kind, conflicts[0].Type)
			assert.NotEmpty(t, conflicts[0].Description)
		})
	}
}

func TestDetect_DistantTriggersIgnored(t *testing.T) {
	d := newTestDetector(DetectorConfig{})
	ctx := context.Background()

	candidate := at("a", "A", "22:00", "device:hall", turnOff())
	conflicts, err := d.Detect(ctx, &candidate, []schedule.Schedule{at("b", "B", "23:00", "device:hall", turnOn())})
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	mondays := candidate
	mondays.Trigger.Weekdays = []string{"mon"}
	tuesdays := at("c", "C", "22:00", "device:hall", turnOn())
	tuesdays.Trigger.Weekdays = []string{"tuesday"}
	conflicts, err = d.Detect(ctx, &mondays, []schedule.Schedule{tuesdays})
	require.NoError(t, err)
	assert.Empty(t, conflicts, "disjoint weekdays never fire together")
}

func TestDetect_Ordering(t *testing.T) {
	d := newTestDetector(DetectorConfig{})
	candidate := at("cand", "Candidate", "22:00", "all", turnOff())
	existing := []schedule.Schedule{
		at("z", "Zeta", "22:00", "device:hall", turnOn()),
		at("a", "Alpha", "22:00", "room:kitchen", turnOff()),
		at("i", "Info", "22:25", "room:bedroom", turnOn()),
		at("b", "Beta", "22:00", "room:bedroom", level(20)),
	}

	conflicts, err := d.Detect(context.Background(), &candidate, existing)
	require.NoError(t, err)

	var names []string
	for _, c := range conflicts {
		names = append(names, c.OtherScheduleName)
	}
	assert.Equal(t, []string{"Beta", "Zeta", "Alpha", "Info"}, names)
}

func TestDetect_Symmetric(t *testing.T) {
	d := newTestDetector(DetectorConfig{})
	pairs := [][2]schedule.Schedule{
		{at("a", "A", "22:00", "all", turnOff()), at("b", "B", "22:00", "room:bedroom", level(50))},
		{sun("a", "A", schedule.Sunset, -30, "device:hall", turnOn()), sun("b", "B", schedule.Sunset, -25, "device:hall", turnOff())},
		{at("a", "A", "22:00", "device:hall", turnOn()), at("b", "B", "22:00", "device:hall", level(40))},
		{at("a", "A", "19:00", "room:kitchen", scene("x")), at("b", "B", "19:01", "all", scene("y"))},
	}
	for _, p := range pairs {
		forward, err := d.Detect(context.Background(), &p[0], []schedule.Schedule{p[1]})
		require.NoError(t, err)
		backward, err := d.Detect(context.Background(), &p[1], []schedule.Schedule{p[0]})
		require.NoError(t, err)
		require.Len(t, forward, 1)
		require.Len(t, backward, 1)
		assert.Equal(t, forward[0].Severity, backward[0].Severity)
		assert.Equal(t, forward[0].Type, backward[0].Type)
	}
}

func TestContradicts_Symmetric(t *testing.T) {
	effects := []command.Effect{
		turnOn(), turnOff(), level(0), level(30), level(31), level(100),
		scene("a"), scene("b"),
		{Kind: command.EffectTurnOn, Brightness: command.Brightness(30)},
	}
	for _, a := range effects {
		for _, b := range effects {
			for _, tol := range []int{0, 1, 50} {
				assert.Equal(t, Contradicts(a, b, tol), Contradicts(b, a, tol), "%s vs %s tol %d", a, b, tol)
			}
		}
	}

	assert.True(t, Contradicts(turnOn(), turnOff(), 0))
	assert.True(t, Contradicts(level(30), level(31), 0))
	assert.False(t, Contradicts(level(30), level(31), 1))
	assert.False(t, Contradicts(turnOff(), turnOff(), 0))
	assert.False(t, Contradicts(scene("a"), scene("a"), 0))
}

func TestPropose_SunOffsetLimit(t *testing.T) {
	s := sun("a", "Late", schedule.Sunrise, 710, "device:hall", turnOn())
	rs := Propose(Conflict{OtherScheduleID: "b", OtherScheduleName: "B", OverlappingDeviceIDs: []string{"hall"}},
		ResolvedSchedule{Schedule: &s, Devices: [][]string{{"hall"}}})
	assert.Equal(t, []string{"disable_other"}, resolutionIDs(rs))
}

func TestPropose_ShiftWrapsMidnight(t *testing.T) {
	s := at("a", "Late", "23:50", "all", turnOff())
	rs := ProposeWithShift(Conflict{OtherScheduleID: "b", OverlappingDeviceIDs: []string{"hall"}},
		ResolvedSchedule{Schedule: &s, Devices: [][]string{{"bedroom-lamp", "hall", "kitchen"}}}, 20)

	shift := findResolution(t, rs, "shift_20m")
	assert.Equal(t, "00:10", *shift.Changes[0].TimeOfDay)

	narrow := findResolution(t, rs, ResolutionNarrowTarget)
	assert.Len(t, narrow.Changes[0].Actions, 2)
}
