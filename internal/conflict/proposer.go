package conflict

import (
	"fmt"

	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
)

// Resolution ID forms. Shift IDs carry the shift size, e.g. "shift_15m".
const (
	ResolutionDisableOther = "disable_other"
	ResolutionNarrowTarget = "narrow_target"
	shiftPrefix            = "shift_"
	shiftOffsetPrefix      = "shift_offset_"
)

// maxOffsetMinutes mirrors the trigger offset bound.
const maxOffsetMinutes = 12 * 60

// Propose returns the resolutions for c using the default shift size.
func Propose(c Conflict, candidate ResolvedSchedule) []Resolution {
	return ProposeWithShift(c, candidate, DefaultShiftMinutes)
}

// ProposeWithShift returns, in fixed order, the resolutions whose
// preconditions hold:
//
//  1. disable_other: soft-disable the existing schedule
//  2. shift_{n}m: move a time trigger n minutes later, wrapping at
//     midnight; or shift_offset_{n}m: add n to a sun trigger's offset
//  3. narrow_target: drop the overlapping devices from the candidate,
//     offered only when some devices remain
//
// It is pure and deterministic.
func ProposeWithShift(c Conflict, candidate ResolvedSchedule, minutes int) []Resolution {
	out := make([]Resolution, 0, 3)

	disabled := false
	out = append(out, Resolution{
		ID:          ResolutionDisableOther,
		Description: fmt.Sprintf("Disable %q", c.OtherScheduleName),
		Changes:     []Change{{ScheduleID: c.OtherScheduleID, Enabled: &disabled}},
	})

	if r, ok := shiftResolution(candidate.Schedule, minutes); ok {
		out = append(out, r)
	}
	if r, ok := narrowResolution(c, candidate); ok {
		out = append(out, r)
	}
	return out
}

func shiftResolution(s *schedule.Schedule, minutes int) (Resolution, bool) {
	switch s.Trigger.Kind {
	case schedule.TriggerTime:
		at, err := schedule.ShiftTimeOfDay(s.Trigger.At, minutes)
		if err != nil {
			return Resolution{}, false
		}
		return Resolution{
			ID:          fmt.Sprintf("%s%dm", shiftPrefix, minutes),
			Description: fmt.Sprintf("Move %q to %s", s.Name, at),
			Changes:     []Change{{ScheduleID: s.ID, TimeOfDay: &at}},
		}, true
	case schedule.TriggerSun:
		offset := s.Trigger.OffsetMinutes + minutes
		if offset < -maxOffsetMinutes || offset > maxOffsetMinutes {
			return Resolution{}, false
		}
		shifted := s.Trigger
		shifted.OffsetMinutes = offset
		return Resolution{
			ID:          fmt.Sprintf("%s%dm", shiftOffsetPrefix, minutes),
			Description: fmt.Sprintf("Run %q %d minutes later (%s)", s.Name, minutes, shifted),
			Changes:     []Change{{ScheduleID: s.ID, OffsetMinutes: &offset}},
		}, true
	}
	return Resolution{}, false
}

// narrowResolution rewrites the candidate's actions to explicit device
// targets that exclude the overlapping devices.
func narrowResolution(c Conflict, candidate ResolvedSchedule) (Resolution, bool) {
	excluded := make(map[string]bool, len(c.OverlappingDeviceIDs))
	for _, id := range c.OverlappingDeviceIDs {
		excluded[id] = true
	}

	var actions []schedule.Action
	for i, devs := range candidate.Devices {
		for _, id := range devs {
			if excluded[id] {
				continue
			}
			actions = append(actions, schedule.Action{
				Target: "device:" + id,
				Effect: candidate.Schedule.Actions[i].Effect,
			})
		}
	}
	if len(actions) == 0 {
		return Resolution{}, false
	}

	return Resolution{
		ID:          ResolutionNarrowTarget,
		Description: fmt.Sprintf("Exclude %s from %q", describeDevices(c.OverlappingDeviceIDs), candidate.Schedule.Name),
		Changes:     []Change{{ScheduleID: candidate.Schedule.ID, Actions: actions}},
	}, true
}
