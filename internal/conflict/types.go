package conflict

import (
	"time"

	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
)

// Severity ranks how serious a conflict is.
type Severity string

const (
	// SeverityInfo: triggers look alike but never fire together.
	SeverityInfo Severity = "INFO"
	// SeverityWarning: the schedules fire together on shared devices with
	// compatible effects.
	SeverityWarning Severity = "WARNING"
	// SeverityBlocking: the schedules fire together and contradict each
	// other on at least one shared device.
	SeverityBlocking Severity = "BLOCKING"
)

func (s Severity) rank() int {
	switch s {
	case SeverityBlocking:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Type classifies what the two schedules disagree about.
type Type string

const (
	TypeContradiction      Type = "contradiction"       // on vs off
	TypeSceneOverlap       Type = "scene_overlap"       // different scenes, or scene vs off
	TypeBrightnessConflict Type = "brightness_conflict" // levels differ beyond tolerance
	TypeTimingOverlap      Type = "timing_overlap"      // compatible but different effects
	TypeDuplicate          Type = "duplicate"           // identical effects
	TypeSimilarTrigger     Type = "similar_trigger"     // near miss, no overlap
)

func (t Type) rank() int {
	switch t {
	case TypeContradiction:
		return 5
	case TypeSceneOverlap:
		return 4
	case TypeBrightnessConflict:
		return 3
	case TypeTimingOverlap:
		return 2
	case TypeDuplicate:
		return 1
	}
	return 0
}

// Contradictory reports whether the type makes a conflict blocking.
func (t Type) Contradictory() bool {
	return t == TypeContradiction || t == TypeSceneOverlap || t == TypeBrightnessConflict
}

// Conflict relates a candidate schedule to one existing schedule. It is
// computed on demand and never persisted.
type Conflict struct {
	ID                   string       `json:"id"`
	CandidateScheduleID  string       `json:"candidate_schedule_id"`
	OtherScheduleID      string       `json:"other_schedule_id"`
	OtherScheduleName    string       `json:"other_schedule_name"`
	Severity             Severity     `json:"severity"`
	Type                 Type         `json:"type"`
	Description          string       `json:"description"`
	OverlappingDeviceIDs []string     `json:"overlapping_device_ids"`
	FirstOverlap         *time.Time   `json:"first_overlap,omitempty"`
	Resolutions          []Resolution `json:"resolutions"`
}

// Resolution is a named, machine-applicable fix for a conflict.
type Resolution struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Changes     []Change `json:"changes"`
}

// Change is a partial patch of one schedule. Nil fields are unchanged.
type Change struct {
	ScheduleID    string            `json:"schedule_id"`
	Enabled       *bool             `json:"enabled,omitempty"`
	TimeOfDay     *string           `json:"time_of_day,omitempty"`
	OffsetMinutes *int              `json:"offset_minutes,omitempty"`
	Actions       []schedule.Action `json:"actions,omitempty"`
}

// Apply patches s in place.
func (c Change) Apply(s *schedule.Schedule) {
	if c.Enabled != nil {
		s.Enabled = *c.Enabled
	}
	if c.TimeOfDay != nil {
		s.Trigger.At = *c.TimeOfDay
	}
	if c.OffsetMinutes != nil {
		s.Trigger.OffsetMinutes = *c.OffsetMinutes
	}
	if c.Actions != nil {
		s.Actions = append([]schedule.Action(nil), c.Actions...)
	}
}

// Result is the outcome of a conflict check.
type Result struct {
	CandidateID  string     `json:"candidate_id"`
	HasConflicts bool       `json:"has_conflicts"`
	Conflicts    []Conflict `json:"conflicts"`
	Summary      string     `json:"summary"`
}

// Counts returns the number of conflicts per severity.
func (r Result) Counts() (blocking, warning, info int) {
	for _, c := range r.Conflicts {
		switch c.Severity {
		case SeverityBlocking:
			blocking++
		case SeverityWarning:
			warning++
		case SeverityInfo:
			info++
		}
	}
	return blocking, warning, info
}

// ResolvedSchedule pairs a schedule with the devices each of its actions
// reaches.
type ResolvedSchedule struct {
	Schedule *schedule.Schedule
	// Devices[i] holds the sorted device IDs of Schedule.Actions[i].
	Devices [][]string
}

// DeviceIDs returns the union of devices across all actions.
func (r ResolvedSchedule) DeviceIDs() map[string]bool {
	ids := make(map[string]bool)
	for _, devs := range r.Devices {
		for _, id := range devs {
			ids[id] = true
		}
	}
	return ids
}
