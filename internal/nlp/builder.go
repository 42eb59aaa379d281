package nlp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nerrad567/gray-logic-lighting/internal/command"
	"github.com/nerrad567/gray-logic-lighting/internal/schedule"
)

const maxNameLength = 100

var (
	weekdays = []string{"mon", "tue", "wed", "thu", "fri"}
	weekends = []string{"sat", "sun"}
)

// BuildSchedule turns a scheduled command into an enabled schedule
// candidate with a single action.
func BuildSchedule(cmd *ParsedCommand, action command.Action) (*schedule.Schedule, error) {
	trigger, err := buildTrigger(cmd.Schedule)
	if err != nil {
		return nil, err
	}

	desc := "Created via natural language: " + string(cmd.Intent)
	return &schedule.Schedule{
		Name:        scheduleName(cmd, trigger),
		Description: &desc,
		Enabled:     true,
		Trigger:     trigger,
		Actions:     []schedule.Action{action},
	}, nil
}

func buildTrigger(ps *ParsedSchedule) (schedule.Trigger, error) {
	days, err := recurrenceDays(ps.Recurrence)
	if err != nil {
		return schedule.Trigger{}, err
	}

	var t schedule.Trigger
	switch {
	case ps.Time != "":
		t = schedule.Trigger{Kind: schedule.TriggerTime, At: ps.Time, Weekdays: days}
	case ps.Event != "":
		t = schedule.Trigger{
			Kind:          schedule.TriggerSun,
			Event:         schedule.SunEvent(strings.ToLower(ps.Event)),
			OffsetMinutes: ps.OffsetMinutes,
			Weekdays:      days,
		}
	default:
		return schedule.Trigger{}, fmt.Errorf("%w: time or sun event is required", ErrInvalidTrigger)
	}

	if err := t.Validate(); err != nil {
		return schedule.Trigger{}, fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
	}
	return t, nil
}

// recurrenceDays returns nil for every day.
func recurrenceDays(r any) ([]string, error) {
	switch v := r.(type) {
	case nil:
		return nil, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "once", "daily", "everyday", "every day":
			return nil, nil
		case "weekdays":
			return append([]string(nil), weekdays...), nil
		case "weekends":
			return append([]string(nil), weekends...), nil
		}
		return nil, fmt.Errorf("%w: unknown recurrence %q", ErrInvalidTrigger, v)
	case []string:
		return lowerAll(v), nil
	case []any:
		days := make([]string, 0, len(v))
		for _, d := range v {
			s, ok := d.(string)
			if !ok {
				return nil, fmt.Errorf("%w: recurrence days must be strings", ErrInvalidTrigger)
			}
			days = append(days, s)
		}
		return lowerAll(days), nil
	}
	return nil, fmt.Errorf("%w: unsupported recurrence %T", ErrInvalidTrigger, r)
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// scheduleName renders e.g. "On living room at 22:00 on mon,tue".
func scheduleName(cmd *ParsedCommand, t schedule.Trigger) string {
	verb := strings.TrimPrefix(strings.TrimPrefix(string(cmd.Intent), "light."), "scene.")
	if verb != "" {
		verb = strings.ToUpper(verb[:1]) + verb[1:]
	}
	target := cmd.Target
	if cmd.Intent == IntentSceneApply && cmd.Scene != "" {
		target = cmd.Scene
	}
	if target == "" {
		target = "all"
	}

	name := fmt.Sprintf("%s %s %s", verb, strings.ReplaceAll(target, "_", " "), t.String())
	return truncateName(name)
}

// truncateName cuts name to at most maxNameLength bytes without splitting a
// rune.
func truncateName(name string) string {
	if len(name) <= maxNameLength {
		return name
	}
	cut := maxNameLength
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return strings.TrimSpace(name[:cut])
}

// Preview describes what a command will do.
func Preview(cmd *ParsedCommand) string {
	target := "all"
	if cmd.Target != "" {
		target = cmd.Target
	}

	var b strings.Builder
	switch cmd.Intent {
	case IntentLightOn:
		fmt.Fprintf(&b, "Turn ON %s lights", target)
	case IntentLightOff:
		fmt.Fprintf(&b, "Turn OFF %s lights", target)
	case IntentLightBrightness:
		fmt.Fprintf(&b, "Set %s lights to %v%% brightness", target, cmd.Params["brightness"])
	case IntentSceneApply:
		fmt.Fprintf(&b, "Apply scene %q", cmd.Scene)
		if cmd.Target != "" {
			fmt.Fprintf(&b, " to %s", cmd.Target)
		}
	default:
		fmt.Fprintf(&b, "Unknown command %q", cmd.Intent)
	}

	if s := cmd.Schedule; s != nil {
		switch {
		case s.Time != "":
			fmt.Fprintf(&b, " at %s", s.Time)
		case s.OffsetMinutes > 0:
			fmt.Fprintf(&b, " %d min after %s", s.OffsetMinutes, s.Event)
		case s.OffsetMinutes < 0:
			fmt.Fprintf(&b, " %d min before %s", -s.OffsetMinutes, s.Event)
		default:
			fmt.Fprintf(&b, " at %s", s.Event)
		}
		if r, ok := s.Recurrence.(string); ok && r != "" {
			fmt.Fprintf(&b, " (%s)", r)
		}
	}
	return b.String()
}
