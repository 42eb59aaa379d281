package schedule

import (
	"fmt"
	"strings"
	"time"
)

// weekdayNames maps three-letter abbreviations and full names to days.
var weekdayNames = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday, 14)
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		m[full] = d
		m[full[:3]] = d
	}
	return m
}()

// maxOffsetMinutes bounds sun trigger offsets to half a day either way.
const maxOffsetMinutes = 12 * 60

// ParseWeekday accepts a three-letter abbreviation or a full day name in
// any case: "mon", "Monday", "MONDAY".
func ParseWeekday(name string) (time.Weekday, error) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidTrigger, name)
	}
	return day, nil
}

// ParseTimeOfDay parses HH:MM or HH:MM:SS into hour, minute and second.
func ParseTimeOfDay(s string) (hour, minute, second int, err error) {
	layout := "15:04:05"
	if len(s) == len("15:04") {
		layout = "15:04"
	}
	t, perr := time.Parse(layout, s)
	if perr != nil {
		return 0, 0, 0, fmt.Errorf("%w: time %q must be HH:MM or HH:MM:SS", ErrInvalidTrigger, s)
	}
	return t.Hour(), t.Minute(), t.Second(), nil
}

// FormatTimeOfDay renders a time of day as HH:MM, or HH:MM:SS when
// seconds are set.
func FormatTimeOfDay(hour, minute, second int) string {
	if second != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hour, minute, second)
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// ShiftTimeOfDay adds minutes to an HH:MM[:SS] value, wrapping at midnight.
func ShiftTimeOfDay(at string, minutes int) (string, error) {
	h, m, s, err := ParseTimeOfDay(at)
	if err != nil {
		return "", err
	}
	total := ((h*60+m+minutes)%(24*60) + 24*60) % (24 * 60)
	return FormatTimeOfDay(total/60, total%60, s), nil
}

// Validate checks the trigger's variant fields.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerTime:
		if _, _, _, err := ParseTimeOfDay(t.At); err != nil {
			return err
		}
	case TriggerSun:
		if t.Event != Sunrise && t.Event != Sunset {
			return fmt.Errorf("%w: sun event must be sunrise or sunset, got %q", ErrInvalidTrigger, t.Event)
		}
		if t.OffsetMinutes < -maxOffsetMinutes || t.OffsetMinutes > maxOffsetMinutes {
			return fmt.Errorf("%w: offset %d outside ±%d minutes", ErrInvalidTrigger, t.OffsetMinutes, maxOffsetMinutes)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTrigger, t.Kind)
	}
	_, err := t.weekdaySet()
	return err
}

// RunsOn reports whether the trigger is active on day. Invalid weekday
// names never match.
func (t Trigger) RunsOn(day time.Weekday) bool {
	set, err := t.weekdaySet()
	if err != nil {
		return false
	}
	return set == nil || set[day]
}

// SharesWeekday reports whether both triggers can fire on a common day.
func (t Trigger) SharesWeekday(o Trigger) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if t.RunsOn(d) && o.RunsOn(d) {
			return true
		}
	}
	return false
}

// weekdaySet returns nil for every day.
func (t Trigger) weekdaySet() (map[time.Weekday]bool, error) {
	if len(t.Weekdays) == 0 {
		return nil, nil //nolint:nilnil // nil set means every day
	}
	set := make(map[time.Weekday]bool, len(t.Weekdays))
	for _, name := range t.Weekdays {
		d, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		set[d] = true
	}
	return set, nil
}

// String renders the trigger for descriptions and logs.
func (t Trigger) String() string {
	var s string
	switch t.Kind {
	case TriggerTime:
		s = "at " + t.At
	case TriggerSun:
		switch {
		case t.OffsetMinutes > 0:
			s = fmt.Sprintf("%d min after %s", t.OffsetMinutes, t.Event)
		case t.OffsetMinutes < 0:
			s = fmt.Sprintf("%d min before %s", -t.OffsetMinutes, t.Event)
		default:
			s = "at " + string(t.Event)
		}
	default:
		return string(t.Kind)
	}
	if len(t.Weekdays) > 0 {
		s += " on " + strings.Join(t.Weekdays, ",")
	} else {
		s += " daily"
	}
	return s
}
