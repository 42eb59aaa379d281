package schedule

import (
	"iter"
	"time"
)

// Default occurrence window widths.
const (
	DefaultGraceWindow    = 2 * time.Minute
	DefaultSunGraceWindow = 10 * time.Minute
	DefaultHorizon        = 14 * 24 * time.Hour
)

// SunTimes supplies sunrise and sunset instants.
type SunTimes interface {
	// SunEventTime returns the instant of event on date's calendar day,
	// or ErrNoSunEvent when it does not occur.
	SunEventTime(date time.Time, event SunEvent) (time.Time, error)
}

// NormalizerConfig configures a Normalizer.
type NormalizerConfig struct {
	// Location is the site time zone triggers are evaluated in.
	Location *time.Location
	// Grace is the window width for time triggers.
	Grace time.Duration
	// SunGrace is the window width for sun triggers. It is wider to cover
	// the sun-time source's accuracy.
	SunGrace time.Duration
}

// Normalizer turns triggers into concrete occurrence windows.
type Normalizer struct {
	loc      *time.Location
	grace    time.Duration
	sunGrace time.Duration
	sun      SunTimes
}

// NewNormalizer creates a normalizer. sun may be nil, in which case sun
// triggers never occur.
func NewNormalizer(cfg NormalizerConfig, sun SunTimes) *Normalizer {
	n := &Normalizer{
		loc:      cfg.Location,
		grace:    cfg.Grace,
		sunGrace: cfg.SunGrace,
		sun:      sun,
	}
	if n.loc == nil {
		n.loc = time.UTC
	}
	if n.grace <= 0 {
		n.grace = DefaultGraceWindow
	}
	if n.sunGrace <= 0 {
		n.sunGrace = DefaultSunGraceWindow
	}
	return n
}

// Location returns the site time zone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Occurrences yields, in order, every window whose start lies in
// [from, from+horizon). The sequence is lazy and finite. Invalid triggers
// and days without a sun event yield nothing.
func (n *Normalizer) Occurrences(t Trigger, from time.Time, horizon time.Duration) iter.Seq[Window] {
	return func(yield func(Window) bool) {
		if horizon <= 0 || t.Validate() != nil {
			return
		}
		from = from.In(n.loc)
		until := from.Add(horizon)

		// Sun offsets can move an occurrence onto the neighbouring day.
		day := time.Date(from.Year(), from.Month(), from.Day()-1, 0, 0, 0, 0, n.loc)
		for !day.After(until) {
			if t.RunsOn(day.Weekday()) {
				start, ok := n.instant(t, day)
				if ok && !start.Before(from) && start.Before(until) {
					if !yield(Window{Start: start, End: start.Add(n.width(t))}) {
						return
					}
				}
			}
			day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, n.loc)
		}
	}
}

// Windows collects Occurrences into a slice.
func (n *Normalizer) Windows(t Trigger, from time.Time, horizon time.Duration) []Window {
	var out []Window
	for w := range n.Occurrences(t, from, horizon) {
		out = append(out, w)
	}
	return out
}

// instant computes the fire time on day.
func (n *Normalizer) instant(t Trigger, day time.Time) (time.Time, bool) {
	switch t.Kind {
	case TriggerTime:
		h, m, s, err := ParseTimeOfDay(t.At)
		if err != nil {
			return time.Time{}, false
		}
		return time.Date(day.Year(), day.Month(), day.Day(), h, m, s, 0, n.loc), true
	case TriggerSun:
		if n.sun == nil {
			return time.Time{}, false
		}
		at, err := n.sun.SunEventTime(day, t.Event)
		if err != nil {
			return time.Time{}, false
		}
		return at.In(n.loc).Add(time.Duration(t.OffsetMinutes) * time.Minute), true
	}
	return time.Time{}, false
}

func (n *Normalizer) width(t Trigger) time.Duration {
	if t.Kind == TriggerSun {
		return n.sunGrace
	}
	return n.grace
}
