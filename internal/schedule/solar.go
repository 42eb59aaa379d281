package schedule

import (
	"fmt"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// SolarClock computes sunrise and sunset from the site's coordinates.
type SolarClock struct {
	latitude  float64
	longitude float64
}

// NewSolarClock creates a sun-time source for the given coordinates.
func NewSolarClock(latitude, longitude float64) *SolarClock {
	return &SolarClock{latitude: latitude, longitude: longitude}
}

// SunEventTime implements SunTimes. The result is in date's location.
func (c *SolarClock) SunEventTime(date time.Time, event SunEvent) (time.Time, error) {
	rise, set := sunrise.SunriseSunset(c.latitude, c.longitude, date.Year(), date.Month(), date.Day())

	var at time.Time
	switch event {
	case Sunrise:
		at = rise
	case Sunset:
		at = set
	default:
		return time.Time{}, fmt.Errorf("%w: unknown sun event %q", ErrInvalidTrigger, event)
	}
	if at.IsZero() {
		return time.Time{}, ErrNoSunEvent
	}
	return at.In(date.Location()), nil
}
