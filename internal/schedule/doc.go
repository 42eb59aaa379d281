// Package schedule models time and sun triggered lighting schedules.
//
// A Trigger fires either at a wall-clock time of day or at an offset from
// sunrise or sunset, optionally restricted to weekdays. The Normalizer
// turns a trigger into concrete occurrence windows in the site time zone:
//
//	Trigger{Kind: "time", At: "22:00"}            → [22:00, 22:02) daily
//	Trigger{Kind: "sun", Event: "sunset", -30}    → [sunset-30m, sunset-20m)
//
// Windows feed both the conflict detector and the Runner, which fires each
// due schedule's actions as a single correlated command batch.
//
// Days on which the sun does not rise or set produce no occurrence.
package schedule
