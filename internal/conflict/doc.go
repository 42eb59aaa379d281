// Package conflict detects and resolves clashes between lighting schedules.
//
// Before a schedule is saved, its occurrence windows over the detection
// horizon are compared with those of every enabled schedule. Two schedules
// conflict when they share devices and either fire together or have
// near-identical triggers:
//
//	BLOCKING  windows overlap, shared devices, contradictory effects
//	WARNING   windows overlap, shared devices, compatible effects
//	INFO      no overlap, similar triggers, shared devices
//
// Each conflict carries resolutions in a fixed order (disable_other, a
// shift of the candidate's trigger, narrow_target). The Service remembers
// checked candidates for a short TTL so a resolution can be applied by ID.
package conflict
