// Package nlp executes commands produced by an external natural-language
// parser.
//
// The parser itself lives outside this process; it hands over a
// ParsedCommand whose intent is one of light.on, light.off,
// light.brightness or scene.apply. Immediate commands are dispatched as a
// single correlated batch. Commands carrying a schedule become schedule
// candidates and go through the conflict service unconfirmed, so any
// conflict is reported back to the caller instead of being saved.
package nlp
