// Package logging builds the slog handlers the posible binaries log through.
//
// Setup picks a JSON handler for machine consumption or a colorized line
// handler for terminals:
//
//	15:04:05 INF logged in component=session email=a@b.com
//
// Levels are debug, info, warn and error; anything else means info.
package logging
