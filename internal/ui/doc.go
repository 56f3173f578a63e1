// Package ui renders shell command lifecycle events for people reading a console.
//
// Detailed telemetry keeps flowing through structured loggers when the console
// format is not selected.
package ui
