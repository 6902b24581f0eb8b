// Package logging assembles structured slog loggers used across satpipe.
//
// It owns the console and JSON handlers, fans one logger out to several
// destinations (terminal plus log file, or a per-run log), and exposes
// context-aware helpers so stage code tags log lines with record IDs,
// pipeline and stage names, and correlation IDs. A no-op logger is provided
// for tests and wiring code that cannot fail.
package logging
