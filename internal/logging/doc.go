// Package logging assembles structured slog loggers and formatting helpers used
// across the SAM daemon and CLI.
//
// It owns the console/JSON handlers and centralizes level and output plumbing.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail, plus file retention used for logs and database backups.
package logging
