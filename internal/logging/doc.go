// Package logging builds the slog loggers used across shelfmark and defines
// the standardized structured field names shared by the daemon, workflow
// manager, and pipeline stages.
package logging
