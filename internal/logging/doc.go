// Package logging configures slog loggers for the daemon and CLI and provides
// attribute helpers shared across components.
package logging
