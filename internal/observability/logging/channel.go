// Package logging binds slog loggers to named channels.
package logging

import "log/slog"

// Channel names used across the pipeline.
const (
	ChannelAuth    = "auth"
	ChannelSession = "session"
	ChannelCSRF    = "csrf"
	ChannelHTTP    = "http"
)

// Channel returns logger tagged with channel. A nil logger yields slog.Default.
func Channel(logger *slog.Logger, channel string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("channel", channel)
}
