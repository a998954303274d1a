package tally

import "log/slog"

// resolveLogger garante um logger não-nil para workers e agregador.
func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
