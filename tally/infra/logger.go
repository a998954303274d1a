package infra

import "log/slog"

const logModule = "tally/infra"

// resolveLogger garante um logger não-nil para os adaptadores.
func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
