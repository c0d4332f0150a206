package keel

// Logger defines the interface for application logging. The kernel and all
// modules log through this interface using structured key-value pairs:
//
//	logger.Info("module initialized", "module", "database")
//
// The signature is compatible with log/slog, so an application can satisfy
// it with a thin wrapper around *slog.Logger.
type Logger interface {
	// Info logs an informational message with optional key-value pairs.
	Info(msg string, args ...any)

	// Error logs an error message with optional key-value pairs.
	Error(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, args ...any)

	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, args ...any)
}
