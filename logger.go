package refgraph

import (
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging sets up the package-wide default slog logger with a
// TextHandler, honoring the REFGRAPH_LOG_LEVEL environment variable
// (DEBUG, WARN, ERROR; defaults to INFO), the same LevelVar-plus-env-switch
// shape as SharedCode-sop's ConfigureLogging/SetLogLevel pair. Where SOP's
// logger is a single process-wide sink, a process here may host several
// concurrently running graph instances, so ForInstance below carries an
// InstanceId through every record the way hupe1980-vecgo's Logger.WithID
// carries an operation id.
func ConfigureLogging() {
	logLevel.Set(slog.LevelInfo)

	switch os.Getenv("REFGRAPH_LOG_LEVEL") {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel overrides the level configured by ConfigureLogging.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}

// ForInstance returns the default logger with an instance_id attribute bound
// to every subsequent record, so log lines from multiple graph instances
// sharing one process (and one ConfigureLogging call) can be told apart.
func ForInstance(id InstanceId) *slog.Logger {
	return slog.Default().With("instance_id", id.String())
}
