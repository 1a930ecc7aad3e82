package logging

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the logging verbosity level
type Level int

const (
	// LevelNormal shows INFO and above (default)
	LevelNormal Level = 0
	// LevelVerbose shows DEBUG and above (-v)
	LevelVerbose Level = 1
	// LevelTrace also logs backend HTTP headers (-vv)
	LevelTrace Level = 2
)

// maxJSONLen caps payloads logged through ToJSON
const maxJSONLen = 2000

var currentLevel Level

// Logger is the global zerolog logger instance
var Logger zerolog.Logger

// Setup initializes zerolog with a console writer to stderr. Stdout is
// left alone because the stdio MCP transport owns it.
//   - 0: INFO and above (default)
//   - 1: DEBUG and above (-v)
//   - 2+: DEBUG and above with HTTP headers (-vv)
func Setup(level Level) {
	SetupWithWriter(level, zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})
}

// SetupWithWriter is Setup with a caller-chosen output, e.g. JSON lines
// into a buffer in tests.
func SetupWithWriter(level Level, w io.Writer) {
	currentLevel = level

	zerologLevel := zerolog.InfoLevel
	if level >= LevelVerbose {
		zerologLevel = zerolog.DebugLevel
	}

	Logger = zerolog.New(w).
		Level(zerologLevel).
		With().
		Timestamp().
		Str("service", "lift-mcp").
		Logger()
}

// GetLevel returns the current logging level
func GetLevel() Level {
	return currentLevel
}

// IsVerbose returns true if verbose/debug logging is enabled
func IsVerbose() bool {
	return currentLevel >= LevelVerbose
}

// IsTraceEnabled returns true if HTTP header logging is enabled
func IsTraceEnabled() bool {
	return currentLevel >= LevelTrace
}

// ForUser returns a child logger tagged with the user id
func ForUser(userID string) zerolog.Logger {
	return Logger.With().Str("user_id", userID).Logger()
}

// ToJSON converts any value to JSON string for debug logging
func ToJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "<marshal error>"
	}
	s := string(b)
	if len(s) > maxJSONLen {
		return s[:maxJSONLen] + "...(truncated)"
	}
	return s
}

// LeveledLogger implements retryablehttp.LeveledLogger using zerolog
type LeveledLogger struct{}

func (l *LeveledLogger) Error(msg string, keysAndValues ...any) {
	Error(msg, keysAndValues...)
}

func (l *LeveledLogger) Info(msg string, keysAndValues ...any) {
	Info(msg, keysAndValues...)
}

// Debug is demoted from retryablehttp's per-request chatter unless -vv is set
func (l *LeveledLogger) Debug(msg string, keysAndValues ...any) {
	if IsTraceEnabled() {
		Debug(msg, keysAndValues...)
	}
}

func (l *LeveledLogger) Warn(msg string, keysAndValues ...any) {
	Warn(msg, keysAndValues...)
}

// Info logs at info level with key-value pairs (slog-compatible API)
func Info(msg string, keysAndValues ...any) {
	Logger.Info().Fields(keysAndValues).Msg(msg)
}

// Debug logs at debug level with key-value pairs (slog-compatible API)
func Debug(msg string, keysAndValues ...any) {
	Logger.Debug().Fields(keysAndValues).Msg(msg)
}

// Warn logs at warn level with key-value pairs (slog-compatible API)
func Warn(msg string, keysAndValues ...any) {
	Logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Error logs at error level with key-value pairs (slog-compatible API)
func Error(msg string, keysAndValues ...any) {
	Logger.Error().Fields(keysAndValues).Msg(msg)
}
