package core

import "time"

// DebugTimeFormat is the timestamp layout used in debug log entry headers.
const DebugTimeFormat = "2006-01-02 15:04:05"

// Levels recognized in debug log entry headers
const (
	LevelDebug   = "DEBUG"
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Represents a single reconstructed debug log entry. Message holds any
// continuation lines verbatim, joined with embedded newlines.
type LogEntry struct {
	Time      time.Time `json:"time"`
	Timestamp string    `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// KnownLevel reports whether s is one of the recognized header levels.
func KnownLevel(s string) bool {
	switch s {
	case LevelDebug, LevelInfo, LevelWarning, LevelError:
		return true
	}
	return false
}
