package format

import (
	"encoding/json"
	"fmt"

	"lglsync/src/internal/core"
)

// JSONFormatter produces one JSON object per entry, newline terminated.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format transforms a single entry into a JSON line.
func (f *JSONFormatter) Format(entry core.LogEntry) ([]byte, error) {
	if entry.Level == "" {
		entry.Level = core.LevelInfo
	}
	if entry.Timestamp == "" && !entry.Time.IsZero() {
		entry.Timestamp = entry.Time.Format(core.DebugTimeFormat)
	}

	buf, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(buf, '\n'), nil
}

// Name returns the formatter's type name.
func (f *JSONFormatter) Name() string {
	return "json"
}
