package format

import (
	"fmt"
	"strings"

	"lglsync/src/internal/core"
)

// TextFormatter renders entries in the debug log's own header layout,
// so tail clients see the same lines the file holds.
type TextFormatter struct{}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

// Format renders the entry header followed by the message. Continuation
// lines embedded in the message are emitted verbatim.
func (f *TextFormatter) Format(entry core.LogEntry) ([]byte, error) {
	ts := entry.Timestamp
	if ts == "" {
		ts = entry.Time.Format(core.DebugTimeFormat)
	}
	level := entry.Level
	if level == "" {
		level = core.LevelInfo
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s", ts, level, entry.Message)
	if !strings.HasSuffix(entry.Message, "\n") {
		b.WriteByte('\n')
	}
	return []byte(b.String()), nil
}

// Name returns the formatter's type name.
func (f *TextFormatter) Name() string {
	return "text"
}
