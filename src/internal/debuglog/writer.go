package debuglog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lglsync/src/internal/core"

	"github.com/lixenwraith/log"
)

// Entry formats
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

// Logger appends entries to the integration debug log: the flat,
// human-oriented file the admin log viewer reads back. It is distinct
// from the service's own structured log.
//
// In text format each entry starts with a header line
// `[2006-01-02 15:04:05] [LEVEL] message`; a structured payload is
// written as pretty-printed JSON on continuation lines after a header
// whose message ends with `:`, followed by a blank line. In jsonl
// format each entry is one JSON object per line.
type Logger struct {
	path    string
	format  string
	enabled atomic.Bool

	mu     sync.Mutex
	logger *log.Logger
}

// NewLogger creates a debug log writer. Directories on the path are
// created eagerly; the file itself is created on first write.
func NewLogger(path, format string, enabled bool, logger *log.Logger) (*Logger, error) {
	if format == "" {
		format = FormatText
	}
	if format != FormatText && format != FormatJSONL {
		return nil, fmt.Errorf("unknown debug log format: %s", format)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create debug log directory: %w", err)
	}

	l := &Logger{
		path:   path,
		format: format,
		logger: logger,
	}
	l.enabled.Store(enabled)
	return l, nil
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// Format returns the configured entry format.
func (l *Logger) Format() string {
	return l.format
}

// SetEnabled toggles writing. Reads are unaffected.
func (l *Logger) SetEnabled(enabled bool) {
	l.enabled.Store(enabled)
}

func (l *Logger) Debug(msg string)   { l.write(core.LevelDebug, msg, nil) }
func (l *Logger) Info(msg string)    { l.write(core.LevelInfo, msg, nil) }
func (l *Logger) Warning(msg string) { l.write(core.LevelWarning, msg, nil) }
func (l *Logger) Error(msg string)   { l.write(core.LevelError, msg, nil) }

func (l *Logger) DebugWithData(msg string, data any)   { l.write(core.LevelDebug, msg, data) }
func (l *Logger) InfoWithData(msg string, data any)    { l.write(core.LevelInfo, msg, data) }
func (l *Logger) WarningWithData(msg string, data any) { l.write(core.LevelWarning, msg, data) }
func (l *Logger) ErrorWithData(msg string, data any)   { l.write(core.LevelError, msg, data) }

func (l *Logger) write(level, msg string, data any) {
	if !l.enabled.Load() {
		return
	}

	var buf []byte
	switch l.format {
	case FormatJSONL:
		buf = l.renderJSON(level, msg, data)
	default:
		buf = l.renderText(level, msg, data)
	}
	if buf == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.logger.Warn("msg", "Failed to open debug log",
			"component", "debuglog",
			"path", l.path,
			"error", err)
		return
	}
	defer file.Close()

	if _, err := file.Write(buf); err != nil {
		l.logger.Warn("msg", "Failed to write debug log entry",
			"component", "debuglog",
			"path", l.path,
			"error", err)
	}
}

func (l *Logger) renderText(level, msg string, data any) []byte {
	var b strings.Builder

	if data != nil {
		// The trailing colon is the sentinel the parser keys on to
		// attach the dump lines that follow.
		if !strings.HasSuffix(strings.TrimRight(msg, " \t"), ":") {
			msg += ":"
		}
	}

	fmt.Fprintf(&b, "[%s] [%s] %s\n", time.Now().Format(core.DebugTimeFormat), level, msg)

	if data != nil {
		dump, err := json.MarshalIndent(data, "", "    ")
		if err != nil {
			l.logger.Warn("msg", "Failed to serialize debug log payload",
				"component", "debuglog",
				"error", err)
		} else {
			b.Write(dump)
			b.WriteByte('\n')
		}
		// Blank line closes the dump for the parser.
		b.WriteByte('\n')
	}

	return []byte(b.String())
}

type jsonlEntry struct {
	Time    string          `json:"time"`
	Level   string          `json:"level"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (l *Logger) renderJSON(level, msg string, data any) []byte {
	entry := jsonlEntry{
		Time:    time.Now().Format(time.RFC3339Nano),
		Level:   level,
		Message: msg,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			l.logger.Warn("msg", "Failed to serialize debug log payload",
				"component", "debuglog",
				"error", err)
		} else {
			entry.Data = raw
		}
	}

	buf, err := json.Marshal(entry)
	if err != nil {
		l.logger.Warn("msg", "Failed to serialize debug log entry",
			"component", "debuglog",
			"error", err)
		return nil
	}
	return append(buf, '\n')
}

// Clear truncates the log file. A missing file is not an error.
func (l *Logger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := os.Truncate(l.path, 0)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear debug log: %w", err)
	}

	l.logger.Info("msg", "Debug log cleared",
		"component", "debuglog",
		"path", l.path)
	return nil
}

// Size returns the log file size in bytes; zero when the file does not
// exist.
func (l *Logger) Size() int64 {
	info, err := os.Stat(l.path)
	if err != nil {
		return 0
	}
	return info.Size()
}
