package format

import (
	"fmt"

	"lglsync/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter transforms a debug log entry into its wire representation.
type Formatter interface {
	Format(entry core.LogEntry) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// New creates a formatter by name. An empty name selects text.
func New(name string, logger *log.Logger) (Formatter, error) {
	if name == "" {
		name = "text"
	}

	var f Formatter
	switch name {
	case "json":
		f = NewJSONFormatter()
	case "text":
		f = NewTextFormatter()
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", name)
	}

	logger.Debug("msg", "Formatter created",
		"component", "format",
		"name", f.Name())
	return f, nil
}
