package debuglog

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"time"

	"lglsync/src/internal/core"
)

// Read parses the debug log at path and returns entries matching the
// query, most recent first, truncated to the query limit. The order of
// operations is fixed: filter at flush time, then reverse, then limit.
// Format "jsonl" selects line-delimited JSON decoding, "text" the text
// parser; an empty format follows the file extension.
//
// A missing or unreadable file yields an empty result and no error;
// reading is idempotent and side-effect free.
func Read(path, format string, query Query) ([]core.LogEntry, error) {
	if format == "" && strings.HasSuffix(path, ".jsonl") {
		format = "jsonl"
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil
	}
	defer file.Close()

	var entries []core.LogEntry
	if format == "jsonl" {
		entries = readJSONL(file, query)
	} else {
		parser := NewParser(query)
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			parser.Feed(scanner.Text())
		}
		// A scanner error mid-file still yields everything parsed so
		// far; the read stays best effort.
		entries = parser.Finish()
	}

	reverse(entries)
	if query.Limit > 0 && len(entries) > query.Limit {
		entries = entries[:query.Limit]
	}
	return entries, nil
}

func readJSONL(file *os.File, query Query) []core.LogEntry {
	var entries []core.LogEntry

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry, ok := decodeJSONLine(scanner.Bytes())
		if !ok {
			continue
		}
		if query.matches(entry) {
			entries = append(entries, entry)
		}
	}
	return entries
}

// decodeJSONLine converts one jsonl line into a LogEntry. A structured
// payload is folded into the message the same way the text dump reads,
// so both formats render identically in the log view.
func decodeJSONLine(line []byte) (core.LogEntry, bool) {
	if len(line) == 0 {
		return core.LogEntry{}, false
	}

	var raw jsonlEntry
	if err := json.Unmarshal(line, &raw); err != nil || raw.Message == "" && raw.Level == "" {
		return core.LogEntry{}, false
	}

	entry := core.LogEntry{
		Level:   strings.ToUpper(raw.Level),
		Message: raw.Message,
	}
	if t, err := time.Parse(time.RFC3339Nano, raw.Time); err == nil {
		entry.Time = t
		entry.Timestamp = t.Format(core.DebugTimeFormat)
	} else {
		entry.Timestamp = raw.Time
	}

	if len(raw.Data) > 0 {
		var data any
		if err := json.Unmarshal(raw.Data, &data); err == nil {
			if dump, err := json.MarshalIndent(data, "", "    "); err == nil {
				entry.Message += "\n" + string(dump)
			}
		}
	}
	return entry, true
}

func reverse(entries []core.LogEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}
