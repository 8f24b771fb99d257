package debuglog

import (
	"regexp"
	"strings"
	"time"

	"lglsync/src/internal/core"
	"lglsync/src/internal/metrics"
)

// Query filters reconstructed entries. Level must equal the entry's
// level exactly when set; Search is a case-insensitive substring test
// on the message. Limit truncates after filtering and reversal, never
// before.
type Query struct {
	Level  string
	Search string
	Limit  int
}

// matches reports whether an entry passes the level and search filters.
func (q Query) matches(entry core.LogEntry) bool {
	if q.Level != "" && entry.Level != strings.ToUpper(q.Level) {
		return false
	}
	if q.Search != "" && !strings.Contains(strings.ToLower(entry.Message), strings.ToLower(q.Search)) {
		return false
	}
	return true
}

// Parser states. An entry is pending from its header line until a
// terminating signal: the next header, a blank line outside an open
// structure, an unclassifiable line, or end of input.
const (
	stateIdle = iota
	stateInEntry
	stateInStructuredValue
)

// headerPattern matches the first line of an entry:
// [2006-01-02 15:04:05] [LEVEL] message
var headerPattern = regexp.MustCompile(`^\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})\] \[(DEBUG|INFO|WARNING|ERROR)\] (.*)$`)

// Parser reconstructs multi-line debug log entries from a stream of
// lines. Structured dumps spanning several lines are folded back into
// their entry's message with embedded newlines, tracked by a running
// delimiter-depth counter. The parser is best effort: it never fails
// on arbitrary text input, and malformed input at worst loses lines,
// never entries that already flushed.
type Parser struct {
	query Query
	emit  func(core.LogEntry)

	state int
	depth int

	timestamp string
	level     string
	message   strings.Builder

	entries []core.LogEntry
}

// NewParser returns a collecting parser. Entries passing the query
// filters accumulate in file order and are returned by Finish.
func NewParser(query Query) *Parser {
	p := &Parser{query: query, state: stateIdle}
	p.emit = func(entry core.LogEntry) {
		p.entries = append(p.entries, entry)
	}
	return p
}

// NewEmitter returns a streaming parser without filters. Each entry is
// handed to fn the moment it flushes. Used by the live tail.
func NewEmitter(fn func(core.LogEntry)) *Parser {
	return &Parser{emit: fn, state: stateIdle}
}

// Feed processes one line of input.
func (p *Parser) Feed(line string) {
	if m := headerPattern.FindStringSubmatch(line); m != nil {
		p.Flush()
		p.timestamp = m[1]
		p.level = m[2]
		p.message.Reset()
		p.message.WriteString(m[3])
		p.state = stateInEntry
		// An unbalanced opening delimiter in the header message opens
		// a structure immediately; the entry then runs to the next
		// header or end of input.
		p.depth = clampDepth(delimiterBalance(m[3]))
		if p.depth > 0 {
			p.state = stateInStructuredValue
		}
		return
	}

	if p.state == stateIdle {
		// Unparseable lines outside any entry are discarded.
		return
	}

	if strings.TrimSpace(line) == "" {
		if p.depth > 0 {
			// Blank lines inside an open structure are part of the dump.
			p.appendContinuation(line)
			return
		}
		// Blank line outside an open structure terminates the entry
		// and is not appended.
		p.Flush()
		return
	}

	if p.isContinuation(line) {
		p.appendContinuation(line)
		return
	}

	// The line neither starts nor continues an entry. Finalize the
	// pending entry; the line itself is discarded.
	p.Flush()
}

// isContinuation classifies a non-header, non-blank line while an
// entry is pending.
func (p *Parser) isContinuation(line string) bool {
	if p.depth > 0 {
		return true
	}
	if isDelimiterLine(line) {
		return true
	}
	if p.state == stateInStructuredValue && isIndented(line) {
		return true
	}
	if p.state == stateInEntry && hasStructuredSentinel(p.message.String()) {
		return true
	}
	return false
}

func (p *Parser) appendContinuation(line string) {
	p.message.WriteByte('\n')
	p.message.WriteString(line)
	p.depth = clampDepth(p.depth + delimiterBalance(line))
	if p.state == stateInEntry {
		p.state = stateInStructuredValue
	}
}

// Flush finalizes the pending entry, if any. Filters apply here, at
// flush time, so a later continuation line can never resurrect an
// entry that was already filtered out.
func (p *Parser) Flush() {
	if p.state == stateIdle {
		return
	}
	entry := core.LogEntry{
		Timestamp: p.timestamp,
		Level:     p.level,
		Message:   p.message.String(),
	}
	if t, err := time.ParseInLocation(core.DebugTimeFormat, p.timestamp, time.Local); err == nil {
		entry.Time = t
	}

	p.state = stateIdle
	p.depth = 0
	p.message.Reset()

	metrics.ParserEntriesFlushed.Inc()
	if !p.query.matches(entry) {
		metrics.ParserEntriesFiltered.Inc()
		return
	}
	p.emit(entry)
}

// HasPending reports whether an entry is mid-reconstruction. The tail
// watcher uses this to decide when a quiet log's final entry can be
// considered complete.
func (p *Parser) HasPending() bool {
	return p.state != stateIdle
}

// Finish flushes any pending entry and returns the collected entries
// in file order (oldest first).
func (p *Parser) Finish() []core.LogEntry {
	p.Flush()
	return p.entries
}

// isDelimiterLine reports whether the line is exactly one opening or
// closing delimiter, modulo surrounding whitespace and a trailing
// comma.
func isDelimiterLine(line string) bool {
	s := strings.TrimSpace(line)
	s = strings.TrimSuffix(s, ",")
	if len(s) != 1 {
		return false
	}
	return strings.ContainsAny(s, "{}[]()")
}

// isIndented reports whether the line starts with whitespace, the way
// pretty-printed associative structures are laid out.
func isIndented(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

// hasStructuredSentinel reports whether the message signals that a
// structured value follows on subsequent lines.
func hasStructuredSentinel(message string) bool {
	s := strings.TrimRight(message, " \t")
	for _, sentinel := range []string{":", "Array", "Object", "{", "[", "("} {
		if strings.HasSuffix(s, sentinel) {
			return true
		}
	}
	return false
}

// delimiterBalance counts opening minus closing delimiters in a line.
func delimiterBalance(line string) int {
	balance := 0
	for _, r := range line {
		switch r {
		case '{', '[', '(':
			balance++
		case '}', ']', ')':
			balance--
		}
	}
	return balance
}

// clampDepth floors depth at zero. Malformed input that closes more
// than it opened is tolerated, never an error.
func clampDepth(depth int) int {
	if depth < 0 {
		return 0
	}
	return depth
}
