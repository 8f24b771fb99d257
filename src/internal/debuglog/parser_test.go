package debuglog

import (
	"strings"
	"testing"

	"lglsync/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseLines(t *testing.T, input string, query Query) []core.LogEntry {
	t.Helper()
	parser := NewParser(query)
	for _, line := range strings.Split(input, "\n") {
		parser.Feed(line)
	}
	return parser.Finish()
}

func TestParser_SingleLineEntries(t *testing.T) {
	input := "[2026-08-20 10:00:00] [INFO] Sync started\n" +
		"[2026-08-20 10:00:01] [ERROR] API request failed\n" +
		"[2026-08-20 10:00:02] [DEBUG] Done"

	entries := parseLines(t, input, Query{})
	require.Len(t, entries, 3)

	assert.Equal(t, "INFO", entries[0].Level)
	assert.Equal(t, "Sync started", entries[0].Message)
	assert.Equal(t, "2026-08-20 10:00:00", entries[0].Timestamp)
	assert.Equal(t, "ERROR", entries[1].Level)
	assert.Equal(t, "DEBUG", entries[2].Level)
	assert.False(t, entries[0].Time.IsZero())
}

func TestParser_StructuredDump(t *testing.T) {
	input := strings.Join([]string{
		"[2026-08-20 10:00:00] [INFO] Constituent payload:",
		"{",
		`    "first_name": "Ada",`,
		`    "emails": [`,
		`        "ada@example.org"`,
		"    ]",
		"}",
		"",
		"[2026-08-20 10:00:05] [DEBUG] Next entry",
	}, "\n")

	entries := parseLines(t, input, Query{})
	require.Len(t, entries, 2)

	want := strings.Join([]string{
		"Constituent payload:",
		"{",
		`    "first_name": "Ada",`,
		`    "emails": [`,
		`        "ada@example.org"`,
		"    ]",
		"}",
	}, "\n")
	assert.Equal(t, want, entries[0].Message)
	assert.Equal(t, "Next entry", entries[1].Message)
}

func TestParser_PHPStyleArrayDump(t *testing.T) {
	input := strings.Join([]string{
		"[2026-08-20 10:00:00] [DEBUG] Order line items: Array",
		"(",
		"    [0] => Array",
		"        (",
		"            [product_id] => 42",
		"        )",
		"",
		")",
		"",
		"[2026-08-20 10:00:01] [INFO] after",
	}, "\n")

	entries := parseLines(t, input, Query{})
	require.Len(t, entries, 2)

	// The blank line inside the open structure is preserved verbatim;
	// the blank line after the closing paren terminates the entry.
	assert.Contains(t, entries[0].Message, "[product_id] => 42")
	assert.Contains(t, entries[0].Message, ")\n\n)")
	assert.False(t, strings.HasSuffix(entries[0].Message, "\n"))
	assert.Equal(t, "after", entries[1].Message)
}

func TestParser_BlankLineTerminatesEntry(t *testing.T) {
	input := strings.Join([]string{
		"[2026-08-20 10:00:00] [INFO] first",
		"",
		"[2026-08-20 10:00:01] [INFO] second",
	}, "\n")

	entries := parseLines(t, input, Query{})
	require.Len(t, entries, 2)
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "second", entries[1].Message)
}

func TestParser_UnbalancedDelimiterNeverCrashes(t *testing.T) {
	t.Run("UnclosedStructureRunsToNextHeader", func(t *testing.T) {
		input := strings.Join([]string{
			"[2026-08-20 10:00:00] [ERROR] Response body: {",
			`    "truncated": true,`,
			"",
			"still inside",
			"[2026-08-20 10:00:09] [INFO] recovered",
		}, "\n")

		entries := parseLines(t, input, Query{})
		require.Len(t, entries, 2)
		assert.Contains(t, entries[0].Message, "still inside")
		assert.Contains(t, entries[0].Message, "\n\n")
		assert.Equal(t, "recovered", entries[1].Message)
	})

	t.Run("UnclosedStructureRunsToEOF", func(t *testing.T) {
		input := strings.Join([]string{
			"[2026-08-20 10:00:00] [ERROR] Dump: [",
			`    "a",`,
		}, "\n")

		entries := parseLines(t, input, Query{})
		require.Len(t, entries, 1)
		assert.Equal(t, "Dump: [\n    \"a\",", entries[0].Message)
	})

	t.Run("ExcessClosersClampDepth", func(t *testing.T) {
		input := strings.Join([]string{
			"[2026-08-20 10:00:00] [WARNING] odd:",
			")",
			")",
			"}",
			"[2026-08-20 10:00:01] [INFO] next",
		}, "\n")

		entries := parseLines(t, input, Query{})
		require.Len(t, entries, 2)
		assert.Equal(t, "odd:\n)\n)\n}", entries[0].Message)
	})
}

func TestParser_LevelFilterAtFlushTime(t *testing.T) {
	input := strings.Join([]string{
		"[2026-08-20 10:00:00] [INFO] keep me out:",
		"{",
		`    "note": "ERROR appears inside a filtered entry"`,
		"}",
		"",
		"[2026-08-20 10:00:01] [ERROR] real failure",
	}, "\n")

	entries := parseLines(t, input, Query{Level: "ERROR"})
	require.Len(t, entries, 1)
	assert.Equal(t, "real failure", entries[0].Message)
}

func TestParser_SearchIsCaseInsensitive(t *testing.T) {
	input := strings.Join([]string{
		"[2026-08-20 10:00:00] [INFO] Membership created",
		"[2026-08-20 10:00:01] [INFO] donation recorded",
	}, "\n")

	entries := parseLines(t, input, Query{Search: "MEMBERSHIP"})
	require.Len(t, entries, 1)
	assert.Equal(t, "Membership created", entries[0].Message)
}

func TestParser_GarbageInput(t *testing.T) {
	t.Run("LeadingGarbageDiscarded", func(t *testing.T) {
		input := strings.Join([]string{
			"random noise",
			"more noise",
			"[2026-08-20 10:00:00] [INFO] real entry",
		}, "\n")

		entries := parseLines(t, input, Query{})
		require.Len(t, entries, 1)
		assert.Equal(t, "real entry", entries[0].Message)
	})

	t.Run("UnclassifiableLineFinalizesEntry", func(t *testing.T) {
		input := strings.Join([]string{
			"[2026-08-20 10:00:00] [INFO] plain message",
			"stray line that is not a continuation",
			"[2026-08-20 10:00:01] [INFO] next",
		}, "\n")

		entries := parseLines(t, input, Query{})
		require.Len(t, entries, 2)
		assert.Equal(t, "plain message", entries[0].Message)
		assert.Equal(t, "next", entries[1].Message)
	})

	t.Run("EmptyInput", func(t *testing.T) {
		entries := parseLines(t, "", Query{})
		assert.Empty(t, entries)
	})

	t.Run("ArbitraryBinaryNeverPanics", func(t *testing.T) {
		parser := NewParser(Query{})
		parser.Feed("\x00\x01\x02{{{{[[[")
		parser.Feed("]]]}}}}}}}})))")
		parser.Feed("[not-a-timestamp] [NOPE] x")
		assert.NotPanics(t, func() { parser.Finish() })
	})
}

func TestParser_UnknownLevelIsNotAHeader(t *testing.T) {
	// TRACE is not in the level enum, so the line cannot start an
	// entry; outside any entry it is discarded.
	input := strings.Join([]string{
		"[2026-08-20 10:00:00] [TRACE] nope",
		"[2026-08-20 10:00:01] [WARNING] real",
	}, "\n")

	entries := parseLines(t, input, Query{})
	require.Len(t, entries, 1)
	assert.Equal(t, "WARNING", entries[0].Level)
}

func TestParser_EmitterStreamsEntries(t *testing.T) {
	var got []core.LogEntry
	parser := NewEmitter(func(entry core.LogEntry) {
		got = append(got, entry)
	})

	parser.Feed("[2026-08-20 10:00:00] [INFO] one")
	assert.Empty(t, got, "entry must not emit before a terminator")

	parser.Feed("[2026-08-20 10:00:01] [INFO] two")
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Message)
	assert.True(t, parser.HasPending())

	parser.Flush()
	require.Len(t, got, 2)
	assert.False(t, parser.HasPending())
}
