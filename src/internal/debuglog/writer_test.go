package debuglog

import (
	"path/filepath"
	"strings"
	"testing"

	"lglsync/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWriter(t *testing.T, format string, enabled bool) *Logger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "debug.log")
	l, err := NewLogger(path, format, enabled, log.NewLogger())
	require.NoError(t, err)
	return l
}

func TestNewLogger(t *testing.T) {
	t.Run("DefaultsToTextFormat", func(t *testing.T) {
		l := newWriter(t, "", true)
		assert.Equal(t, FormatText, l.Format())
	})

	t.Run("RejectsUnknownFormat", func(t *testing.T) {
		_, err := NewLogger(filepath.Join(t.TempDir(), "x.log"), "xml", true, log.NewLogger())
		require.Error(t, err)
	})

	t.Run("CreatesParentDirectories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "nested", "debug.log")
		l, err := NewLogger(path, FormatText, true, log.NewLogger())
		require.NoError(t, err)
		l.Info("hello")
		assert.Greater(t, l.Size(), int64(0))
	})
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, format := range []string{FormatText, FormatJSONL} {
		t.Run(format, func(t *testing.T) {
			l := newWriter(t, format, true)

			l.Info("sync started")
			l.Error("lgl request failed")
			l.Info("sync finished")

			entries, err := Read(l.Path(), l.Format(), Query{})
			require.NoError(t, err)
			require.Len(t, entries, 3)

			// Newest first
			assert.Equal(t, "sync finished", entries[0].Message)
			assert.Equal(t, "lgl request failed", entries[1].Message)
			assert.Equal(t, "sync started", entries[2].Message)

			assert.Equal(t, core.LevelInfo, entries[0].Level)
			assert.Equal(t, core.LevelError, entries[1].Level)
			assert.NotEmpty(t, entries[0].Timestamp)
		})
	}
}

func TestWriteWithData(t *testing.T) {
	payload := map[string]any{"order_id": "1001", "total": "25.00"}

	for _, format := range []string{FormatText, FormatJSONL} {
		t.Run(format, func(t *testing.T) {
			l := newWriter(t, format, true)
			l.InfoWithData("payload received", payload)

			entries, err := Read(l.Path(), l.Format(), Query{})
			require.NoError(t, err)
			require.Len(t, entries, 1)

			// The dump folds into the message with embedded newlines
			msg := entries[0].Message
			assert.True(t, strings.HasPrefix(msg, "payload received"), "got: %q", msg)
			assert.Contains(t, msg, `"order_id"`)
			assert.Contains(t, msg, `"1001"`)
			assert.Contains(t, msg, "\n")
		})
	}
}

func TestQueryFilters(t *testing.T) {
	l := newWriter(t, FormatJSONL, true)
	l.Debug("connection opened")
	l.Info("constituent matched")
	l.Error("gift rejected")
	l.Error("membership rejected")

	t.Run("LevelIsCaseInsensitive", func(t *testing.T) {
		entries, err := Read(l.Path(), l.Format(), Query{Level: "error"})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "membership rejected", entries[0].Message)
	})

	t.Run("SearchMatchesSubstring", func(t *testing.T) {
		entries, err := Read(l.Path(), l.Format(), Query{Search: "REJECTED"})
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("LimitAppliesAfterReversal", func(t *testing.T) {
		entries, err := Read(l.Path(), l.Format(), Query{Limit: 1})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "membership rejected", entries[0].Message)
	})

	t.Run("FilterRunsBeforeLimit", func(t *testing.T) {
		// The newest entry does not match; a limit applied before the
		// filter would cut off the older of the two errors.
		l.Info("status heartbeat")

		entries, err := Read(l.Path(), l.Format(), Query{Level: "ERROR", Limit: 2})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "membership rejected", entries[0].Message)
		assert.Equal(t, "gift rejected", entries[1].Message)
	})
}

func TestDisabledWriter(t *testing.T) {
	l := newWriter(t, FormatText, false)

	l.Info("should not land")
	assert.Zero(t, l.Size())

	l.SetEnabled(true)
	l.Info("should land")
	assert.Greater(t, l.Size(), int64(0))

	entries, err := Read(l.Path(), l.Format(), Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "should land", entries[0].Message)
}

func TestClear(t *testing.T) {
	l := newWriter(t, FormatText, true)

	l.Info("first")
	require.Greater(t, l.Size(), int64(0))

	require.NoError(t, l.Clear())
	assert.Zero(t, l.Size())

	entries, err := Read(l.Path(), l.Format(), Query{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Clearing a missing file is not an error
	fresh := newWriter(t, FormatText, true)
	assert.NoError(t, fresh.Clear())
}

func TestReadMissingFile(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "absent.log"), FormatText, Query{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadSniffsJSONLExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.jsonl")
	l, err := NewLogger(path, FormatJSONL, true, log.NewLogger())
	require.NoError(t, err)
	l.Info("jsonl entry")

	// Empty format falls back to the file extension
	entries, err := Read(path, "", Query{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "jsonl entry", entries[0].Message)
}
