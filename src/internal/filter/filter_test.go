package filter

import (
	"testing"

	"lglsync/src/internal/config"
	"lglsync/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func TestNew(t *testing.T) {
	logger := newTestLogger()

	t.Run("SuccessWithDefaults", func(t *testing.T) {
		cfg := config.FilterConfig{Patterns: []string{"test"}}
		f, err := New(cfg, logger)
		assert.NoError(t, err)
		assert.NotNil(t, f)
		assert.Equal(t, config.FilterTypeInclude, f.config.Type)
		assert.Equal(t, config.FilterLogicOr, f.config.Logic)
	})

	t.Run("SuccessWithCustomConfig", func(t *testing.T) {
		cfg := config.FilterConfig{
			Type:     config.FilterTypeExclude,
			Logic:    config.FilterLogicAnd,
			Patterns: []string{"test", "pattern"},
		}
		f, err := New(cfg, logger)
		assert.NoError(t, err)
		assert.NotNil(t, f)
		assert.Equal(t, config.FilterTypeExclude, f.config.Type)
		assert.Equal(t, config.FilterLogicAnd, f.config.Logic)
		assert.Len(t, f.patterns, 2)
	})

	t.Run("ErrorInvalidRegex", func(t *testing.T) {
		cfg := config.FilterConfig{Patterns: []string{"["}}
		f, err := New(cfg, logger)
		assert.Error(t, err)
		assert.Nil(t, f)
		assert.Contains(t, err.Error(), "invalid regex pattern")
	})
}

func TestFilter_Apply(t *testing.T) {
	logger := newTestLogger()

	testCases := []struct {
		name     string
		cfg      config.FilterConfig
		entry    core.LogEntry
		expected bool
	}{
		// Include OR logic
		{
			name:     "IncludeOR_MatchOne",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Logic: config.FilterLogicOr, Patterns: []string{"timeout", "refused"}},
			entry:    core.LogEntry{Message: "request timeout after 30s"},
			expected: true,
		},
		{
			name:     "IncludeOR_NoMatch",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Logic: config.FilterLogicOr, Patterns: []string{"timeout", "refused"}},
			entry:    core.LogEntry{Message: "constituent created"},
			expected: false,
		},
		// Include AND logic
		{
			name:     "IncludeAND_MatchAll",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Logic: config.FilterLogicAnd, Patterns: []string{"gift", "membership"}},
			entry:    core.LogEntry{Message: "gift created for membership 12"},
			expected: true,
		},
		{
			name:     "IncludeAND_MatchOne",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Logic: config.FilterLogicAnd, Patterns: []string{"gift", "membership"}},
			entry:    core.LogEntry{Message: "gift created"},
			expected: false,
		},
		// Exclude OR logic
		{
			name:     "ExcludeOR_MatchOne",
			cfg:      config.FilterConfig{Type: config.FilterTypeExclude, Logic: config.FilterLogicOr, Patterns: []string{"heartbeat", "poll"}},
			entry:    core.LogEntry{Message: "heartbeat ok"},
			expected: false,
		},
		{
			name:     "ExcludeOR_NoMatch",
			cfg:      config.FilterConfig{Type: config.FilterTypeExclude, Logic: config.FilterLogicOr, Patterns: []string{"heartbeat", "poll"}},
			entry:    core.LogEntry{Message: "order processed"},
			expected: true,
		},
		// Exclude AND logic
		{
			name:     "ExcludeAND_MatchAll",
			cfg:      config.FilterConfig{Type: config.FilterTypeExclude, Logic: config.FilterLogicAnd, Patterns: []string{"retry", "backoff"}},
			entry:    core.LogEntry{Message: "retry 2 with backoff 1s"},
			expected: false,
		},
		{
			name:     "ExcludeAND_MatchOne",
			cfg:      config.FilterConfig{Type: config.FilterTypeExclude, Logic: config.FilterLogicAnd, Patterns: []string{"retry", "backoff"}},
			entry:    core.LogEntry{Message: "retry 2"},
			expected: true,
		},
		// Edge cases
		{
			name:     "NoPatterns",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Patterns: []string{}},
			entry:    core.LogEntry{Message: "any message"},
			expected: true,
		},
		{
			name:     "EmptyEntry_NoPatterns",
			cfg:      config.FilterConfig{Patterns: []string{}},
			entry:    core.LogEntry{},
			expected: true,
		},
		{
			name:     "EmptyEntry_DoesNotMatchSpace",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Patterns: []string{" "}},
			entry:    core.LogEntry{Level: "", Message: ""},
			expected: false,
		},
		{
			name:     "MatchOnLevel",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Patterns: []string{"ERROR"}},
			entry:    core.LogEntry{Level: core.LevelError, Message: "a message"},
			expected: true,
		},
		{
			name:     "MatchOnLevelPrefix",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Patterns: []string{"^WARNING request"}},
			entry:    core.LogEntry{Level: core.LevelWarning, Message: "request failed"},
			expected: true,
		},
		{
			name:     "MatchInsideStructuredDump",
			cfg:      config.FilterConfig{Type: config.FilterTypeInclude, Patterns: []string{`"constituent_id": 42`}},
			entry:    core.LogEntry{Level: core.LevelInfo, Message: "payload received:\n{\n    \"constituent_id\": 42\n}"},
			expected: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := New(tc.cfg, logger)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, f.Apply(tc.entry))
		})
	}
}
