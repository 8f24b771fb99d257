package stream

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"lglsync/src/internal/config"
	"lglsync/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/panjf2000/gnet/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func testStreamConfig() config.StreamConfig {
	return config.StreamConfig{
		Enabled:    true,
		Host:       "127.0.0.1",
		Port:       9090,
		BufferSize: 16,
		Format:     "text",
	}
}

func TestNew(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success", func(t *testing.T) {
		s, err := New(testStreamConfig(), nil, nil, logger)
		require.NoError(t, err)
		require.NotNil(t, s)
		defer s.sessions.Stop()
		assert.Equal(t, "text", s.formatter.Name())
	})

	t.Run("ErrorInvalidFilter", func(t *testing.T) {
		cfg := testStreamConfig()
		cfg.Filters = []config.FilterConfig{{Patterns: []string{"["}}}
		s, err := New(cfg, nil, nil, logger)
		assert.Error(t, err)
		assert.Nil(t, s)
		assert.Contains(t, err.Error(), "stream filters")
	})

	t.Run("ErrorInvalidFormat", func(t *testing.T) {
		cfg := testStreamConfig()
		cfg.Format = "xml"
		s, err := New(cfg, nil, nil, logger)
		assert.Error(t, err)
		assert.Nil(t, s)
		assert.Contains(t, err.Error(), "stream formatter")
	})
}

func TestPublish_DropsWhenFull(t *testing.T) {
	cfg := testStreamConfig()
	cfg.BufferSize = 2

	s, err := New(cfg, nil, nil, newTestLogger())
	require.NoError(t, err)
	defer s.sessions.Stop()

	// No broadcast loop is draining, so the third entry overflows
	for i := 0; i < 5; i++ {
		s.Publish(core.LogEntry{Message: "entry"})
	}

	stats := s.GetStats()
	assert.Equal(t, uint64(3), stats["total_dropped"])
}

func TestBroadcastLoop_AppliesFilters(t *testing.T) {
	cfg := testStreamConfig()
	cfg.Filters = []config.FilterConfig{
		{Type: config.FilterTypeInclude, Patterns: []string{"order"}},
	}

	s, err := New(cfg, nil, nil, newTestLogger())
	require.NoError(t, err)
	defer s.sessions.Stop()

	// Broadcast with no clients still counts processed entries
	s.server = &tcpServer{streamer: s, clients: make(map[gnet.Conn]*tailClient)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.broadcastLoop(ctx)

	s.Publish(core.LogEntry{Message: "order 1001 synced"})
	s.Publish(core.LogEntry{Message: "heartbeat ok"})
	s.Publish(core.LogEntry{Message: "order 1002 synced"})

	assert.Eventually(t, func() bool {
		stats := s.GetStats()
		return stats["total_processed"] == uint64(3) && stats["total_filtered"] == uint64(1)
	}, time.Second, 10*time.Millisecond)
}

func TestFormatHeartbeat(t *testing.T) {
	t.Run("Minimal", func(t *testing.T) {
		s, err := New(testStreamConfig(), nil, nil, newTestLogger())
		require.NoError(t, err)
		defer s.sessions.Stop()

		frame := s.formatHeartbeat()
		assert.True(t, frame[len(frame)-1] == '\n')

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(frame, &decoded))
		assert.Equal(t, "heartbeat", decoded["type"])
		assert.NotContains(t, decoded, "time")
		assert.NotContains(t, decoded, "active_connections")
	})

	t.Run("WithTimestampAndStats", func(t *testing.T) {
		cfg := testStreamConfig()
		cfg.Heartbeat = config.HeartbeatConfig{
			Enabled:          true,
			IntervalSeconds:  30,
			IncludeTimestamp: true,
			IncludeStats:     true,
		}

		s, err := New(cfg, nil, nil, newTestLogger())
		require.NoError(t, err)
		defer s.sessions.Stop()

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(s.formatHeartbeat(), &decoded))
		assert.Equal(t, "heartbeat", decoded["type"])
		assert.Contains(t, decoded, "time")
		assert.Contains(t, decoded, "active_connections")
		assert.Contains(t, decoded, "uptime_seconds")
	})
}
