package netlimit

import (
	"net"
	"testing"

	"lglsync/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func TestLimiterDisabled(t *testing.T) {
	l := New(config.NetLimitConfig{Enabled: false}, newTestLogger())
	require.Nil(t, l)

	// Nil limiter allows everything
	allowed, code, msg := l.CheckHTTP("1.2.3.4:5678")
	assert.True(t, allowed)
	assert.Zero(t, code)
	assert.Empty(t, msg)
	assert.True(t, l.CheckTCP(&net.TCPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 9}))
	assert.Equal(t, map[string]any{"enabled": false}, l.GetStats())
}

func TestLimiterBurstThenBlock(t *testing.T) {
	l := New(config.NetLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001, // effectively no refill during the test
		BurstSize:         3,
	}, newTestLogger())
	t.Cleanup(l.Shutdown)

	const addr = "10.0.0.1:4000"
	for i := 0; i < 3; i++ {
		allowed, _, _ := l.CheckHTTP(addr)
		require.True(t, allowed, "request %d should pass", i)
	}

	allowed, code, msg := l.CheckHTTP(addr)
	assert.False(t, allowed)
	assert.Equal(t, 429, code)
	assert.Equal(t, "Rate limit exceeded", msg)

	// Ports don't matter, the key is the IP
	allowed, _, _ = l.CheckHTTP("10.0.0.1:4001")
	assert.False(t, allowed)

	// A different IP gets its own bucket
	allowed, _, _ = l.CheckHTTP("10.0.0.2:4000")
	assert.True(t, allowed)

	stats := l.GetStats()
	assert.Equal(t, uint64(2), stats["blocked_requests"])
	assert.Equal(t, 2, stats["active_ips"])
}

func TestLimiterCustomResponse(t *testing.T) {
	l := New(config.NetLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001,
		BurstSize:         1,
		ResponseCode:      503,
		ResponseMessage:   "try later",
	}, newTestLogger())
	t.Cleanup(l.Shutdown)

	allowed, _, _ := l.CheckHTTP("10.0.0.9:1")
	require.True(t, allowed)

	allowed, code, msg := l.CheckHTTP("10.0.0.9:1")
	assert.False(t, allowed)
	assert.Equal(t, 503, code)
	assert.Equal(t, "try later", msg)
}

func TestLimiterEviction(t *testing.T) {
	l := New(config.NetLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 100,
		BurstSize:         10,
		MaxTrackedIPs:     2,
	}, newTestLogger())
	t.Cleanup(l.Shutdown)

	l.CheckHTTP("10.0.1.1:1")
	l.CheckHTTP("10.0.1.2:1")
	l.CheckHTTP("10.0.1.3:1") // evicts the stalest entry

	stats := l.GetStats()
	assert.Equal(t, 2, stats["active_ips"])
	assert.Equal(t, uint64(1), stats["evictions"])
}

func TestLimiterTCP(t *testing.T) {
	l := New(config.NetLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 0.001,
		BurstSize:         1,
	}, newTestLogger())
	t.Cleanup(l.Shutdown)

	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 2, 1), Port: 999}
	assert.True(t, l.CheckTCP(addr))
	assert.False(t, l.CheckTCP(addr))
}

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(2, 0)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	assert.False(t, NewTokenBucket(1, 0).AllowN(2))
}
