package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	m := NewManager(time.Minute)
	t.Cleanup(m.Stop)

	s1 := m.Create("10.0.0.1:5000", KindAdminAPI, "admin")
	s2 := m.Create("10.0.0.1:5000", KindAdminAPI, "admin")

	require.NotEmpty(t, s1.ID)
	assert.NotEqual(t, s1.ID, s2.ID, "every Create gets a fresh ID")
	assert.Equal(t, 2, m.Count())

	got, ok := m.Get(s1.ID)
	require.True(t, ok)
	assert.Equal(t, "admin", got.Identity)
	assert.Equal(t, KindAdminAPI, got.Kind)
}

func TestEnsure(t *testing.T) {
	m := NewManager(time.Minute)
	t.Cleanup(m.Stop)

	t.Run("SamePeerSharesSession", func(t *testing.T) {
		s1 := m.Ensure("10.0.0.1:5000", KindAdminAPI, "admin")
		s2 := m.Ensure("10.0.0.1:5000", KindAdminAPI, "admin")
		assert.Equal(t, s1.ID, s2.ID)
		assert.Equal(t, 1, m.Count())
	})

	t.Run("DifferentIdentityGetsOwnSession", func(t *testing.T) {
		s := m.Ensure("10.0.0.1:5000", KindAdminAPI, "deploy")
		_, ok := m.Get(s.ID)
		assert.True(t, ok)
		assert.Equal(t, 2, m.Count())
	})

	t.Run("DifferentKindGetsOwnSession", func(t *testing.T) {
		m.Ensure("10.0.0.1:5000", KindTCPTail, "admin")
		assert.Equal(t, 1, m.CountByKind(KindTCPTail))
		assert.Equal(t, 2, m.CountByKind(KindAdminAPI))
	})
}

func TestTouchAndRemove(t *testing.T) {
	m := NewManager(time.Minute)
	t.Cleanup(m.Stop)

	s := m.Create("10.0.0.2:6000", KindAdminAPI, "admin")
	before := s.LastActivity

	time.Sleep(5 * time.Millisecond)
	m.Touch(s.ID)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.True(t, got.LastActivity.After(before))

	m.Remove(s.ID)
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Count())
}

func TestExpireIdle(t *testing.T) {
	m := NewManager(time.Minute)
	t.Cleanup(m.Stop)

	expired := make(chan string, 1)
	m.RegisterExpiryCallback(KindTCPTail, func(sessionID, remoteAddr string) {
		expired <- sessionID
	})

	stale := m.Create("10.0.0.3:7000", KindTCPTail, "tail")
	fresh := m.Create("10.0.0.4:7000", KindTCPTail, "tail")

	m.mu.Lock()
	stale.LastActivity = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	m.expireIdle()

	select {
	case id := <-expired:
		assert.Equal(t, stale.ID, id)
	case <-time.After(time.Second):
		t.Fatal("expiry callback never fired")
	}

	_, ok := m.Get(stale.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)
}

func TestDefaultIdleTimeout(t *testing.T) {
	m := NewManager(0)
	t.Cleanup(m.Stop)

	stats := m.GetStats()
	assert.Equal(t, "30m0s", stats["max_idle"])
}

func TestGetStats(t *testing.T) {
	m := NewManager(time.Minute)
	t.Cleanup(m.Stop)

	m.Create("10.0.0.5:1", KindAdminAPI, "admin")
	m.Create("10.0.0.5:2", KindTCPTail, "tail")
	m.Create("10.0.0.5:3", KindTCPTail, "tail")

	stats := m.GetStats()
	assert.Equal(t, 3, stats["total"])
	assert.Equal(t, map[string]int{KindAdminAPI: 1, KindTCPTail: 2}, stats["by_kind"])
	assert.Contains(t, stats, "oldest_age")
}
