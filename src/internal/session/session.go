package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// Session kinds.
const (
	KindAdminAPI = "admin_api"
	KindTCPTail  = "tcp_tail"
)

// Session tracks one authenticated admin client or live-tail connection.
type Session struct {
	ID           string
	RemoteAddr   string
	Kind         string
	Identity     string // authenticated username or token label
	CreatedAt    time.Time
	LastActivity time.Time
}

// Manager owns session lifecycle: creation, activity tracking and idle
// expiry with per-kind callbacks.
type Manager struct {
	// Configuration
	maxIdle time.Duration

	// Runtime
	sessions map[string]*Session
	mu       sync.RWMutex

	callbacks   map[string]func(sessionID, remoteAddr string)
	callbacksMu sync.RWMutex

	ticker *time.Ticker
	done   chan struct{}
}

// NewManager creates a session manager. A zero idle timeout defaults to
// 30 minutes.
func NewManager(maxIdle time.Duration) *Manager {
	if maxIdle == 0 {
		maxIdle = 30 * time.Minute
	}

	m := &Manager{
		maxIdle:   maxIdle,
		sessions:  make(map[string]*Session),
		callbacks: make(map[string]func(sessionID, remoteAddr string)),
		done:      make(chan struct{}),
	}
	m.startCleanup()
	return m
}

// Create registers a new session and returns it.
func (m *Manager) Create(remoteAddr, kind, identity string) *Session {
	now := time.Now()
	s := &Session{
		ID:           generateID(),
		RemoteAddr:   remoteAddr,
		Kind:         kind,
		Identity:     identity,
		CreatedAt:    now,
		LastActivity: now,
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s
}

// Ensure returns the existing session matching kind, identity and
// remote address, refreshing its activity, or creates one. Repeated
// requests from the same authenticated client share a session.
func (m *Manager) Ensure(remoteAddr, kind, identity string) *Session {
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.Kind == kind && s.Identity == identity && s.RemoteAddr == remoteAddr {
			s.LastActivity = time.Now()
			m.mu.Unlock()
			return s
		}
	}
	m.mu.Unlock()

	return m.Create(remoteAddr, kind, identity)
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Touch updates a session's last-activity timestamp.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.LastActivity = time.Now()
	}
}

// Remove drops a session without firing its expiry callback.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of tracked sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CountByKind returns the number of tracked sessions of one kind.
func (m *Manager) CountByKind(kind string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.sessions {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// RegisterExpiryCallback sets the function invoked when a session of the
// given kind expires. The live tail uses this to close idle connections.
func (m *Manager) RegisterExpiryCallback(kind string, callback func(sessionID, remoteAddr string)) {
	m.callbacksMu.Lock()
	defer m.callbacksMu.Unlock()
	m.callbacks[kind] = callback
}

// GetStats returns session statistics.
func (m *Manager) GetStats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byKind := make(map[string]int)
	var oldest time.Time
	for _, s := range m.sessions {
		byKind[s.Kind]++
		if oldest.IsZero() || s.CreatedAt.Before(oldest) {
			oldest = s.CreatedAt
		}
	}

	stats := map[string]any{
		"total":    len(m.sessions),
		"by_kind":  byKind,
		"max_idle": m.maxIdle.String(),
	}
	if !oldest.IsZero() {
		stats["oldest_age"] = time.Since(oldest).String()
	}
	return stats
}

// Stop terminates the cleanup goroutine.
func (m *Manager) Stop() {
	close(m.done)
	if m.ticker != nil {
		m.ticker.Stop()
	}
}

func (m *Manager) startCleanup() {
	m.ticker = time.NewTicker(time.Minute)

	go func() {
		for {
			select {
			case <-m.ticker.C:
				m.expireIdle()
			case <-m.done:
				return
			}
		}
	}()
}

func (m *Manager) expireIdle() {
	now := time.Now()

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity) > m.maxIdle {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	if len(expired) == 0 {
		return
	}

	// Callbacks run outside the lock so they can call back into the
	// manager.
	m.callbacksMu.RLock()
	defer m.callbacksMu.RUnlock()
	for _, s := range expired {
		if callback, ok := m.callbacks[s.Kind]; ok {
			go callback(s.ID, s.RemoteAddr)
		}
	}
}

func generateID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("session_%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(b)
}
