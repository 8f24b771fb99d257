package netlimit

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"lglsync/src/internal/config"

	"github.com/lixenwraith/log"
)

const (
	defaultMaxTrackedIPs = 10000
	staleAfter           = 5 * time.Minute
)

// Limiter applies per-IP request limits in front of the admin API and
// the TCP live tail. A nil *Limiter allows everything.
type Limiter struct {
	// Configuration
	config config.NetLimitConfig
	logger *log.Logger

	// Runtime
	ipLimiters map[string]*ipLimiter
	ipMu       sync.Mutex

	// Statistics
	totalRequests   atomic.Uint64
	blockedRequests atomic.Uint64
	evictions       atomic.Uint64

	// Lifecycle
	ctx         context.Context
	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

type ipLimiter struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// New creates a net limiter, or nil when limiting is disabled.
func New(cfg config.NetLimitConfig, logger *log.Logger) *Limiter {
	if !cfg.Enabled {
		return nil
	}
	if cfg.MaxTrackedIPs <= 0 {
		cfg.MaxTrackedIPs = defaultMaxTrackedIPs
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Limiter{
		config:      cfg,
		logger:      logger,
		ipLimiters:  make(map[string]*ipLimiter),
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}

	go l.cleanupLoop()

	logger.Info("msg", "Net limiter initialized",
		"component", "netlimit",
		"requests_per_second", cfg.RequestsPerSecond,
		"burst_size", cfg.BurstSize,
		"max_tracked_ips", cfg.MaxTrackedIPs)

	return l
}

// Shutdown stops the cleanup goroutine.
func (l *Limiter) Shutdown() {
	if l == nil {
		return
	}
	l.cancel()

	select {
	case <-l.cleanupDone:
	case <-time.After(2 * time.Second):
		l.logger.Warn("msg", "Net limiter cleanup shutdown timeout",
			"component", "netlimit")
	}
}

// CheckHTTP reports whether a request from remoteAddr is allowed, and
// when not, the status code and message to respond with.
func (l *Limiter) CheckHTTP(remoteAddr string) (allowed bool, statusCode int, message string) {
	if l == nil {
		return true, 0, ""
	}

	l.totalRequests.Add(1)

	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// Unparseable address; allow rather than lock an operator out
		l.logger.Warn("msg", "Failed to parse remote addr",
			"component", "netlimit",
			"remote_addr", remoteAddr,
			"error", err)
		return true, 0, ""
	}

	if l.allow(ip) {
		return true, 0, ""
	}

	l.blockedRequests.Add(1)
	statusCode = l.config.ResponseCode
	if statusCode == 0 {
		statusCode = 429
	}
	message = l.config.ResponseMessage
	if message == "" {
		message = "Rate limit exceeded"
	}
	return false, statusCode, message
}

// CheckTCP reports whether a live-tail connection is allowed.
func (l *Limiter) CheckTCP(remoteAddr net.Addr) bool {
	if l == nil {
		return true
	}

	l.totalRequests.Add(1)

	tcpAddr, ok := remoteAddr.(*net.TCPAddr)
	if !ok {
		return true
	}

	if !l.allow(tcpAddr.IP.String()) {
		l.blockedRequests.Add(1)
		return false
	}
	return true
}

// allow consumes one token from the IP's bucket, creating it on first
// sight and evicting the stalest tracked IP when the map is full.
func (l *Limiter) allow(ip string) bool {
	l.ipMu.Lock()

	lim, exists := l.ipLimiters[ip]
	if !exists {
		if len(l.ipLimiters) >= l.config.MaxTrackedIPs {
			l.evictOldestLocked()
		}
		lim = &ipLimiter{
			bucket: NewTokenBucket(float64(l.config.BurstSize), l.config.RequestsPerSecond),
		}
		l.ipLimiters[ip] = lim
	}
	lim.lastSeen = time.Now()
	l.ipMu.Unlock()

	return lim.bucket.Allow()
}

// evictOldestLocked drops the least recently seen IP. Caller holds ipMu.
func (l *Limiter) evictOldestLocked() {
	var oldestIP string
	var oldestTime time.Time

	for ip, lim := range l.ipLimiters {
		if oldestIP == "" || lim.lastSeen.Before(oldestTime) {
			oldestIP = ip
			oldestTime = lim.lastSeen
		}
	}

	if oldestIP != "" {
		delete(l.ipLimiters, oldestIP)
		l.evictions.Add(1)
	}
}

// GetStats returns limiter statistics.
func (l *Limiter) GetStats() map[string]any {
	if l == nil {
		return map[string]any{"enabled": false}
	}

	l.ipMu.Lock()
	activeIPs := len(l.ipLimiters)
	l.ipMu.Unlock()

	return map[string]any{
		"enabled":          true,
		"total_requests":   l.totalRequests.Load(),
		"blocked_requests": l.blockedRequests.Load(),
		"active_ips":       activeIPs,
		"evictions":        l.evictions.Load(),
		"config": map[string]any{
			"requests_per_second": l.config.RequestsPerSecond,
			"burst_size":          l.config.BurstSize,
		},
	}
}

func (l *Limiter) cleanupLoop() {
	defer close(l.cleanupDone)

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup removes limiters idle past the stale window.
func (l *Limiter) cleanup() {
	now := time.Now()

	l.ipMu.Lock()
	defer l.ipMu.Unlock()

	cleaned := 0
	for ip, lim := range l.ipLimiters {
		if now.Sub(lim.lastSeen) > staleAfter {
			delete(l.ipLimiters, ip)
			cleaned++
		}
	}

	if cleaned > 0 {
		l.logger.Debug("msg", "Cleaned up stale IP limiters",
			"component", "netlimit",
			"cleaned", cleaned,
			"remaining", len(l.ipLimiters))
	}
}
