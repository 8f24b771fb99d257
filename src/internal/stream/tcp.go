package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"lglsync/src/internal/config"
	"lglsync/src/internal/core"
	"lglsync/src/internal/filter"
	"lglsync/src/internal/format"
	"lglsync/src/internal/metrics"
	"lglsync/src/internal/netlimit"
	"lglsync/src/internal/session"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

// Streamer broadcasts debug log entries to connected TCP live-tail
// clients. Entries arrive via Publish, pass the filter chain, and are
// rendered by the configured formatter before fan-out.
type Streamer struct {
	// Configuration
	config config.StreamConfig

	// Network
	server   *tcpServer
	engine   *gnet.Engine
	engineMu sync.Mutex
	limiter  *netlimit.Limiter

	// Application
	input     chan core.LogEntry
	filters   *filter.Chain
	formatter format.Formatter
	logger    *log.Logger

	// Runtime
	sessions    *session.Manager
	ownSessions bool
	done        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	startTime   time.Time

	// Statistics
	activeConns    atomic.Int64
	totalProcessed atomic.Uint64
	totalFiltered  atomic.Uint64
	totalDropped   atomic.Uint64
	lastProcessed  atomic.Value // time.Time

	// Error tracking
	writeErrors            atomic.Uint64
	consecutiveWriteErrors map[gnet.Conn]int
	errorMu                sync.Mutex
}

// New creates a TCP live-tail streamer. A nil limiter admits every
// connection. A nil session manager makes the streamer own a private
// one.
func New(cfg config.StreamConfig, limiter *netlimit.Limiter, sessions *session.Manager, logger *log.Logger) (*Streamer, error) {
	chain, err := filter.NewChain(cfg.Filters, logger)
	if err != nil {
		return nil, fmt.Errorf("stream filters: %w", err)
	}

	formatter, err := format.New(cfg.Format, logger)
	if err != nil {
		return nil, fmt.Errorf("stream formatter: %w", err)
	}

	ownSessions := false
	if sessions == nil {
		sessions = session.NewManager(30 * time.Minute)
		ownSessions = true
	}

	s := &Streamer{
		config:                 cfg,
		limiter:                limiter,
		input:                  make(chan core.LogEntry, cfg.BufferSize),
		filters:                chain,
		formatter:              formatter,
		logger:                 logger,
		sessions:               sessions,
		ownSessions:            ownSessions,
		done:                   make(chan struct{}),
		startTime:              time.Now(),
		consecutiveWriteErrors: make(map[gnet.Conn]int),
	}
	s.lastProcessed.Store(time.Time{})

	return s, nil
}

// Publish queues an entry for broadcast. The send never blocks; when
// the buffer is full the entry is dropped and counted.
func (s *Streamer) Publish(entry core.LogEntry) {
	select {
	case s.input <- entry:
	default:
		s.totalDropped.Add(1)
	}
}

// Start initializes the TCP server and begins the broadcast loop.
func (s *Streamer) Start(ctx context.Context) error {
	s.server = &tcpServer{
		streamer: s,
		clients:  make(map[gnet.Conn]*tailClient),
	}

	// Idle live-tail sessions get their connection closed
	s.sessions.RegisterExpiryCallback(session.KindTCPTail, s.handleSessionExpiry)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.broadcastLoop(ctx)
	}()

	addr := fmt.Sprintf("tcp://%s:%d", s.config.Host, s.config.Port)
	gnetLogger := compat.NewGnetAdapter(s.logger)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("msg", "Starting live-tail TCP server",
			"component", "stream",
			"host", s.config.Host,
			"port", s.config.Port)

		err := gnet.Run(s.server, addr,
			gnet.WithLogger(gnetLogger),
			gnet.WithMulticore(true),
			gnet.WithReusePort(true),
		)
		if err != nil {
			s.logger.Error("msg", "Live-tail TCP server failed",
				"component", "stream",
				"port", s.config.Port,
				"error", err)
		}
		errChan <- err
	}()

	// Monitor context for shutdown
	go func() {
		<-ctx.Done()
		s.stopEngine()
	}()

	// Wait briefly for server to start or fail
	select {
	case err := <-errChan:
		s.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop gracefully shuts down the streamer. Safe to call after a failed
// Start and safe to call more than once.
func (s *Streamer) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("msg", "Stopping live-tail streamer", "component", "stream")

		close(s.done)
		s.stopEngine()
		s.wg.Wait()

		if s.ownSessions {
			s.sessions.Stop()
		}

		s.logger.Info("msg", "Live-tail streamer stopped", "component", "stream")
	})
}

func (s *Streamer) stopEngine() {
	s.engineMu.Lock()
	engine := s.engine
	s.engine = nil
	s.engineMu.Unlock()

	if engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		(*engine).Stop(ctx)
	}
}

// broadcastLoop fans entries and heartbeats out to all clients.
func (s *Streamer) broadcastLoop(ctx context.Context) {
	var ticker *time.Ticker
	var tickerChan <-chan time.Time

	if s.config.Heartbeat.Enabled {
		ticker = time.NewTicker(time.Duration(s.config.Heartbeat.IntervalSeconds) * time.Second)
		tickerChan = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case entry, ok := <-s.input:
			if !ok {
				return
			}
			s.totalProcessed.Add(1)
			s.lastProcessed.Store(time.Now())

			if !s.filters.Apply(entry) {
				s.totalFiltered.Add(1)
				continue
			}

			data, err := s.formatter.Format(entry)
			if err != nil {
				s.logger.Error("msg", "Failed to format log entry",
					"component", "stream",
					"error", err)
				continue
			}
			s.broadcastData(data)
			metrics.StreamEntriesSent.Inc()

		case <-tickerChan:
			s.broadcastData(s.formatHeartbeat())

		case <-s.done:
			return
		}
	}
}

// broadcastData sends a formatted byte slice to all connected clients.
func (s *Streamer) broadcastData(data []byte) {
	s.server.mu.RLock()
	defer s.server.mu.RUnlock()

	var stale []gnet.Conn

	for conn, client := range s.server.clients {
		if _, ok := s.sessions.Get(client.sessionID); !ok {
			// Session already expired, close outside the read lock
			stale = append(stale, conn)
			continue
		}
		s.sessions.Touch(client.sessionID)

		conn.AsyncWrite(data, func(c gnet.Conn, err error) error {
			if err != nil {
				s.writeErrors.Add(1)
				s.handleWriteError(c, err)
			} else {
				s.errorMu.Lock()
				delete(s.consecutiveWriteErrors, c)
				s.errorMu.Unlock()
			}
			return nil
		})
	}

	if len(stale) > 0 {
		go s.closeConnections(stale)
	}
}

// handleWriteError closes a connection after repeated async write
// failures.
func (s *Streamer) handleWriteError(c gnet.Conn, err error) {
	s.errorMu.Lock()
	defer s.errorMu.Unlock()

	s.consecutiveWriteErrors[c]++
	errorCount := s.consecutiveWriteErrors[c]

	s.logger.Debug("msg", "AsyncWrite error",
		"component", "stream",
		"remote_addr", c.RemoteAddr().String(),
		"error", err,
		"consecutive_errors", errorCount)

	if errorCount >= 3 {
		s.logger.Warn("msg", "Closing connection due to repeated write errors",
			"component", "stream",
			"remote_addr", c.RemoteAddr().String(),
			"error_count", errorCount)
		delete(s.consecutiveWriteErrors, c)
		c.Close()
	}
}

// handleSessionExpiry closes the connection belonging to an expired
// live-tail session.
func (s *Streamer) handleSessionExpiry(sessionID, remoteAddr string) {
	s.server.mu.RLock()
	defer s.server.mu.RUnlock()

	for conn, client := range s.server.clients {
		if client.sessionID == sessionID {
			s.logger.Info("msg", "Closing expired live-tail connection",
				"component", "stream",
				"session_id", sessionID,
				"remote_addr", remoteAddr)
			conn.Close()
			return
		}
	}
}

func (s *Streamer) closeConnections(conns []gnet.Conn) {
	for _, conn := range conns {
		s.logger.Info("msg", "Closing stale live-tail connection",
			"component", "stream",
			"remote_addr", conn.RemoteAddr().String())
		conn.Close()
	}
}

// formatHeartbeat builds the periodic keepalive frame. Heartbeats are
// control frames, not log entries, so they bypass the entry formatter.
func (s *Streamer) formatHeartbeat() []byte {
	data := map[string]any{"type": "heartbeat"}

	if s.config.Heartbeat.IncludeTimestamp {
		data["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if s.config.Heartbeat.IncludeStats {
		data["active_connections"] = s.activeConns.Load()
		data["uptime_seconds"] = int64(time.Since(s.startTime).Seconds())
	}

	buf, _ := json.Marshal(data)
	return append(buf, '\n')
}

// ActiveConnections returns the current number of connected clients.
func (s *Streamer) ActiveConnections() int64 {
	return s.activeConns.Load()
}

// GetStats returns streamer statistics.
func (s *Streamer) GetStats() map[string]any {
	lastProc, _ := s.lastProcessed.Load().(time.Time)

	stats := map[string]any{
		"host":               s.config.Host,
		"port":               s.config.Port,
		"buffer_size":        s.config.BufferSize,
		"format":             s.formatter.Name(),
		"active_connections": s.activeConns.Load(),
		"total_processed":    s.totalProcessed.Load(),
		"total_filtered":     s.totalFiltered.Load(),
		"total_dropped":      s.totalDropped.Load(),
		"write_errors":       s.writeErrors.Load(),
		"filters":            s.filters.GetStats(),
		"sessions":           s.sessions.CountByKind(session.KindTCPTail),
	}
	if !lastProc.IsZero() {
		stats["last_processed"] = lastProc.Format(time.RFC3339)
	}
	return stats
}

// tcpServer implements the gnet event handler for the live tail.
type tcpServer struct {
	gnet.BuiltinEventEngine
	streamer *Streamer
	clients  map[gnet.Conn]*tailClient
	mu       sync.RWMutex
}

// tailClient represents one connected live-tail client.
type tailClient struct {
	sessionID string
}

// OnBoot stores the engine reference for shutdown.
func (t *tcpServer) OnBoot(eng gnet.Engine) gnet.Action {
	t.streamer.engineMu.Lock()
	t.streamer.engine = &eng
	t.streamer.engineMu.Unlock()

	t.streamer.logger.Debug("msg", "Live-tail TCP server booted",
		"component", "stream",
		"port", t.streamer.config.Port)
	return gnet.None
}

// OnOpen admits a new connection if the net limiter allows it.
func (t *tcpServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	remoteAddr := c.RemoteAddr()

	if !t.streamer.limiter.CheckTCP(remoteAddr) {
		t.streamer.logger.Warn("msg", "Live-tail connection rate limited",
			"component", "stream",
			"remote_addr", remoteAddr.String())
		return nil, gnet.Close
	}

	sess := t.streamer.sessions.Create(remoteAddr.String(), session.KindTCPTail, "")

	t.mu.Lock()
	t.clients[c] = &tailClient{sessionID: sess.ID}
	t.mu.Unlock()

	newCount := t.streamer.activeConns.Add(1)
	metrics.StreamConnections.Inc()

	t.streamer.logger.Debug("msg", "Live-tail connection opened",
		"component", "stream",
		"remote_addr", remoteAddr.String(),
		"session_id", sess.ID,
		"active_connections", newCount)
	return nil, gnet.None
}

// OnClose drops client state and its session.
func (t *tcpServer) OnClose(c gnet.Conn, err error) gnet.Action {
	t.mu.Lock()
	client, exists := t.clients[c]
	delete(t.clients, c)
	t.mu.Unlock()

	if exists {
		t.streamer.sessions.Remove(client.sessionID)
	}

	t.streamer.errorMu.Lock()
	delete(t.streamer.consecutiveWriteErrors, c)
	t.streamer.errorMu.Unlock()

	newCount := t.streamer.activeConns.Add(-1)
	metrics.StreamConnections.Dec()

	t.streamer.logger.Debug("msg", "Live-tail connection closed",
		"component", "stream",
		"active_connections", newCount,
		"error", err)
	return gnet.None
}

// OnTraffic discards client input. The tail is one-way; received bytes
// only refresh the session.
func (t *tcpServer) OnTraffic(c gnet.Conn) gnet.Action {
	t.mu.RLock()
	client, exists := t.clients[c]
	t.mu.RUnlock()

	if exists {
		t.streamer.sessions.Touch(client.sessionID)
	}

	c.Discard(-1)
	return gnet.None
}
