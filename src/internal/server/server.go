package server

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"lglsync/src/internal/auth"
	"lglsync/src/internal/config"
	"lglsync/src/internal/core"
	"lglsync/src/internal/debuglog"
	"lglsync/src/internal/lgl"
	"lglsync/src/internal/metrics"
	"lglsync/src/internal/netlimit"
	"lglsync/src/internal/session"
	"lglsync/src/internal/settings"
	"lglsync/src/internal/store"
	"lglsync/src/internal/stream"
	"lglsync/src/internal/syncer"
	"lglsync/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/valyala/fasthttp"
)

// Catalog lists LGL campaign structure and checks credentials.
type Catalog interface {
	Funds(ctx context.Context) ([]lgl.Fund, error)
	Campaigns(ctx context.Context) ([]lgl.Campaign, error)
	Events(ctx context.Context) ([]lgl.Event, error)
	MembershipLevels(ctx context.Context) ([]lgl.MembershipLevel, error)
	VerifyCredentials(ctx context.Context) error
	GetStats() map[string]any
}

// Flows runs the sync flows exposed by the admin API.
type Flows interface {
	EnsureConstituent(ctx context.Context, cust syncer.Customer) core.Result
	AddMembership(ctx context.Context, constituentID int, req syncer.MembershipRequest) core.Result
	RecordDonation(ctx context.Context, constituentID int, req syncer.DonationRequest) core.Result
	RegisterForEvent(ctx context.Context, constituentID int, req syncer.EventRegistration) core.Result
	ProcessOrder(ctx context.Context, order syncer.Order) core.Result
	GetStats() map[string]any
}

// Deps carries the components the admin API exposes.
type Deps struct {
	Settings *settings.Service
	Flows    Flows
	Catalog  Catalog
	Debug    *debuglog.Logger
	Store    *store.Store
	Streamer *stream.Streamer // nil when the live tail is disabled
	Sessions *session.Manager

	// Default entry count for GET /api/log when no limit is given
	ViewLines int
}

// Server is the admin HTTP API. Every route sits behind the optional
// net limiter and authenticator, both constructed from the server
// configuration.
type Server struct {
	// Configuration
	config config.ServerConfig

	// Application
	deps   Deps
	logger *log.Logger

	// Network
	server         *fasthttp.Server
	authenticator  *auth.Authenticator
	limiter        *netlimit.Limiter
	metricsHandler fasthttp.RequestHandler

	// Runtime
	startTime time.Time

	// Statistics
	totalRequests   atomic.Uint64
	authFailures    atomic.Uint64
	authSuccesses   atomic.Uint64
	panicsRecovered atomic.Uint64
}

// New creates the admin API server.
func New(cfg config.ServerConfig, deps Deps, logger *log.Logger) (*Server, error) {
	if deps.ViewLines < 1 {
		deps.ViewLines = 100
	}

	s := &Server{
		config:    cfg,
		deps:      deps,
		logger:    logger,
		startTime: time.Now(),
	}

	authenticator, err := auth.New(cfg.Auth, deps.Sessions, logger)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	s.authenticator = authenticator

	if cfg.NetLimit != nil {
		s.limiter = netlimit.New(*cfg.NetLimit, logger)
	}

	s.metricsHandler = metrics.Handler()
	return s, nil
}

// Start begins serving. It returns once the listener is up or has
// failed immediately.
func (s *Server) Start(ctx context.Context) error {
	s.server = &fasthttp.Server{
		Name:         fmt.Sprintf("lglsync/%s", version.Short()),
		Handler:      s.handleRequest,
		Logger:       compat.NewFastHTTPAdapter(s.logger),
		ReadTimeout:  time.Duration(s.config.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout: time.Duration(s.config.WriteTimeoutMS) * time.Millisecond,
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("msg", "Admin API server started",
			"component", "server",
			"host", s.config.Host,
			"port", s.config.Port,
			"auth", s.authType())

		if err := s.server.ListenAndServe(addr); err != nil {
			s.logger.Error("msg", "Admin API server failed",
				"component", "server",
				"error", err)
			errChan <- err
		}
	}()

	// Monitor context for shutdown
	go func() {
		<-ctx.Done()
		s.shutdown()
	}()

	// Wait briefly for the listener to come up or fail
	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	s.logger.Info("msg", "Stopping admin API server", "component", "server")

	s.shutdown()
	s.authenticator.Stop()
	if s.limiter != nil {
		s.limiter.Shutdown()
	}

	s.logger.Info("msg", "Admin API server stopped", "component", "server")
}

func (s *Server) shutdown() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.server.ShutdownWithContext(ctx)
}

func (s *Server) authType() string {
	if s.config.Auth == nil {
		return "none"
	}
	return s.config.Auth.Type
}

// handleRequest is the single entry point: net limit, routing, auth,
// then dispatch. Panics never cross this boundary.
func (s *Server) handleRequest(ctx *fasthttp.RequestCtx) {
	s.totalRequests.Add(1)

	method := string(ctx.Method())
	path := string(ctx.Path())

	handler, rejectStatus := s.route(method, path)

	// Unknown paths share one metrics label so scanners cannot inflate
	// the cardinality.
	route := path
	if handler == nil && rejectStatus == fasthttp.StatusNotFound {
		route = "unmatched"
	}

	defer func() {
		if r := recover(); r != nil {
			s.panicsRecovered.Add(1)
			s.logger.Error("msg", "Handler panic recovered",
				"component", "server",
				"method", method,
				"path", path,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()))
			respondError(ctx, fasthttp.StatusInternalServerError, "internal server error")
		}
		metrics.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(ctx.Response.StatusCode())).Inc()
	}()

	remoteAddr := ctx.RemoteAddr().String()

	if allowed, code, message := s.limiter.CheckHTTP(remoteAddr); !allowed {
		s.logger.Warn("msg", "Request rate limited",
			"component", "server",
			"remote_addr", remoteAddr,
			"path", path)
		respondError(ctx, code, message)
		return
	}

	if handler == nil {
		if rejectStatus == fasthttp.StatusMethodNotAllowed {
			respondError(ctx, rejectStatus, "method not allowed")
		} else {
			respondError(ctx, rejectStatus, "not found")
		}
		return
	}

	if s.authenticator != nil {
		authHeader := string(ctx.Request.Header.Peek("Authorization"))
		if _, err := s.authenticator.AuthenticateHTTP(authHeader, remoteAddr); err != nil {
			s.authFailures.Add(1)
			s.logger.Warn("msg", "Authentication failed",
				"component", "server",
				"remote_addr", remoteAddr,
				"path", path,
				"error", err)

			if errors.Is(err, auth.ErrBlocked) {
				respondError(ctx, fasthttp.StatusForbidden, "temporarily blocked")
				return
			}
			s.setChallengeHeader(ctx)
			respondError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
			return
		}
		s.authSuccesses.Add(1)
	}

	handler(ctx)
}

func (s *Server) setChallengeHeader(ctx *fasthttp.RequestCtx) {
	if s.config.Auth != nil && s.config.Auth.Type == "basic" {
		realm := "lglsync"
		if s.config.Auth.BasicAuth != nil && s.config.Auth.BasicAuth.Realm != "" {
			realm = s.config.Auth.BasicAuth.Realm
		}
		ctx.Response.Header.Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
		return
	}
	ctx.Response.Header.Set("WWW-Authenticate", "Bearer")
}

// route resolves a method and path to a handler. A nil handler comes
// with the status code to reject with.
func (s *Server) route(method, path string) (fasthttp.RequestHandler, int) {
	switch path {
	case "/api/status":
		if method == fasthttp.MethodGet {
			return s.handleStatus, 0
		}
	case "/api/log":
		switch method {
		case fasthttp.MethodGet:
			return s.handleLogGet, 0
		case fasthttp.MethodDelete:
			return s.handleLogClear, 0
		}
	case "/api/settings":
		switch method {
		case fasthttp.MethodGet:
			return s.handleSettingsGet, 0
		case fasthttp.MethodPut:
			return s.handleSettingsPut, 0
		}
	case "/api/settings/verify":
		if method == fasthttp.MethodPost {
			return s.handleSettingsVerify, 0
		}
	case "/api/catalog/funds":
		if method == fasthttp.MethodGet {
			return s.handleCatalogFunds, 0
		}
	case "/api/catalog/campaigns":
		if method == fasthttp.MethodGet {
			return s.handleCatalogCampaigns, 0
		}
	case "/api/catalog/events":
		if method == fasthttp.MethodGet {
			return s.handleCatalogEvents, 0
		}
	case "/api/catalog/membership-levels":
		if method == fasthttp.MethodGet {
			return s.handleCatalogMembershipLevels, 0
		}
	case "/api/sync/constituent":
		if method == fasthttp.MethodPost {
			return s.handleSyncConstituent, 0
		}
	case "/api/sync/membership":
		if method == fasthttp.MethodPost {
			return s.handleSyncMembership, 0
		}
	case "/api/sync/donation":
		if method == fasthttp.MethodPost {
			return s.handleSyncDonation, 0
		}
	case "/api/sync/event":
		if method == fasthttp.MethodPost {
			return s.handleSyncEvent, 0
		}
	case "/api/orders":
		if method == fasthttp.MethodPost {
			return s.handleOrders, 0
		}
	case "/api/registrations":
		if method == fasthttp.MethodGet {
			return s.handleRegistrations, 0
		}
	case "/api/journal":
		if method == fasthttp.MethodGet {
			return s.handleJournal, 0
		}
	case "/metrics":
		if method == fasthttp.MethodGet {
			return s.metricsHandler, 0
		}
	default:
		return nil, fasthttp.StatusNotFound
	}
	return nil, fasthttp.StatusMethodNotAllowed
}

// GetStats returns server statistics.
func (s *Server) GetStats() map[string]any {
	stats := map[string]any{
		"host":             s.config.Host,
		"port":             s.config.Port,
		"uptime_seconds":   int64(time.Since(s.startTime).Seconds()),
		"total_requests":   s.totalRequests.Load(),
		"auth_failures":    s.authFailures.Load(),
		"auth_successes":   s.authSuccesses.Load(),
		"panics_recovered": s.panicsRecovered.Load(),
	}
	if s.authenticator != nil {
		stats["auth"] = s.authenticator.GetStats()
	}
	if s.limiter != nil {
		stats["net_limit"] = s.limiter.GetStats()
	}
	return stats
}
