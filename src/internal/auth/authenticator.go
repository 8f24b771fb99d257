package auth

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"lglsync/src/internal/config"
	"lglsync/src/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Prevent unbounded map growth
const maxAuthTrackedIPs = 10000

// ErrBlocked marks rejections from an IP sitting out a block window,
// as opposed to bad credentials. The server maps it to 403.
var ErrBlocked = errors.New("temporarily blocked")

// Failure delays slow down guessing. Package vars so tests can zero
// them.
var (
	failureDelay = 500 * time.Millisecond
	blockedDelay = 2 * time.Second
)

// Authenticator guards the admin API. A nil *Authenticator (auth type
// "none") allows every request.
type Authenticator struct {
	// Configuration
	config *config.AuthConfig
	logger *log.Logger

	// Application
	basicUsers   map[string]string // username -> argon2id PHC hash
	bearerTokens map[string]bool
	jwtParser    *jwt.Parser
	jwtKeyFunc   jwt.Keyfunc
	sessions     *session.Manager
	mu           sync.RWMutex

	// Brute-force protection
	ipAttempts map[string]*ipAuthState
	attemptsMu sync.Mutex

	done chan struct{}
}

type ipAuthState struct {
	limiter      *rate.Limiter
	failCount    int
	lastAttempt  time.Time
	blockedUntil time.Time
}

// New creates an authenticator. Returns (nil, nil) for auth type "none".
func New(cfg *config.AuthConfig, sessions *session.Manager, logger *log.Logger) (*Authenticator, error) {
	if cfg == nil || cfg.Type == "none" {
		return nil, nil
	}

	a := &Authenticator{
		config:       cfg,
		logger:       logger,
		basicUsers:   make(map[string]string),
		bearerTokens: make(map[string]bool),
		sessions:     sessions,
		ipAttempts:   make(map[string]*ipAuthState),
		done:         make(chan struct{}),
	}

	if cfg.Type == "basic" && cfg.BasicAuth != nil {
		for _, user := range cfg.BasicAuth.Users {
			a.basicUsers[user.Username] = user.PasswordHash
		}
		if cfg.BasicAuth.UsersFile != "" {
			if err := a.loadUsersFile(cfg.BasicAuth.UsersFile); err != nil {
				return nil, fmt.Errorf("failed to load users file: %w", err)
			}
		}
		if len(a.basicUsers) == 0 {
			return nil, fmt.Errorf("basic auth enabled with no users")
		}
	}

	if cfg.Type == "bearer" && cfg.BearerAuth != nil {
		for _, token := range cfg.BearerAuth.Tokens {
			a.bearerTokens[token] = true
		}

		if cfg.BearerAuth.JWT != nil && cfg.BearerAuth.JWT.SigningKey != "" {
			// Static secret, so HMAC methods only
			a.jwtParser = jwt.NewParser(
				jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
				jwt.WithLeeway(5*time.Second),
				jwt.WithExpirationRequired(),
			)
			key := []byte(cfg.BearerAuth.JWT.SigningKey)
			a.jwtKeyFunc = func(token *jwt.Token) (any, error) {
				return key, nil
			}
		}

		if len(a.bearerTokens) == 0 && a.jwtParser == nil {
			return nil, fmt.Errorf("bearer auth enabled with no tokens or JWT key")
		}
	}

	go a.attemptCleanup()

	logger.Info("msg", "Authenticator initialized",
		"component", "auth",
		"type", cfg.Type)

	return a, nil
}

// Stop terminates the attempt-cleanup goroutine.
func (a *Authenticator) Stop() {
	if a == nil {
		return
	}
	close(a.done)
}

// AuthenticateHTTP validates an Authorization header. On success the
// client gets (or keeps) a session keyed by its identity and IP.
func (a *Authenticator) AuthenticateHTTP(authHeader, remoteAddr string) (*session.Session, error) {
	if a == nil {
		return nil, nil
	}

	ip := clientIP(remoteAddr)
	if err := a.checkBlocked(ip); err != nil {
		return nil, err
	}

	var identity string
	var err error

	switch a.config.Type {
	case "basic":
		identity, err = a.authenticateBasic(authHeader)
	case "bearer":
		identity, err = a.authenticateBearer(authHeader)
	default:
		err = fmt.Errorf("unsupported auth type: %s", a.config.Type)
	}

	if err != nil {
		a.recordFailure(ip)
		time.Sleep(failureDelay)
		return nil, err
	}

	a.recordSuccess(ip)
	return a.sessions.Ensure(ip, session.KindAdminAPI, identity), nil
}

func (a *Authenticator) authenticateBasic(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, "Basic ") {
		return "", fmt.Errorf("invalid basic auth header")
	}

	payload, err := base64.StdEncoding.DecodeString(authHeader[6:])
	if err != nil {
		return "", fmt.Errorf("invalid base64 encoding")
	}

	parts := strings.SplitN(string(payload), ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid credentials format")
	}
	username, password := parts[0], parts[1]

	a.mu.RLock()
	phcHash, exists := a.basicUsers[username]
	a.mu.RUnlock()

	if !exists {
		verifyDummy(password)
		return "", fmt.Errorf("invalid credentials")
	}
	if !VerifyPassword(password, phcHash) {
		return "", fmt.Errorf("invalid credentials")
	}

	return username, nil
}

func (a *Authenticator) authenticateBearer(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid bearer auth header")
	}
	return a.validateToken(authHeader[7:])
}

func (a *Authenticator) validateToken(token string) (string, error) {
	a.mu.RLock()
	isStatic := a.bearerTokens[token]
	a.mu.RUnlock()

	if isStatic {
		return "static-token", nil
	}

	if a.jwtParser == nil || a.jwtKeyFunc == nil {
		return "", fmt.Errorf("invalid token")
	}

	claims := jwt.MapClaims{}
	parsed, err := a.jwtParser.ParseWithClaims(token, claims, a.jwtKeyFunc)
	if err != nil {
		return "", fmt.Errorf("JWT validation failed: %w", err)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("invalid JWT token")
	}

	// The parser enforces exp and nbf; issuer and audience are ours.
	if iss := a.config.BearerAuth.JWT.Issuer; iss != "" {
		if got, ok := claims["iss"].(string); !ok || got != iss {
			return "", fmt.Errorf("invalid token issuer")
		}
	}
	if aud := a.config.BearerAuth.JWT.Audience; aud != "" {
		if !audienceMatches(claims["aud"], aud) {
			return "", fmt.Errorf("invalid token audience")
		}
	}

	identity := "jwt"
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		identity = sub
	}
	return identity, nil
}

// audienceMatches handles both string and array audience claims.
func audienceMatches(claim any, want string) bool {
	switch aud := claim.(type) {
	case string:
		return aud == want
	case []any:
		for _, entry := range aud {
			if s, ok := entry.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// checkBlocked rejects requests from an IP sitting out a block window.
// Successful requests never consume the attempt budget; only failures
// do, in recordFailure.
func (a *Authenticator) checkBlocked(ip string) error {
	a.attemptsMu.Lock()
	defer a.attemptsMu.Unlock()

	now := time.Now()
	state, exists := a.ipAttempts[ip]
	if !exists {
		if len(a.ipAttempts) >= maxAuthTrackedIPs {
			a.evictOldestLocked(now)
		}
		// Failure budget: 5 per minute, burst of 3
		state = &ipAuthState{
			limiter:     rate.NewLimiter(rate.Every(12*time.Second), 3),
			lastAttempt: now,
		}
		a.ipAttempts[ip] = state
	}
	state.lastAttempt = now

	if now.Before(state.blockedUntil) {
		remaining := state.blockedUntil.Sub(now)
		a.logger.Warn("msg", "IP temporarily blocked",
			"component", "auth",
			"ip", ip,
			"remaining", remaining)
		time.Sleep(blockedDelay)
		return fmt.Errorf("%w, try again in %v", ErrBlocked, remaining.Round(time.Second))
	}

	return nil
}

// evictOldestLocked samples tracked IPs and drops the stalest one.
// Caller holds attemptsMu.
func (a *Authenticator) evictOldestLocked(now time.Time) {
	const sampleSize = 20

	var oldestIP string
	oldestTime := now

	sampled := 0
	for ip, state := range a.ipAttempts {
		if state.lastAttempt.Before(oldestTime) {
			oldestIP = ip
			oldestTime = state.lastAttempt
		}
		sampled++
		if sampled >= sampleSize {
			break
		}
	}

	if oldestIP != "" {
		delete(a.ipAttempts, oldestIP)
		a.logger.Debug("msg", "Evicted auth attempt state",
			"component", "auth",
			"evicted_ip", oldestIP)
	}
}

// recordFailure consumes one token from the IP's failure budget and
// starts a progressive block when the budget is exhausted.
func (a *Authenticator) recordFailure(ip string) {
	a.attemptsMu.Lock()
	defer a.attemptsMu.Unlock()

	state, exists := a.ipAttempts[ip]
	if !exists {
		return
	}

	now := time.Now()
	state.failCount++
	state.lastAttempt = now

	if !state.limiter.Allow() {
		// Only set a new block once the previous one has lapsed,
		// otherwise retries during a block would extend it forever.
		if state.blockedUntil.IsZero() || now.After(state.blockedUntil) {
			blockMinutes := 1 << min(state.failCount, 6) // cap at 64 minutes
			state.blockedUntil = now.Add(time.Duration(blockMinutes) * time.Minute)

			a.logger.Warn("msg", "Repeated auth failures, blocking IP",
				"component", "auth",
				"ip", ip,
				"fail_count", state.failCount,
				"block_duration", time.Duration(blockMinutes)*time.Minute)
		}
	}
}

func (a *Authenticator) recordSuccess(ip string) {
	a.attemptsMu.Lock()
	defer a.attemptsMu.Unlock()

	if state, exists := a.ipAttempts[ip]; exists {
		state.failCount = 0
		state.blockedUntil = time.Time{}
	}
}

// attemptCleanup drops attempt state for IPs idle over an hour.
func (a *Authenticator) attemptCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			a.attemptsMu.Lock()
			now := time.Now()
			for ip, state := range a.ipAttempts {
				if now.Sub(state.lastAttempt) > time.Hour {
					delete(a.ipAttempts, ip)
				}
			}
			a.attemptsMu.Unlock()
		}
	}
}

// loadUsersFile reads "username:phc-hash" lines, skipping comments.
// File entries override inline users on name conflicts.
func (a *Authenticator) loadUsersFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open users file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			a.logger.Warn("msg", "Skipping malformed line in users file",
				"component", "auth",
				"path", path,
				"line_number", lineNumber)
			continue
		}
		username, hash := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if username != "" && hash != "" {
			a.basicUsers[username] = hash
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading users file: %w", err)
	}

	a.logger.Info("msg", "Loaded users from file",
		"component", "auth",
		"path", path,
		"user_count", len(a.basicUsers))

	return nil
}

// GetStats returns authentication statistics.
func (a *Authenticator) GetStats() map[string]any {
	if a == nil {
		return map[string]any{"enabled": false}
	}

	a.attemptsMu.Lock()
	trackedIPs := len(a.ipAttempts)
	a.attemptsMu.Unlock()

	return map[string]any{
		"enabled":       true,
		"type":          a.config.Type,
		"basic_users":   len(a.basicUsers),
		"static_tokens": len(a.bearerTokens),
		"tracked_ips":   trackedIPs,
	}
}

// clientIP strips the port from a remote address, falling back to the
// raw string for unparseable input.
func clientIP(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return ip
}
