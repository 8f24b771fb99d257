package auth

import (
	"encoding/base64"
	"testing"
	"time"

	"lglsync/src/internal/config"
	"lglsync/src/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func disableDelays(t *testing.T) {
	t.Helper()
	oldFailure, oldBlocked := failureDelay, blockedDelay
	failureDelay, blockedDelay = 0, 0
	t.Cleanup(func() {
		failureDelay, blockedDelay = oldFailure, oldBlocked
	})
}

func newTestAuthenticator(t *testing.T, cfg *config.AuthConfig) *Authenticator {
	t.Helper()

	sessions := session.NewManager(time.Minute)
	t.Cleanup(sessions.Stop)

	a, err := New(cfg, sessions, newTestLogger())
	require.NoError(t, err)
	if a != nil {
		t.Cleanup(a.Stop)
	}
	return a
}

func basicHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestAuthenticatorNone(t *testing.T) {
	a := newTestAuthenticator(t, &config.AuthConfig{Type: "none"})
	require.Nil(t, a)

	// A nil authenticator allows everything
	sess, err := a.AuthenticateHTTP("", "127.0.0.1:1234")
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, map[string]any{"enabled": false}, a.GetStats())
}

func TestAuthenticatorBasic(t *testing.T) {
	disableDelays(t)

	phc, err := GenerateHash("hunter2")
	require.NoError(t, err)

	cfg := &config.AuthConfig{
		Type: "basic",
		BasicAuth: &config.BasicAuthConfig{
			Users: []config.BasicAuthUser{{Username: "admin", PasswordHash: phc}},
		},
	}
	a := newTestAuthenticator(t, cfg)
	require.NotNil(t, a)

	t.Run("valid credentials", func(t *testing.T) {
		sess, err := a.AuthenticateHTTP(basicHeader("admin", "hunter2"), "10.0.0.1:5000")
		require.NoError(t, err)
		require.NotNil(t, sess)
		assert.Equal(t, "admin", sess.Identity)
		assert.Equal(t, session.KindAdminAPI, sess.Kind)
	})

	t.Run("session is reused per client", func(t *testing.T) {
		first, err := a.AuthenticateHTTP(basicHeader("admin", "hunter2"), "10.0.0.2:5000")
		require.NoError(t, err)
		second, err := a.AuthenticateHTTP(basicHeader("admin", "hunter2"), "10.0.0.2:6000")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := a.AuthenticateHTTP(basicHeader("admin", "wrong"), "10.0.0.3:5000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid credentials")
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := a.AuthenticateHTTP(basicHeader("ghost", "hunter2"), "10.0.0.4:5000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid credentials")
	})

	t.Run("malformed header", func(t *testing.T) {
		_, err := a.AuthenticateHTTP("Bearer abc", "10.0.0.5:5000")
		require.Error(t, err)

		_, err = a.AuthenticateHTTP("Basic not-base64!!!", "10.0.0.5:5000")
		require.Error(t, err)
	})
}

func TestAuthenticatorRequiresUsers(t *testing.T) {
	sessions := session.NewManager(time.Minute)
	t.Cleanup(sessions.Stop)

	_, err := New(&config.AuthConfig{
		Type:      "basic",
		BasicAuth: &config.BasicAuthConfig{},
	}, sessions, newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no users")
}

func TestAuthenticatorBearer(t *testing.T) {
	disableDelays(t)

	cfg := &config.AuthConfig{
		Type: "bearer",
		BearerAuth: &config.BearerAuthConfig{
			Tokens: []string{"static-abc123"},
			JWT: &config.JWTConfig{
				SigningKey: "jwt-signing-secret",
				Issuer:     "lglsync-test",
				Audience:   "admin-api",
			},
		},
	}
	a := newTestAuthenticator(t, cfg)
	require.NotNil(t, a)

	signJWT := func(t *testing.T, claims jwt.MapClaims) string {
		t.Helper()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte("jwt-signing-secret"))
		require.NoError(t, err)
		return signed
	}

	t.Run("static token", func(t *testing.T) {
		sess, err := a.AuthenticateHTTP("Bearer static-abc123", "10.1.0.1:5000")
		require.NoError(t, err)
		assert.Equal(t, "static-token", sess.Identity)
	})

	t.Run("valid JWT", func(t *testing.T) {
		token := signJWT(t, jwt.MapClaims{
			"sub": "operator",
			"iss": "lglsync-test",
			"aud": "admin-api",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		sess, err := a.AuthenticateHTTP("Bearer "+token, "10.1.0.2:5000")
		require.NoError(t, err)
		assert.Equal(t, "operator", sess.Identity)
	})

	t.Run("JWT with audience list", func(t *testing.T) {
		token := signJWT(t, jwt.MapClaims{
			"sub": "operator",
			"iss": "lglsync-test",
			"aud": []string{"other", "admin-api"},
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		_, err := a.AuthenticateHTTP("Bearer "+token, "10.1.0.3:5000")
		require.NoError(t, err)
	})

	t.Run("expired JWT", func(t *testing.T) {
		token := signJWT(t, jwt.MapClaims{
			"iss": "lglsync-test",
			"aud": "admin-api",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		_, err := a.AuthenticateHTTP("Bearer "+token, "10.1.0.4:5000")
		require.Error(t, err)
	})

	t.Run("JWT without expiration", func(t *testing.T) {
		token := signJWT(t, jwt.MapClaims{
			"iss": "lglsync-test",
			"aud": "admin-api",
		})
		_, err := a.AuthenticateHTTP("Bearer "+token, "10.1.0.5:5000")
		require.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := signJWT(t, jwt.MapClaims{
			"iss": "someone-else",
			"aud": "admin-api",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		_, err := a.AuthenticateHTTP("Bearer "+token, "10.1.0.6:5000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "issuer")
	})

	t.Run("not yet valid", func(t *testing.T) {
		token := signJWT(t, jwt.MapClaims{
			"iss": "lglsync-test",
			"aud": "admin-api",
			"exp": time.Now().Add(2 * time.Hour).Unix(),
			"nbf": time.Now().Add(time.Hour).Unix(),
		})
		_, err := a.AuthenticateHTTP("Bearer "+token, "10.1.0.7:5000")
		require.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := a.AuthenticateHTTP("Bearer nonsense", "10.1.0.8:5000")
		require.Error(t, err)
	})
}

func TestAuthenticatorProgressiveBlocking(t *testing.T) {
	disableDelays(t)

	phc, err := GenerateHash("right")
	require.NoError(t, err)

	a := newTestAuthenticator(t, &config.AuthConfig{
		Type: "basic",
		BasicAuth: &config.BasicAuthConfig{
			Users: []config.BasicAuthUser{{Username: "admin", PasswordHash: phc}},
		},
	})

	const addr = "10.9.9.9:5000"

	// Burn through the failure budget (burst of 3, then one more to
	// trip the block)
	for i := 0; i < 4; i++ {
		_, err := a.AuthenticateHTTP(basicHeader("admin", "wrong"), addr)
		require.Error(t, err)
	}

	// Even correct credentials are rejected while blocked
	_, err = a.AuthenticateHTTP(basicHeader("admin", "right"), addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporarily blocked")

	// Another client is unaffected
	_, err = a.AuthenticateHTTP(basicHeader("admin", "right"), "10.9.9.10:5000")
	require.NoError(t, err)
}

func TestAuthenticatorStats(t *testing.T) {
	disableDelays(t)

	phc, err := GenerateHash("pw")
	require.NoError(t, err)

	a := newTestAuthenticator(t, &config.AuthConfig{
		Type: "basic",
		BasicAuth: &config.BasicAuthConfig{
			Users: []config.BasicAuthUser{{Username: "admin", PasswordHash: phc}},
		},
	})

	_, err = a.AuthenticateHTTP(basicHeader("admin", "pw"), "10.2.0.1:5000")
	require.NoError(t, err)

	stats := a.GetStats()
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, "basic", stats["type"])
	assert.Equal(t, 1, stats["basic_users"])
	assert.Equal(t, 1, stats["tracked_ips"])
}
