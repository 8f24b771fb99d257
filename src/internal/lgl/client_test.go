package lgl

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"testing"

	"lglsync/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

type stubCreds map[string]string

func (s stubCreds) Resolve(baseKey string) string { return s[baseKey] }

func testConfig() config.LGLConfig {
	return config.LGLConfig{
		TimeoutSeconds:    2,
		MaxRetries:        2,
		RetryDelayMS:      1,
		RetryBackoff:      2.0,
		RequestsPerSecond: 10000,
		Burst:             10000,
		PageSize:          2,
		MaxPages:          10,
	}
}

// newTestClient wires a Client to an in-memory fasthttp server so no
// network ports are needed.
func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *Client {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: handler}
	go server.Serve(ln) //nolint:errcheck
	t.Cleanup(func() {
		ln.Close()
	})

	creds := stubCreds{
		"api_key":      "test-key",
		"api_base_url": "http://lgl.test/api/v1",
	}
	c := New(testConfig(), creds, newTestLogger())
	c.client.Dial = func(addr string) (net.Conn, error) {
		return ln.Dial()
	}
	return c
}

func TestClient_FetchAllPaginates(t *testing.T) {
	var offsets []string

	handler := func(ctx *fasthttp.RequestCtx) {
		require.Equal(t, "/api/v1/funds", string(ctx.Path()))
		require.Equal(t, "Bearer test-key", string(ctx.Request.Header.Peek("Authorization")))

		offset, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("offset")))
		offsets = append(offsets, string(ctx.QueryArgs().Peek("offset")))

		total := 5
		count := 2
		if offset+count > total {
			count = total - offset
		}
		items := make([]Fund, 0, count)
		for i := 0; i < count; i++ {
			items = append(items, Fund{ID: offset + i + 1, Name: fmt.Sprintf("Fund %d", offset+i+1)})
		}

		raw, _ := json.Marshal(items)
		resp := ListResponse{
			TotalItems: total,
			ItemsCount: count,
			Limit:      2,
			Offset:     offset,
			ItemType:   "fund",
			Items:      raw,
		}
		ctx.SetContentType("application/json")
		json.NewEncoder(ctx).Encode(resp) //nolint:errcheck
	}

	c := newTestClient(t, handler)
	funds, err := c.Funds(context.Background())
	require.NoError(t, err)

	require.Len(t, funds, 5)
	assert.Equal(t, []string{"0", "2", "4"}, offsets)
	assert.Equal(t, 1, funds[0].ID)
	assert.Equal(t, "Fund 5", funds[4].Name)
}

func TestClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int64

	handler := func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusUnprocessableEntity)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"errors":["first_name is required"]}`)
	}

	c := newTestClient(t, handler)
	_, err := c.CreateConstituent(context.Background(), ConstituentInput{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "first_name is required")
	assert.Equal(t, int64(1), calls.Load())
}

func TestClient_ServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int64

	handler := func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusBadGateway)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"id": 42, "first_name": "Ada", "last_name": "Lovelace"}`)
	}

	c := newTestClient(t, handler)
	constituent, err := c.CreateConstituent(context.Background(), ConstituentInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
	})

	require.NoError(t, err)
	assert.Equal(t, 42, constituent.ID)
	assert.Equal(t, int64(3), calls.Load())
}

func TestClient_MissingAPIKey(t *testing.T) {
	c := New(testConfig(), stubCreds{"api_base_url": "http://lgl.test/api/v1"}, newTestLogger())

	err := c.VerifyCredentials(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key")
}

func TestClient_SearchConstituents(t *testing.T) {
	handler := func(ctx *fasthttp.RequestCtx) {
		require.Equal(t, "/api/v1/constituents/search", string(ctx.Path()))
		assert.Equal(t, "eq:email_address=ada@example.org", string(ctx.QueryArgs().Peek("q[]")))

		raw, _ := json.Marshal([]Constituent{{ID: 7, FirstName: "Ada"}})
		resp := ListResponse{TotalItems: 1, ItemsCount: 1, Items: raw}
		ctx.SetContentType("application/json")
		json.NewEncoder(ctx).Encode(resp) //nolint:errcheck
	}

	c := newTestClient(t, handler)
	found, err := c.SearchConstituents(context.Background(), "ada@example.org")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 7, found[0].ID)
}

func TestClient_GetConstituent(t *testing.T) {
	handler := func(ctx *fasthttp.RequestCtx) {
		require.Equal(t, "GET", string(ctx.Method()))
		require.Equal(t, "/api/v1/constituents/7", string(ctx.Path()))

		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"id": 7, "first_name": "Ada", "last_name": "Lovelace"}`)
	}

	c := newTestClient(t, handler)
	constituent, err := c.GetConstituent(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, constituent.ID)
	assert.Equal(t, "Ada", constituent.FirstName)
}

func TestClient_UpdateConstituent(t *testing.T) {
	handler := func(ctx *fasthttp.RequestCtx) {
		require.Equal(t, "PATCH", string(ctx.Method()))
		require.Equal(t, "/api/v1/constituents/7", string(ctx.Path()))

		var input ConstituentInput
		require.NoError(t, json.Unmarshal(ctx.PostBody(), &input))
		assert.Equal(t, "Countess", input.FirstName)

		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"id": 7, "first_name": "Countess", "last_name": "Lovelace"}`)
	}

	c := newTestClient(t, handler)
	constituent, err := c.UpdateConstituent(context.Background(), 7, ConstituentInput{FirstName: "Countess"})
	require.NoError(t, err)
	assert.Equal(t, "Countess", constituent.FirstName)
}

func TestClient_CancelledContext(t *testing.T) {
	handler := func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
	}

	c := newTestClient(t, handler)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.VerifyCredentials(ctx)
	require.Error(t, err)
}
