package server

import (
	"encoding/json"

	"lglsync/src/internal/core"

	"github.com/valyala/fasthttp"
)

func respondJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	if err := json.NewEncoder(ctx).Encode(v); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}

// respondResult encodes a flow outcome. Failed results still ship with
// 200: the request was handled, the operation reports its own success.
func respondResult(ctx *fasthttp.RequestCtx, res core.Result) {
	respondJSON(ctx, fasthttp.StatusOK, res)
}

func respondError(ctx *fasthttp.RequestCtx, status int, message string) {
	respondJSON(ctx, status, core.Fail(message))
}
