package server

import (
	"encoding/json"
	"time"

	"lglsync/src/internal/core"
	"lglsync/src/internal/debuglog"
	"lglsync/src/internal/syncer"
	"lglsync/src/internal/version"

	"github.com/valyala/fasthttp"
)

// handleStatus reports a snapshot of every component.
func (s *Server) handleStatus(ctx *fasthttp.RequestCtx) {
	status := map[string]any{
		"service":     "lglsync",
		"version":     version.String(),
		"started_at":  s.startTime.Format(time.RFC3339),
		"environment": s.deps.Settings.Environment(),
		"server":      s.GetStats(),
		"settings":    s.deps.Settings.GetStats(),
		"store":       s.deps.Store.GetStats(),
		"lgl":         s.deps.Catalog.GetStats(),
		"syncer":      s.deps.Flows.GetStats(),
		"sessions":    s.deps.Sessions.GetStats(),
		"debug_log": map[string]any{
			"path":       s.deps.Debug.Path(),
			"format":     s.deps.Debug.Format(),
			"size_bytes": s.deps.Debug.Size(),
		},
	}
	if s.deps.Streamer != nil {
		status["stream"] = s.deps.Streamer.GetStats()
	}

	respondResult(ctx, core.OK("", status))
}

// handleLogGet returns debug log entries, most recent first. Level and
// search filters apply before the line limit.
func (s *Server) handleLogGet(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()

	limit := args.GetUintOrZero("lines")
	if limit < 1 {
		limit = s.deps.ViewLines
	}

	query := debuglog.Query{
		Level:  string(args.Peek("level")),
		Search: string(args.Peek("search")),
		Limit:  limit,
	}

	entries, err := debuglog.Read(s.deps.Debug.Path(), s.deps.Debug.Format(), query)
	if err != nil {
		respondError(ctx, fasthttp.StatusInternalServerError, "failed to read debug log")
		return
	}
	if entries == nil {
		entries = []core.LogEntry{}
	}

	respondResult(ctx, core.OK("", map[string]any{
		"entries": entries,
		"count":   len(entries),
	}))
}

func (s *Server) handleLogClear(ctx *fasthttp.RequestCtx) {
	if err := s.deps.Debug.Clear(); err != nil {
		s.logger.Error("msg", "Failed to clear debug log",
			"component", "server",
			"error", err)
		respondError(ctx, fasthttp.StatusInternalServerError, "failed to clear debug log")
		return
	}
	respondResult(ctx, core.OK("debug log cleared", nil))
}

func (s *Server) handleSettingsGet(ctx *fasthttp.RequestCtx) {
	redacted, err := s.deps.Settings.Redacted()
	if err != nil {
		respondError(ctx, fasthttp.StatusInternalServerError, "failed to load settings")
		return
	}
	respondResult(ctx, core.OK("", redacted))
}

// handleSettingsPut validates and persists the settings bag. Invalid
// input returns 422 with per-field errors and persists nothing.
func (s *Server) handleSettingsPut(ctx *fasthttp.RequestCtx) {
	var input map[string]any
	if err := json.Unmarshal(ctx.PostBody(), &input); err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}

	vr, err := s.deps.Settings.Update(input)
	if err != nil {
		s.logger.Error("msg", "Settings update failed",
			"component", "server",
			"error", err)
		respondError(ctx, fasthttp.StatusInternalServerError, "failed to persist settings")
		return
	}
	if !vr.Valid {
		respondJSON(ctx, fasthttp.StatusUnprocessableEntity, vr)
		return
	}

	respondResult(ctx, core.OK("settings updated", nil))
}

// handleSettingsVerify checks the active environment's credentials
// against the LGL API. A rejected key is a flow outcome, not a
// transport error.
func (s *Server) handleSettingsVerify(ctx *fasthttp.RequestCtx) {
	if err := s.deps.Catalog.VerifyCredentials(ctx); err != nil {
		respondResult(ctx, core.Failf("credential verification failed: %v", err))
		return
	}
	respondResult(ctx, core.OK("credentials verified", map[string]any{
		"environment": s.deps.Settings.Environment(),
	}))
}

func (s *Server) handleCatalogFunds(ctx *fasthttp.RequestCtx) {
	funds, err := s.deps.Catalog.Funds(ctx)
	if err != nil {
		respondResult(ctx, core.Failf("fund catalog fetch failed: %v", err))
		return
	}
	respondResult(ctx, core.OK("", map[string]any{"items": funds, "total": len(funds)}))
}

func (s *Server) handleCatalogCampaigns(ctx *fasthttp.RequestCtx) {
	campaigns, err := s.deps.Catalog.Campaigns(ctx)
	if err != nil {
		respondResult(ctx, core.Failf("campaign catalog fetch failed: %v", err))
		return
	}
	respondResult(ctx, core.OK("", map[string]any{"items": campaigns, "total": len(campaigns)}))
}

func (s *Server) handleCatalogEvents(ctx *fasthttp.RequestCtx) {
	events, err := s.deps.Catalog.Events(ctx)
	if err != nil {
		respondResult(ctx, core.Failf("event catalog fetch failed: %v", err))
		return
	}
	respondResult(ctx, core.OK("", map[string]any{"items": events, "total": len(events)}))
}

func (s *Server) handleCatalogMembershipLevels(ctx *fasthttp.RequestCtx) {
	levels, err := s.deps.Catalog.MembershipLevels(ctx)
	if err != nil {
		respondResult(ctx, core.Failf("membership level catalog fetch failed: %v", err))
		return
	}
	respondResult(ctx, core.OK("", map[string]any{"items": levels, "total": len(levels)}))
}

// handleSyncConstituent looks up or creates a constituent by email.
func (s *Server) handleSyncConstituent(ctx *fasthttp.RequestCtx) {
	var cust syncer.Customer
	if err := json.Unmarshal(ctx.PostBody(), &cust); err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	respondResult(ctx, s.deps.Flows.EnsureConstituent(ctx, cust))
}

func (s *Server) handleSyncMembership(ctx *fasthttp.RequestCtx) {
	var req struct {
		ConstituentID int `json:"constituent_id"`
		syncer.MembershipRequest
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ConstituentID < 1 {
		respondError(ctx, fasthttp.StatusBadRequest, "constituent_id is required")
		return
	}
	respondResult(ctx, s.deps.Flows.AddMembership(ctx, req.ConstituentID, req.MembershipRequest))
}

func (s *Server) handleSyncDonation(ctx *fasthttp.RequestCtx) {
	var req struct {
		ConstituentID int `json:"constituent_id"`
		syncer.DonationRequest
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ConstituentID < 1 {
		respondError(ctx, fasthttp.StatusBadRequest, "constituent_id is required")
		return
	}
	respondResult(ctx, s.deps.Flows.RecordDonation(ctx, req.ConstituentID, req.DonationRequest))
}

func (s *Server) handleSyncEvent(ctx *fasthttp.RequestCtx) {
	var req struct {
		ConstituentID int `json:"constituent_id"`
		syncer.EventRegistration
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ConstituentID < 1 {
		respondError(ctx, fasthttp.StatusBadRequest, "constituent_id is required")
		return
	}
	respondResult(ctx, s.deps.Flows.RegisterForEvent(ctx, req.ConstituentID, req.EventRegistration))
}

// handleOrders ingests one order and runs every line item through its
// flow. Item failures come back in the envelope, not as HTTP errors.
func (s *Server) handleOrders(ctx *fasthttp.RequestCtx) {
	var order syncer.Order
	if err := json.Unmarshal(ctx.PostBody(), &order); err != nil {
		respondError(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
		return
	}
	respondResult(ctx, s.deps.Flows.ProcessOrder(ctx, order))
}

func (s *Server) handleRegistrations(ctx *fasthttp.RequestCtx) {
	regs, err := s.deps.Store.ListRegistrations()
	if err != nil {
		respondError(ctx, fasthttp.StatusInternalServerError, "failed to list registrations")
		return
	}
	respondResult(ctx, core.OK("", map[string]any{
		"registrations": regs,
		"count":         len(regs),
	}))
}

func (s *Server) handleJournal(ctx *fasthttp.RequestCtx) {
	limit := ctx.QueryArgs().GetUintOrZero("limit")
	if limit < 1 {
		limit = 50
	}

	entries, err := s.deps.Store.RecentJournal(limit)
	if err != nil {
		respondError(ctx, fasthttp.StatusInternalServerError, "failed to read journal")
		return
	}
	respondResult(ctx, core.OK("", map[string]any{
		"entries": entries,
		"count":   len(entries),
	}))
}
