package syncer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"lglsync/src/internal/core"
	"lglsync/src/internal/debuglog"
	"lglsync/src/internal/lgl"
	"lglsync/src/internal/metrics"
	"lglsync/src/internal/settings"
	"lglsync/src/internal/store"

	"github.com/lixenwraith/log"
)

// CRM is the slice of the LGL API the flows consume. *lgl.Client
// satisfies it; tests substitute a stub.
type CRM interface {
	SearchConstituents(ctx context.Context, email string) ([]lgl.Constituent, error)
	CreateConstituent(ctx context.Context, input lgl.ConstituentInput) (*lgl.Constituent, error)
	CreateGift(ctx context.Context, constituentID int, input lgl.GiftInput) (*lgl.Gift, error)
	CreateMembership(ctx context.Context, constituentID int, input lgl.MembershipInput) (*lgl.Membership, error)
	RegisterEventAttendee(ctx context.Context, eventID int, input lgl.AttendanceInput) (*lgl.Attendance, error)
}

// Customer identifies the person a flow acts for.
type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	OrgName   string `json:"org_name,omitempty"`
}

// MembershipRequest describes a membership purchase to push to LGL.
type MembershipRequest struct {
	LevelID   int     `json:"membership_level_id"`
	LevelName string  `json:"level_name,omitempty"`
	Amount    float64 `json:"amount"`
	StartDate string  `json:"start_date,omitempty"`
	EndDate   string  `json:"end_date,omitempty"`
	Note      string  `json:"note,omitempty"`
	OrderID   string  `json:"order_id,omitempty"`
}

// DonationRequest describes a donation to record as a gift.
type DonationRequest struct {
	Amount  float64 `json:"amount"`
	Date    string  `json:"date,omitempty"`
	Note    string  `json:"note,omitempty"`
	OrderID string  `json:"order_id,omitempty"`
}

// EventRegistration describes an event or class signup.
type EventRegistration struct {
	EventID  int    `json:"event_id"`
	Attendee string `json:"attendee,omitempty"`
	Note     string `json:"note,omitempty"`
	OrderID  string `json:"order_id,omitempty"`
}

// Flow names used for the journal and metrics labels.
const (
	flowConstituent = "constituent"
	flowMembership  = "membership"
	flowDonation    = "donation"
	flowEvent       = "event"
	flowOrder       = "order"
)

const dateLayout = "2006-01-02"

// Syncer composes the settings bag, the CRM client, local persistence
// and the debug log into the integration flows the admin API exposes.
type Syncer struct {
	// Application
	crm      CRM
	settings *settings.Service
	store    *store.Store
	debug    *debuglog.Logger
	logger   *log.Logger

	// Statistics
	flowsRun    atomic.Uint64
	flowsFailed atomic.Uint64
	lastFlow    atomic.Value // time.Time
}

// New creates a syncer. All dependencies are required.
func New(crm CRM, svc *settings.Service, st *store.Store, debug *debuglog.Logger, logger *log.Logger) *Syncer {
	return &Syncer{
		crm:      crm,
		settings: svc,
		store:    st,
		debug:    debug,
		logger:   logger,
	}
}

// EnsureConstituent finds the constituent for a customer's email, or
// creates one when no match exists. The result carries the constituent
// ID and whether a record was created.
func (s *Syncer) EnsureConstituent(ctx context.Context, cust Customer) core.Result {
	id, created, err := s.ensureConstituent(ctx, cust)
	if err != nil {
		return s.fail(flowConstituent, "", err)
	}

	message := "constituent found"
	if created {
		message = "constituent created"
	}
	return s.ok(flowConstituent, "", message, map[string]any{
		"constituent_id": id,
		"created":        created,
	})
}

func (s *Syncer) ensureConstituent(ctx context.Context, cust Customer) (int, bool, error) {
	email := strings.TrimSpace(strings.ToLower(cust.Email))
	if email == "" {
		return 0, false, fmt.Errorf("customer email is required")
	}

	s.debug.InfoWithData("Searching for constituent", map[string]any{
		"email": email,
	})

	matches, err := s.crm.SearchConstituents(ctx, email)
	if err != nil {
		return 0, false, fmt.Errorf("constituent search failed: %w", err)
	}
	if len(matches) > 0 {
		s.debug.InfoWithData("Constituent match found", map[string]any{
			"constituent_id": matches[0].ID,
			"matches":        len(matches),
		})
		return matches[0].ID, false, nil
	}

	input := lgl.ConstituentInput{
		FirstName: strings.TrimSpace(cust.FirstName),
		LastName:  strings.TrimSpace(cust.LastName),
		OrgName:   strings.TrimSpace(cust.OrgName),
		EmailAddress: []lgl.EmailAddress{
			{Address: email, IsPreferred: true},
		},
	}
	if input.FirstName == "" && input.LastName == "" && input.OrgName == "" {
		return 0, false, fmt.Errorf("customer name is required to create a constituent")
	}

	constituent, err := s.crm.CreateConstituent(ctx, input)
	if err != nil {
		return 0, false, fmt.Errorf("constituent creation failed: %w", err)
	}

	s.debug.InfoWithData("Constituent created", map[string]any{
		"constituent_id": constituent.ID,
		"email":          email,
	})
	s.logger.Info("msg", "Constituent created",
		"component", "syncer",
		"constituent_id", constituent.ID)

	return constituent.ID, true, nil
}

// AddMembership creates the LGL membership for a constituent plus the
// gift recording its payment, both attributed per the fund and campaign
// mapping of the active environment.
func (s *Syncer) AddMembership(ctx context.Context, constituentID int, req MembershipRequest) core.Result {
	membership, gift, err := s.addMembership(ctx, constituentID, req)
	if err != nil {
		return s.fail(flowMembership, req.OrderID, err)
	}

	data := map[string]any{
		"constituent_id": constituentID,
		"membership_id":  membership.ID,
	}
	if gift != nil {
		data["gift_id"] = gift.ID
	}
	return s.ok(flowMembership, req.OrderID, "membership added", data)
}

func (s *Syncer) addMembership(ctx context.Context, constituentID int, req MembershipRequest) (*lgl.Membership, *lgl.Gift, error) {
	if constituentID <= 0 {
		return nil, nil, fmt.Errorf("constituent id is required")
	}
	if req.LevelID <= 0 {
		return nil, nil, fmt.Errorf("membership level id is required")
	}

	start := req.StartDate
	if start == "" {
		start = time.Now().UTC().Format(dateLayout)
	}
	end := req.EndDate
	if end == "" {
		// Annual term unless the caller says otherwise
		if from, err := time.Parse(dateLayout, start); err == nil {
			end = from.AddDate(1, 0, 0).Format(dateLayout)
		}
	}

	note := req.Note
	if note == "" && req.LevelName != "" {
		note = "Membership: " + req.LevelName
	}

	s.debug.InfoWithData("Adding membership", map[string]any{
		"constituent_id": constituentID,
		"level_id":       req.LevelID,
		"date_start":     start,
		"finish_date":    end,
	})

	membership, err := s.crm.CreateMembership(ctx, constituentID, lgl.MembershipInput{
		MembershipLevelID: req.LevelID,
		StartDate:         start,
		EndDate:           end,
		Note:              note,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("membership creation failed: %w", err)
	}

	// A zero amount is a comp membership; no gift to record.
	var gift *lgl.Gift
	if req.Amount > 0 {
		gift, err = s.crm.CreateGift(ctx, constituentID, lgl.GiftInput{
			Amount:         req.Amount,
			FundID:         s.resolveID("membership_fund_id"),
			CampaignID:     s.resolveID("membership_campaign_id"),
			GiftCategoryID: s.resolveID("gift_category_id"),
			Date:           start,
			Note:           note,
			ExternalID:     req.OrderID,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("membership gift failed: %w", err)
		}
	}

	s.logger.Info("msg", "Membership added",
		"component", "syncer",
		"constituent_id", constituentID,
		"membership_id", membership.ID)

	return membership, gift, nil
}

// RecordDonation records a donation as a gift against the donation fund
// and campaign of the active environment.
func (s *Syncer) RecordDonation(ctx context.Context, constituentID int, req DonationRequest) core.Result {
	gift, err := s.recordDonation(ctx, constituentID, req)
	if err != nil {
		return s.fail(flowDonation, req.OrderID, err)
	}
	return s.ok(flowDonation, req.OrderID, "donation recorded", map[string]any{
		"constituent_id": constituentID,
		"gift_id":        gift.ID,
		"amount":         gift.Amount,
	})
}

func (s *Syncer) recordDonation(ctx context.Context, constituentID int, req DonationRequest) (*lgl.Gift, error) {
	if constituentID <= 0 {
		return nil, fmt.Errorf("constituent id is required")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("donation amount must be positive")
	}

	date := req.Date
	if date == "" {
		date = time.Now().UTC().Format(dateLayout)
	}

	s.debug.InfoWithData("Recording donation", map[string]any{
		"constituent_id": constituentID,
		"amount":         req.Amount,
		"received_date":  date,
	})

	gift, err := s.crm.CreateGift(ctx, constituentID, lgl.GiftInput{
		Amount:         req.Amount,
		FundID:         s.resolveID("donation_fund_id"),
		CampaignID:     s.resolveID("donation_campaign_id"),
		GiftCategoryID: s.resolveID("gift_category_id"),
		Date:           date,
		Note:           req.Note,
		ExternalID:     req.OrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("donation gift failed: %w", err)
	}

	s.logger.Info("msg", "Donation recorded",
		"component", "syncer",
		"constituent_id", constituentID,
		"gift_id", gift.ID)

	return gift, nil
}

// RegisterForEvent registers a constituent as an event attendee and
// keeps a local registration record for auditing.
func (s *Syncer) RegisterForEvent(ctx context.Context, constituentID int, req EventRegistration) core.Result {
	reg, err := s.registerForEvent(ctx, constituentID, req)
	if err != nil {
		return s.fail(flowEvent, req.OrderID, err)
	}
	return s.ok(flowEvent, req.OrderID, "event registration recorded", map[string]any{
		"constituent_id":  constituentID,
		"event_id":        req.EventID,
		"registration_id": reg.ID.String(),
	})
}

func (s *Syncer) registerForEvent(ctx context.Context, constituentID int, req EventRegistration) (*store.Registration, error) {
	if constituentID <= 0 {
		return nil, fmt.Errorf("constituent id is required")
	}
	if req.EventID <= 0 {
		return nil, fmt.Errorf("event id is required")
	}

	s.debug.InfoWithData("Registering event attendee", map[string]any{
		"constituent_id": constituentID,
		"event_id":       req.EventID,
		"attendee":       req.Attendee,
	})

	note := req.Note
	if note == "" && req.Attendee != "" {
		note = "Attendee: " + req.Attendee
	}

	attendance, err := s.crm.RegisterEventAttendee(ctx, req.EventID, lgl.AttendanceInput{
		ConstituentID: constituentID,
		Note:          note,
	})
	if err != nil {
		return nil, fmt.Errorf("event registration failed: %w", err)
	}

	reg := &store.Registration{
		OrderID:       req.OrderID,
		ConstituentID: constituentID,
		EventID:       req.EventID,
		Attendee:      req.Attendee,
	}
	if err := s.store.CreateRegistration(reg); err != nil {
		// The remote registration cannot be undone; report the failure
		// so the operator can reconcile the missing audit row.
		s.debug.ErrorWithData("Registration stored remotely but not locally", map[string]any{
			"attendance_id": attendance.ID,
			"error":         err.Error(),
		})
		s.logger.Warn("msg", "Local registration record failed",
			"component", "syncer",
			"event_id", req.EventID,
			"error", err)
		return nil, fmt.Errorf("local registration record failed: %w", err)
	}

	s.logger.Info("msg", "Event registration recorded",
		"component", "syncer",
		"constituent_id", constituentID,
		"event_id", req.EventID,
		"registration_id", reg.ID.String())

	return reg, nil
}

// resolveID resolves a mapping key through the settings precedence chain
// and parses it as a positive integer ID. Unparseable values resolve to
// zero, which the client omits from request bodies.
func (s *Syncer) resolveID(baseKey string) int {
	raw := strings.TrimSpace(s.settings.Resolve(baseKey))
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ok journals a successful flow, bumps counters and builds the result.
func (s *Syncer) ok(flow, orderID, message string, data map[string]any) core.Result {
	s.flowsRun.Add(1)
	s.lastFlow.Store(time.Now())
	metrics.SyncFlows.WithLabelValues(flow, "ok").Inc()

	s.journal(flow, orderID, true, message)
	return core.OK(message, data)
}

// fail journals a failed flow, bumps counters, writes the error to the
// debug log and builds the failure result.
func (s *Syncer) fail(flow, orderID string, err error) core.Result {
	s.flowsRun.Add(1)
	s.flowsFailed.Add(1)
	s.lastFlow.Store(time.Now())
	metrics.SyncFlows.WithLabelValues(flow, "error").Inc()

	s.debug.ErrorWithData("Sync flow failed", map[string]any{
		"flow":  flow,
		"error": err.Error(),
	})
	s.logger.Warn("msg", "Sync flow failed",
		"component", "syncer",
		"flow", flow,
		"error", err)

	s.journal(flow, orderID, false, err.Error())
	return core.Fail(err.Error())
}

func (s *Syncer) journal(flow, orderID string, success bool, message string) {
	entry := &store.JournalEntry{
		Flow:    flow,
		OrderID: orderID,
		Success: success,
		Message: message,
	}
	if err := s.store.AppendJournal(entry); err != nil {
		s.logger.Warn("msg", "Journal write failed",
			"component", "syncer",
			"flow", flow,
			"error", err)
	}
}

// GetStats returns syncer statistics.
func (s *Syncer) GetStats() map[string]any {
	stats := map[string]any{
		"flows_run":    s.flowsRun.Load(),
		"flows_failed": s.flowsFailed.Load(),
	}
	if t, ok := s.lastFlow.Load().(time.Time); ok {
		stats["last_flow"] = t.Format(time.RFC3339)
	}
	return stats
}
