package syncer

import (
	"context"
	"fmt"
	"strings"

	"lglsync/src/internal/core"
	"lglsync/src/internal/metrics"
)

// Line item types an order can carry. Anything else is reported as a
// per-item failure without aborting the order.
const (
	ItemMembership = "membership"
	ItemDonation   = "donation"
	ItemEvent      = "event_registration"
)

// Order is the ingest payload for the manual "sync this order" action.
type Order struct {
	OrderID  string     `json:"order_id"`
	Customer Customer   `json:"customer"`
	Items    []LineItem `json:"items"`
}

// LineItem is one purchasable mapped to an integration flow. Which
// fields matter depends on Type.
type LineItem struct {
	Type     string  `json:"type"`
	Name     string  `json:"name,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	LevelID  int     `json:"membership_level_id,omitempty"`
	EventID  int     `json:"event_id,omitempty"`
	Attendee string  `json:"attendee,omitempty"`
	Note     string  `json:"note,omitempty"`
}

// ItemResult reports the outcome of one line item within an order.
type ItemResult struct {
	Index   int    `json:"index"`
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ProcessOrder ensures the order's customer exists as a constituent,
// then runs one flow per line item. Item failures are collected rather
// than aborting the remaining items; the order as a whole succeeds only
// when every item does.
func (s *Syncer) ProcessOrder(ctx context.Context, order Order) core.Result {
	if strings.TrimSpace(order.OrderID) == "" {
		return s.fail(flowOrder, "", fmt.Errorf("order id is required"))
	}
	if len(order.Items) == 0 {
		return s.fail(flowOrder, order.OrderID, fmt.Errorf("order has no line items"))
	}

	s.debug.InfoWithData("Processing order", map[string]any{
		"order_id": order.OrderID,
		"email":    order.Customer.Email,
		"items":    len(order.Items),
	})

	constituentID, created, err := s.ensureConstituent(ctx, order.Customer)
	if err != nil {
		return s.fail(flowOrder, order.OrderID, fmt.Errorf("order %s: %w", order.OrderID, err))
	}
	s.journal(flowConstituent, order.OrderID, true, fmt.Sprintf("constituent %d ready", constituentID))

	results := make([]ItemResult, 0, len(order.Items))
	failures := 0
	for i, item := range order.Items {
		itemErr := s.processItem(ctx, constituentID, order.OrderID, item)

		result := ItemResult{Index: i, Type: item.Type, Success: itemErr == nil}
		flow := itemFlow(item.Type)
		if itemErr != nil {
			failures++
			result.Message = itemErr.Error()
			metrics.SyncFlows.WithLabelValues(flow, "error").Inc()
			s.journal(flow, order.OrderID, false, itemErr.Error())
			s.debug.ErrorWithData("Order item failed", map[string]any{
				"order_id": order.OrderID,
				"index":    i,
				"type":     item.Type,
				"error":    itemErr.Error(),
			})
		} else {
			result.Message = "synced"
			metrics.SyncFlows.WithLabelValues(flow, "ok").Inc()
			s.journal(flow, order.OrderID, true, fmt.Sprintf("item %d synced", i))
		}
		results = append(results, result)
	}

	data := map[string]any{
		"order_id":            order.OrderID,
		"constituent_id":      constituentID,
		"constituent_created": created,
		"items":               results,
	}

	if failures > 0 {
		message := fmt.Sprintf("order %s: %d of %d items failed", order.OrderID, failures, len(order.Items))
		s.flowsRun.Add(1)
		s.flowsFailed.Add(1)
		metrics.SyncFlows.WithLabelValues(flowOrder, "error").Inc()
		s.journal(flowOrder, order.OrderID, false, message)
		s.logger.Warn("msg", "Order processed with failures",
			"component", "syncer",
			"order_id", order.OrderID,
			"failed", failures,
			"items", len(order.Items))
		return core.Result{Success: false, Message: message, Data: data}
	}

	message := fmt.Sprintf("order %s synced", order.OrderID)
	s.flowsRun.Add(1)
	metrics.SyncFlows.WithLabelValues(flowOrder, "ok").Inc()
	s.journal(flowOrder, order.OrderID, true, message)
	s.logger.Info("msg", "Order processed",
		"component", "syncer",
		"order_id", order.OrderID,
		"constituent_id", constituentID,
		"items", len(order.Items))
	return core.OK(message, data)
}

// processItem dispatches one line item to its flow. Internal flow
// helpers are used directly so per-item failures stay errors instead of
// nested result envelopes.
func (s *Syncer) processItem(ctx context.Context, constituentID int, orderID string, item LineItem) error {
	switch item.Type {
	case ItemMembership:
		_, _, err := s.addMembership(ctx, constituentID, MembershipRequest{
			LevelID:   item.LevelID,
			LevelName: item.Name,
			Amount:    item.Amount,
			Note:      item.Note,
			OrderID:   orderID,
		})
		return err

	case ItemDonation:
		_, err := s.recordDonation(ctx, constituentID, DonationRequest{
			Amount:  item.Amount,
			Note:    item.Note,
			OrderID: orderID,
		})
		return err

	case ItemEvent:
		_, err := s.registerForEvent(ctx, constituentID, EventRegistration{
			EventID:  item.EventID,
			Attendee: item.Attendee,
			Note:     item.Note,
			OrderID:  orderID,
		})
		return err

	default:
		return fmt.Errorf("unknown line item type %q", item.Type)
	}
}

func itemFlow(itemType string) string {
	switch itemType {
	case ItemMembership:
		return flowMembership
	case ItemDonation:
		return flowDonation
	case ItemEvent:
		return flowEvent
	default:
		return "unknown"
	}
}
