package lgl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Funds fetches the full fund catalog.
func (c *Client) Funds(ctx context.Context) ([]Fund, error) {
	var items []Fund
	if err := c.fetchAll(ctx, "/funds", "funds.list", &items); err != nil {
		return nil, fmt.Errorf("failed to list funds: %w", err)
	}
	return items, nil
}

// Campaigns fetches the full campaign catalog.
func (c *Client) Campaigns(ctx context.Context) ([]Campaign, error) {
	var items []Campaign
	if err := c.fetchAll(ctx, "/campaigns", "campaigns.list", &items); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return items, nil
}

// Events fetches the full event catalog.
func (c *Client) Events(ctx context.Context) ([]Event, error) {
	var items []Event
	if err := c.fetchAll(ctx, "/events", "events.list", &items); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return items, nil
}

// MembershipLevels fetches all configured membership levels.
func (c *Client) MembershipLevels(ctx context.Context) ([]MembershipLevel, error) {
	var items []MembershipLevel
	if err := c.fetchAll(ctx, "/membership_levels", "membership_levels.list", &items); err != nil {
		return nil, fmt.Errorf("failed to list membership levels: %w", err)
	}
	return items, nil
}

// fetchAll walks a paginated list endpoint with limit/offset until
// every item has been collected, up to the configured page cap. out
// must be a pointer to a slice of the endpoint's item type.
func (c *Client) fetchAll(ctx context.Context, path, endpoint string, out any) error {
	var collected []json.RawMessage
	offset := 0

	for page := 0; page < c.config.MaxPages; page++ {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(c.config.PageSize))
		query.Set("offset", strconv.Itoa(offset))

		var resp ListResponse
		if err := c.do(ctx, "GET", path, endpoint, query, nil, &resp); err != nil {
			return err
		}

		var pageItems []json.RawMessage
		if err := decodeItems(resp, &pageItems); err != nil {
			return err
		}
		collected = append(collected, pageItems...)

		// An empty page means the server has nothing more regardless
		// of what total_items claims; guards against a loop on a
		// miscounting endpoint.
		if len(pageItems) == 0 {
			break
		}

		advance := resp.ItemsCount
		if advance < len(pageItems) {
			advance = len(pageItems)
		}
		offset += advance
		if offset >= resp.TotalItems {
			break
		}
	}

	joined, err := json.Marshal(collected)
	if err != nil {
		return fmt.Errorf("failed to merge pages: %w", err)
	}
	if err := json.Unmarshal(joined, out); err != nil {
		return fmt.Errorf("failed to decode items: %w", err)
	}
	return nil
}
