package lgl

import "encoding/json"

// ListResponse is the envelope every paginated LGL list endpoint
// returns. Items stays raw until the caller decodes it into the
// endpoint's item type.
type ListResponse struct {
	TotalItems int             `json:"total_items"`
	ItemsCount int             `json:"items_count"`
	Limit      int             `json:"limit"`
	Offset     int             `json:"offset"`
	ItemType   string          `json:"item_type"`
	Items      json.RawMessage `json:"items"`
}

// Constituent is an LGL donor/member record.
type Constituent struct {
	ID           int            `json:"id"`
	ExternalID   string         `json:"external_constituent_id,omitempty"`
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	OrgName      string         `json:"org_name,omitempty"`
	Addressee    string         `json:"addressee,omitempty"`
	EmailAddress []EmailAddress `json:"email_addresses,omitempty"`
}

type EmailAddress struct {
	Address     string `json:"address"`
	EmailTypeID int    `json:"email_address_type_id,omitempty"`
	IsPreferred bool   `json:"is_preferred,omitempty"`
}

// ConstituentInput is the create/update payload.
type ConstituentInput struct {
	ExternalID   string         `json:"external_constituent_id,omitempty"`
	FirstName    string         `json:"first_name"`
	LastName     string         `json:"last_name"`
	OrgName      string         `json:"org_name,omitempty"`
	EmailAddress []EmailAddress `json:"email_addresses,omitempty"`
}

// Gift is a recorded payment attributed to a fund and campaign.
type Gift struct {
	ID             int     `json:"id"`
	ConstituentID  int     `json:"constituent_id"`
	Amount         float64 `json:"received_amount"`
	FundID         int     `json:"fund_id,omitempty"`
	CampaignID     int     `json:"campaign_id,omitempty"`
	GiftCategoryID int     `json:"gift_category_id,omitempty"`
	Date           string  `json:"received_date,omitempty"`
}

type GiftInput struct {
	Amount         float64 `json:"received_amount"`
	FundID         int     `json:"fund_id,omitempty"`
	CampaignID     int     `json:"campaign_id,omitempty"`
	GiftCategoryID int     `json:"gift_category_id,omitempty"`
	Date           string  `json:"received_date,omitempty"`
	Note           string  `json:"note,omitempty"`
	ExternalID     string  `json:"external_id,omitempty"`
}

// Membership is an LGL membership row tied to a level.
type Membership struct {
	ID                int    `json:"id"`
	ConstituentID     int    `json:"constituent_id"`
	MembershipLevelID int    `json:"membership_level_id"`
	StartDate         string `json:"date_start,omitempty"`
	EndDate           string `json:"finish_date,omitempty"`
	Note              string `json:"note,omitempty"`
}

type MembershipInput struct {
	MembershipLevelID int    `json:"membership_level_id"`
	StartDate         string `json:"date_start,omitempty"`
	EndDate           string `json:"finish_date,omitempty"`
	Note              string `json:"note,omitempty"`
}

// Attendance links a constituent to an event.
type Attendance struct {
	ID            int    `json:"id"`
	EventID       int    `json:"event_id"`
	ConstituentID int    `json:"constituent_id"`
	Note          string `json:"notes,omitempty"`
}

type AttendanceInput struct {
	ConstituentID int    `json:"constituent_id"`
	Note          string `json:"notes,omitempty"`
}

// Catalog item types fetched for product-mapping screens.
type Fund struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

type Campaign struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

type Event struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Date        string `json:"date,omitempty"`
	Description string `json:"description,omitempty"`
}

type MembershipLevel struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"ordinal,omitempty"`
}
