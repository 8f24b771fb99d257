package settings

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"lglsync/src/internal/core"
)

// Rule checks a single sanitized value. A non-nil error becomes a
// field-level validation message.
type Rule func(value any) error

// Field declares one settings key: default value, sanitizer and
// validation rules. Missing keys are filled from Default on load.
type Field struct {
	Default  any
	Secret   bool
	Sanitize func(any) any
	Rules    []Rule
}

// Schema returns the declarative field registry for the settings bag.
// Environment-resolvable keys exist three times: the legacy unprefixed
// key (kept for settings imported from installations that predate
// environments) plus a dev_ and live_ variant.
func Schema() map[string]Field {
	fields := map[string]Field{
		"environment": {
			Default:  core.EnvLive,
			Sanitize: sanitizeLower,
			Rules:    []Rule{oneOf(core.EnvDev, core.EnvLive)},
		},
		"page_size": {
			Default:  core.FallbackPageSize,
			Sanitize: sanitizeInt,
			Rules:    []Rule{intRange(1, 100)},
		},
		"sync_enabled": {
			Default:  true,
			Sanitize: sanitizeBool,
		},
		"debug_logging": {
			Default:  true,
			Sanitize: sanitizeBool,
		},
		"notification_email": {
			Default:  "",
			Sanitize: sanitizeEmail,
			Rules:    []Rule{optionalEmail()},
		},
	}

	for base, field := range envFields() {
		fields[base] = field
		for _, env := range []string{core.EnvDev, core.EnvLive} {
			variant := field
			variant.Default = ""
			fields[env+"_"+base] = variant
		}
	}

	return fields
}

// envFields lists the keys subject to {env}_{base} -> base -> fallback
// resolution. Defaults are empty so an unset key falls through.
func envFields() map[string]Field {
	return map[string]Field{
		"api_key": {
			Default:  "",
			Secret:   true,
			Sanitize: sanitizeString,
		},
		"api_base_url": {
			Default:  "",
			Sanitize: sanitizeString,
			Rules:    []Rule{optionalURL()},
		},
		"membership_fund_id": {
			Default:  "",
			Sanitize: sanitizeString,
			Rules:    []Rule{optionalDigits()},
		},
		"membership_campaign_id": {
			Default:  "",
			Sanitize: sanitizeString,
			Rules:    []Rule{optionalDigits()},
		},
		"donation_fund_id": {
			Default:  "",
			Sanitize: sanitizeString,
			Rules:    []Rule{optionalDigits()},
		},
		"donation_campaign_id": {
			Default:  "",
			Sanitize: sanitizeString,
			Rules:    []Rule{optionalDigits()},
		},
		"event_fund_id": {
			Default:  "",
			Sanitize: sanitizeString,
			Rules:    []Rule{optionalDigits()},
		},
		"gift_category_id": {
			Default:  "",
			Sanitize: sanitizeString,
			Rules:    []Rule{optionalDigits()},
		},
	}
}

// fallbacks maps environment-resolvable base keys to the hardcoded
// constant used when neither the env-prefixed nor the legacy key is set.
var fallbacks = map[string]string{
	"api_base_url":           core.FallbackAPIBaseURL,
	"membership_fund_id":     core.FallbackMembershipFundID,
	"membership_campaign_id": core.FallbackMembershipCampaignID,
	"donation_fund_id":       core.FallbackDonationFundID,
	"donation_campaign_id":   core.FallbackDonationCampaignID,
	"event_fund_id":          core.FallbackEventFundID,
	"gift_category_id":       core.FallbackGiftCategoryID,
}

// --- sanitizers ---

func sanitizeString(v any) any {
	return strings.TrimSpace(asString(v))
}

func sanitizeLower(v any) any {
	return strings.ToLower(strings.TrimSpace(asString(v)))
}

func sanitizeEmail(v any) any {
	return strings.ToLower(strings.TrimSpace(asString(v)))
}

// sanitizeInt accepts numbers and numeric strings. Anything else passes
// through unchanged so a rule can report it.
func sanitizeInt(v any) any {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n
		}
	}
	return v
}

// sanitizeBool accepts bools plus the usual string and numeric spellings.
func sanitizeBool(v any) any {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off", "":
			return false
		}
	case float64:
		return val != 0
	case int:
		return val != 0
	}
	return v
}

// --- rules ---

func oneOf(allowed ...string) Rule {
	return func(v any) error {
		s := asString(v)
		for _, a := range allowed {
			if s == a {
				return nil
			}
		}
		return fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
	}
}

func intRange(lo, hi int) Rule {
	return func(v any) error {
		n, ok := v.(int)
		if !ok {
			return fmt.Errorf("must be a number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

// optionalDigits passes empty values and requires digits otherwise.
func optionalDigits() Rule {
	return func(v any) error {
		s := asString(v)
		if s == "" {
			return nil
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return fmt.Errorf("must be a numeric identifier")
			}
		}
		return nil
	}
}

func optionalEmail() Rule {
	return func(v any) error {
		s := asString(v)
		if s == "" {
			return nil
		}
		if _, err := mail.ParseAddress(s); err != nil {
			return fmt.Errorf("must be a valid email address")
		}
		return nil
	}
}

func optionalURL() Rule {
	return func(v any) error {
		s := asString(v)
		if s == "" {
			return nil
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("must be an absolute URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("must use http or https")
		}
		return nil
	}
}

// asString renders scalar values the way they would appear in a form
// field. Non-scalars become empty strings.
func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}
