package core

// Argon2id parameters
const (
	Argon2Time    = 3
	Argon2Memory  = 64 * 1024 // 64 MB
	Argon2Threads = 4
	Argon2SaltLen = 16
	Argon2KeyLen  = 32
)

const DefaultTokenLength = 32

// Fallback values used as the last step of settings resolution when
// neither an environment-prefixed key nor a legacy key carries a value.
const (
	FallbackAPIBaseURL = "https://api.littlegreenlight.com/api/v1"
	FallbackPageSize   = 25

	FallbackMembershipFundID     = "1"
	FallbackMembershipCampaignID = "1"
	FallbackDonationFundID       = "2"
	FallbackDonationCampaignID   = "2"
	FallbackEventFundID          = "3"
	FallbackGiftCategoryID       = "1"
)
