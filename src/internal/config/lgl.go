package config

// LGLConfig tunes the Little Green Light API client. Credentials live in
// the settings bag, not here, so they can differ per environment.
type LGLConfig struct {
	// Request timeout in seconds
	TimeoutSeconds int64 `toml:"timeout_seconds"`

	// Retry behavior for 5xx and transport failures
	MaxRetries   int64   `toml:"max_retries"`
	RetryDelayMS int64   `toml:"retry_delay_ms"`
	RetryBackoff float64 `toml:"retry_backoff"`

	// Request pacing (LGL allows roughly 300 requests per 5 minutes)
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`

	// Pagination
	PageSize int `toml:"page_size"`
	MaxPages int `toml:"max_pages"`
}
