package config

// ServerConfig describes the admin HTTP API server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	ReadTimeoutMS  int64 `toml:"read_timeout_ms"`
	WriteTimeoutMS int64 `toml:"write_timeout_ms"`

	// Authentication for all /api routes
	Auth *AuthConfig `toml:"auth"`

	// Per-IP request limiting
	NetLimit *NetLimitConfig `toml:"net_limit"`
}

type NetLimitConfig struct {
	// Enable request limiting
	Enabled bool `toml:"enabled"`

	// Requests per second per client IP
	RequestsPerSecond float64 `toml:"requests_per_second"`

	// Burst size (token bucket)
	BurstSize int `toml:"burst_size"`

	// Response when limited
	ResponseCode    int    `toml:"response_code"`    // Default: 429
	ResponseMessage string `toml:"response_message"` // Default: "Rate limit exceeded"

	// Maximum tracked IPs before eviction
	MaxTrackedIPs int `toml:"max_tracked_ips"`
}
