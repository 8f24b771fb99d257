package config

// StreamConfig describes the optional TCP live-tail server for the
// debug log.
type StreamConfig struct {
	Enabled    bool   `toml:"enabled"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	BufferSize int    `toml:"buffer_size"`
	Format     string `toml:"format"`

	Filters   []FilterConfig  `toml:"filters"`
	Heartbeat HeartbeatConfig `toml:"heartbeat"`

	// Per-IP connection limiting
	NetLimit *NetLimitConfig `toml:"net_limit"`
}

type HeartbeatConfig struct {
	Enabled          bool `toml:"enabled"`
	IntervalSeconds  int  `toml:"interval_seconds"`
	IncludeTimestamp bool `toml:"include_timestamp"`
	IncludeStats     bool `toml:"include_stats"`
}
