package config

// DebugLogConfig controls the integration debug log file: the flat
// text (or JSON-lines) log that sync flows write and the admin log
// viewer reads back.
type DebugLogConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`

	// Entry format: "text" or "jsonl"
	Format string `toml:"format"`

	// Tail poll interval for the live stream
	PollIntervalMS int64 `toml:"poll_interval_ms"`

	// Entries returned by the log view when no limit is given
	DefaultViewLines int `toml:"default_view_lines"`
}
