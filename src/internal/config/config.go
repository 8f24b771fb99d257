package config

// Config is the root service configuration, distinct from the mutable
// integration settings bag persisted in the store.
type Config struct {
	// Suppress all console output (set via --quiet)
	Quiet bool `toml:"quiet"`

	Logging  *LogConfig     `toml:"logging"`
	Server   ServerConfig   `toml:"server"`
	Store    StoreConfig    `toml:"store"`
	DebugLog DebugLogConfig `toml:"debuglog"`
	Stream   StreamConfig   `toml:"stream"`
	LGL      LGLConfig      `toml:"lgl"`
}

func defaults() *Config {
	return &Config{
		Logging: DefaultLogConfig(),
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			ReadTimeoutMS:  10000,
			WriteTimeoutMS: 30000,
			Auth:           &AuthConfig{Type: "none"},
		},
		Store: StoreConfig{
			Path: "./data/lglsync.db",
		},
		DebugLog: DebugLogConfig{
			Enabled:          true,
			Path:             "./data/debug.log",
			Format:           "text",
			PollIntervalMS:   250,
			DefaultViewLines: 100,
		},
		Stream: StreamConfig{
			Enabled:    false,
			Host:       "127.0.0.1",
			Port:       9090,
			BufferSize: 1000,
			Format:     "text",
			Heartbeat: HeartbeatConfig{
				Enabled:          true,
				IntervalSeconds:  30,
				IncludeTimestamp: true,
				IncludeStats:     false,
			},
		},
		LGL: LGLConfig{
			TimeoutSeconds:    30,
			MaxRetries:        3,
			RetryDelayMS:      500,
			RetryBackoff:      2.0,
			RequestsPerSecond: 1.0,
			Burst:             5,
			PageSize:          25,
			MaxPages:          200,
		},
	}
}
