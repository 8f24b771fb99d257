package config

import (
	"fmt"
	"strings"
)

// validate checks the entire configuration tree after scanning.
func (c *Config) validate() error {
	if c.Logging != nil {
		if err := validateLogConfig(c.Logging); err != nil {
			return fmt.Errorf("logging config: %w", err)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutMS < 0 || c.Server.WriteTimeoutMS < 0 {
		return fmt.Errorf("server: timeouts must not be negative")
	}
	if err := validateAuth(c.Server.Auth); err != nil {
		return fmt.Errorf("server auth: %w", err)
	}
	if nl := c.Server.NetLimit; nl != nil && nl.Enabled {
		if nl.RequestsPerSecond <= 0 {
			return fmt.Errorf("server net_limit: requests_per_second must be positive: %f", nl.RequestsPerSecond)
		}
		if nl.BurstSize < 1 {
			return fmt.Errorf("server net_limit: burst_size must be positive: %d", nl.BurstSize)
		}
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store: empty path")
	}
	if strings.Contains(c.Store.Path, "..") {
		return fmt.Errorf("store: path contains directory traversal")
	}

	if c.DebugLog.Enabled {
		if c.DebugLog.Path == "" {
			return fmt.Errorf("debuglog: empty path")
		}
		if strings.Contains(c.DebugLog.Path, "..") {
			return fmt.Errorf("debuglog: path contains directory traversal")
		}
		if c.DebugLog.Format != "text" && c.DebugLog.Format != "jsonl" {
			return fmt.Errorf("debuglog: format must be 'text' or 'jsonl': %s", c.DebugLog.Format)
		}
		if c.DebugLog.PollIntervalMS < 50 {
			return fmt.Errorf("debuglog: poll interval too small: %d ms", c.DebugLog.PollIntervalMS)
		}
		if c.DebugLog.DefaultViewLines < 1 {
			return fmt.Errorf("debuglog: default_view_lines must be positive: %d", c.DebugLog.DefaultViewLines)
		}
	}

	if c.Stream.Enabled {
		if c.Stream.Port < 1 || c.Stream.Port > 65535 {
			return fmt.Errorf("stream: invalid port: %d", c.Stream.Port)
		}
		if c.Stream.Port == c.Server.Port {
			return fmt.Errorf("stream: port %d already used by server", c.Stream.Port)
		}
		if c.Stream.BufferSize < 1 {
			return fmt.Errorf("stream: buffer size must be positive: %d", c.Stream.BufferSize)
		}
		if c.Stream.Format != "" && c.Stream.Format != "text" && c.Stream.Format != "json" {
			return fmt.Errorf("stream: format must be 'text' or 'json': %s", c.Stream.Format)
		}
		if c.Stream.Heartbeat.Enabled && c.Stream.Heartbeat.IntervalSeconds < 1 {
			return fmt.Errorf("stream: heartbeat interval must be positive: %d", c.Stream.Heartbeat.IntervalSeconds)
		}
		for i, fc := range c.Stream.Filters {
			if err := validateFilter(i, fc); err != nil {
				return fmt.Errorf("stream: %w", err)
			}
		}
		if nl := c.Stream.NetLimit; nl != nil && nl.Enabled {
			if nl.RequestsPerSecond <= 0 {
				return fmt.Errorf("stream net_limit: requests_per_second must be positive: %f", nl.RequestsPerSecond)
			}
			if nl.BurstSize < 1 {
				return fmt.Errorf("stream net_limit: burst_size must be positive: %d", nl.BurstSize)
			}
		}
	}

	if c.LGL.TimeoutSeconds < 1 {
		return fmt.Errorf("lgl: timeout must be positive: %d", c.LGL.TimeoutSeconds)
	}
	if c.LGL.MaxRetries < 0 {
		return fmt.Errorf("lgl: max_retries must not be negative: %d", c.LGL.MaxRetries)
	}
	if c.LGL.RetryDelayMS < 1 {
		return fmt.Errorf("lgl: retry delay must be positive: %d", c.LGL.RetryDelayMS)
	}
	if c.LGL.RetryBackoff < 1.0 {
		return fmt.Errorf("lgl: retry backoff must be at least 1.0: %f", c.LGL.RetryBackoff)
	}
	if c.LGL.RequestsPerSecond <= 0 {
		return fmt.Errorf("lgl: requests_per_second must be positive: %f", c.LGL.RequestsPerSecond)
	}
	if c.LGL.Burst < 1 {
		return fmt.Errorf("lgl: burst must be positive: %d", c.LGL.Burst)
	}
	if c.LGL.PageSize < 1 || c.LGL.PageSize > 100 {
		return fmt.Errorf("lgl: page_size must be 1-100: %d", c.LGL.PageSize)
	}
	if c.LGL.MaxPages < 1 {
		return fmt.Errorf("lgl: max_pages must be positive: %d", c.LGL.MaxPages)
	}

	return nil
}
