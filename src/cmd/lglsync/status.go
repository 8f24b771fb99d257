package main

import (
	"context"
	"time"
)

// Periodically logs service status
func statusReporter(ctx context.Context, a *app) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Clean shutdown
			return
		case <-ticker.C:
			if a == nil || a.server == nil {
				logger.Warn("msg", "Status reporter: server is nil",
					"component", "status_reporter")
				return
			}

			// Safely get stats with recovery
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("msg", "Panic in status reporter",
							"component", "status_reporter",
							"panic", r)
					}
				}()

				statusFields := []any{
					"msg", "Status report",
					"component", "status_reporter",
					"time", time.Now().Format("15:04:05"),
				}

				srv := a.server.GetStats()
				if total, ok := srv["total_requests"].(uint64); ok {
					statusFields = append(statusFields, "requests_served", total)
				}
				if failures, ok := srv["auth_failures"].(uint64); ok && failures > 0 {
					statusFields = append(statusFields, "auth_failures", failures)
				}

				flows := a.flows.GetStats()
				if run, ok := flows["flows_run"].(uint64); ok {
					statusFields = append(statusFields, "flows_run", run)
				}
				if failed, ok := flows["flows_failed"].(uint64); ok && failed > 0 {
					statusFields = append(statusFields, "flows_failed", failed)
				}
				if last, ok := flows["last_flow"].(string); ok {
					statusFields = append(statusFields, "last_flow", last)
				}

				if a.streamer != nil {
					statusFields = append(statusFields,
						"tail_connections", a.streamer.ActiveConnections())
				}
				if a.sessions != nil {
					statusFields = append(statusFields,
						"active_sessions", a.sessions.Count())
				}

				logger.Debug(statusFields...)
			}()
		}
	}
}
