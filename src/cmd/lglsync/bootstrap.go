package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lglsync/src/internal/config"
	"lglsync/src/internal/debuglog"
	"lglsync/src/internal/lgl"
	"lglsync/src/internal/netlimit"
	"lglsync/src/internal/server"
	"lglsync/src/internal/session"
	"lglsync/src/internal/settings"
	"lglsync/src/internal/store"
	"lglsync/src/internal/stream"
	"lglsync/src/internal/syncer"
	"lglsync/src/internal/version"

	"github.com/lixenwraith/log"
)

// settingsCacheTTL bounds how stale a cached settings read may be when
// the store was edited out of band. SIGHUP purges it immediately.
const settingsCacheTTL = 5 * time.Minute

// sessionMaxIdle expires admin API and live-tail sessions.
const sessionMaxIdle = 30 * time.Minute

// app holds every long-lived component in dependency order.
type app struct {
	config *config.Config

	store    *store.Store
	settings *settings.Service
	debug    *debuglog.Logger
	sessions *session.Manager
	client   *lgl.Client
	flows    *syncer.Syncer
	server   *server.Server

	// Live tail, nil unless stream is enabled
	tailer        *debuglog.Tailer
	streamer      *stream.Streamer
	streamLimiter *netlimit.Limiter
}

// bootstrapApp constructs and starts every component. On error the
// partially built app is torn down before returning.
func bootstrapApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{config: cfg}

	if err := a.build(cfg); err != nil {
		a.shutdown()
		return nil, err
	}
	if err := a.start(ctx); err != nil {
		a.shutdown()
		return nil, err
	}

	logStartupSummary(cfg, a)

	logger.Info("msg", "LGL sync service started",
		"version", version.Short(),
		"environment", a.settings.Environment())

	return a, nil
}

func (a *app) build(cfg *config.Config) error {
	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	a.store = st

	a.settings = settings.New(st, settingsCacheTTL, logger)

	dbg, err := debuglog.NewLogger(cfg.DebugLog.Path, cfg.DebugLog.Format, cfg.DebugLog.Enabled, logger)
	if err != nil {
		return fmt.Errorf("debug log: %w", err)
	}
	// The settings bag holds the runtime write toggle; the config flag
	// is the hard off switch.
	dbg.SetEnabled(cfg.DebugLog.Enabled && a.settings.GetBool("debug_logging"))
	a.debug = dbg

	a.sessions = session.NewManager(sessionMaxIdle)

	a.client = lgl.New(cfg.LGL, a.settings, logger)
	a.flows = syncer.New(a.client, a.settings, a.store, a.debug, logger)

	if cfg.Stream.Enabled {
		if cfg.Stream.NetLimit != nil {
			a.streamLimiter = netlimit.New(*cfg.Stream.NetLimit, logger)
		}

		streamer, err := stream.New(cfg.Stream, a.streamLimiter, a.sessions, logger)
		if err != nil {
			return fmt.Errorf("stream: %w", err)
		}
		a.streamer = streamer

		a.tailer = debuglog.NewTailer(
			cfg.DebugLog.Path,
			cfg.DebugLog.Format,
			time.Duration(cfg.DebugLog.PollIntervalMS)*time.Millisecond,
			streamer.Publish,
			logger)
	}

	srv, err := server.New(cfg.Server, server.Deps{
		Settings:  a.settings,
		Flows:     a.flows,
		Catalog:   a.client,
		Debug:     a.debug,
		Store:     a.store,
		Streamer:  a.streamer,
		Sessions:  a.sessions,
		ViewLines: cfg.DebugLog.DefaultViewLines,
	}, logger)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	a.server = srv

	return nil
}

// start brings listeners up: tail plumbing first, admin API last.
func (a *app) start(ctx context.Context) error {
	if a.streamer != nil {
		if err := a.streamer.Start(ctx); err != nil {
			return fmt.Errorf("stream: %w", err)
		}
	}
	if a.tailer != nil {
		if err := a.tailer.Start(ctx); err != nil {
			return fmt.Errorf("tailer: %w", err)
		}
	}
	if err := a.server.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// shutdown stops components in reverse dependency order. Nil fields
// from a failed build are skipped.
func (a *app) shutdown() {
	if a.server != nil {
		a.server.Stop()
	}
	if a.tailer != nil {
		a.tailer.Stop()
	}
	if a.streamer != nil {
		a.streamer.Stop()
	}
	a.streamLimiter.Shutdown()
	if a.sessions != nil {
		a.sessions.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("msg", "Store close failed", "component", "main", "error", err)
		}
	}
}

// reload re-reads the settings bag. Wired to SIGHUP / SIGUSR1.
func (a *app) reload() {
	a.settings.PurgeCache()

	if a.config.DebugLog.Enabled {
		a.debug.SetEnabled(a.settings.GetBool("debug_logging"))
	}

	logger.Info("msg", "Settings reloaded",
		"component", "main",
		"environment", a.settings.Environment(),
		"debug_logging", a.settings.GetBool("debug_logging"))
}

func logStartupSummary(cfg *config.Config, a *app) {
	displayHost := cfg.Server.Host
	if displayHost == "0.0.0.0" {
		displayHost = "localhost"
	}

	authType := "none"
	if cfg.Server.Auth != nil {
		authType = cfg.Server.Auth.Type
	}

	logger.Info("msg", "Admin API configured",
		"component", "main",
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"status_url", fmt.Sprintf("http://%s:%d/api/status", displayHost, cfg.Server.Port),
		"auth", authType)

	if cfg.Server.NetLimit != nil && cfg.Server.NetLimit.Enabled {
		logger.Info("msg", "Admin API net limiting enabled",
			"component", "main",
			"requests_per_second", cfg.Server.NetLimit.RequestsPerSecond,
			"burst_size", cfg.Server.NetLimit.BurstSize)
	}

	if cfg.DebugLog.Enabled {
		logger.Info("msg", "Debug log configured",
			"component", "main",
			"path", cfg.DebugLog.Path,
			"format", cfg.DebugLog.Format,
			"write_enabled", a.settings.GetBool("debug_logging"))
	}

	if cfg.Stream.Enabled {
		streamHost := cfg.Stream.Host
		if streamHost == "0.0.0.0" {
			streamHost = "localhost"
		}
		logger.Info("msg", "Live tail configured",
			"component", "main",
			"listen", fmt.Sprintf("%s:%d", cfg.Stream.Host, cfg.Stream.Port),
			"endpoint", fmt.Sprintf("%s:%d", streamHost, cfg.Stream.Port),
			"format", cfg.Stream.Format,
			"filters", len(cfg.Stream.Filters),
			"heartbeat", cfg.Stream.Heartbeat.Enabled)
	}
}

// initializeLogger sets up the service logger from configuration.
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	var configArgs []string

	if cfg.Quiet {
		// In quiet mode, disable ALL logging output
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=false",
			"level=255")

		if err := logger.ApplyConfigString(configArgs...); err != nil {
			return err
		}
		return logger.Start()
	}

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stdout")

	case "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stderr")

	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		configureFileLogging(&configArgs, cfg)

	case "both":
		configArgs = append(configArgs, "enable_stdout=true")
		configureFileLogging(&configArgs, cfg)
		configureConsoleTarget(&configArgs, cfg)

	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if cfg.Logging.Console != nil && cfg.Logging.Console.Format != "" {
		configArgs = append(configArgs, fmt.Sprintf("format=%s", cfg.Logging.Console.Format))
	}

	if err := logger.ApplyConfigString(configArgs...); err != nil {
		return err
	}
	return logger.Start()
}

func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	if cfg.Logging.File != nil {
		*configArgs = append(*configArgs,
			fmt.Sprintf("directory=%s", cfg.Logging.File.Directory),
			fmt.Sprintf("name=%s", cfg.Logging.File.Name),
			fmt.Sprintf("max_size_mb=%d", cfg.Logging.File.MaxSizeMB),
			fmt.Sprintf("max_total_size_mb=%d", cfg.Logging.File.MaxTotalSizeMB))

		if cfg.Logging.File.RetentionHours > 0 {
			*configArgs = append(*configArgs,
				fmt.Sprintf("retention_period_hrs=%.1f", cfg.Logging.File.RetentionHours))
		}
	}
}

func configureConsoleTarget(configArgs *[]string, cfg *config.Config) {
	target := "stderr"
	if cfg.Logging.Console != nil && cfg.Logging.Console.Target != "" {
		target = cfg.Logging.Console.Target
	}

	// Split mode routes info/debug to stdout, warn/error to stderr
	if target == "split" {
		*configArgs = append(*configArgs, "stdout_split_mode=true", "stdout_target=split")
	} else {
		*configArgs = append(*configArgs, fmt.Sprintf("stdout_target=%s", target))
	}
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
