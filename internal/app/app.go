package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	server "battletanks/server"
	"battletanks/server/internal/config"
	servernet "battletanks/server/internal/net"
	"battletanks/server/internal/observability"
	"battletanks/server/internal/telemetry"
	"battletanks/server/logging"
	loggingSinks "battletanks/server/logging/sinks"
)

const (
	envPrefix       = "BATTLETANKS_"
	shutdownTimeout = 5 * time.Second
	defaultJSONPath = "events.ndjson"
)

// Run serves until ctx is cancelled or the listener fails.
func Run(ctx context.Context, cfg config.Config) error {
	cfg = cfg.Normalized()
	logger := NewLogger(cfg.Logging)
	telemetryLogger := telemetry.WrapLogger(logger)

	cfg = ApplyEnv(cfg, telemetryLogger, os.LookupEnv).Normalized()
	logger.SetLevel(parseLevel(cfg.Logging.Level))
	if err := cfg.Validate(); err != nil {
		return err
	}

	router, err := NewRouter(cfg.Logging, logger)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}

	profiler, err := observability.StartProfile(observability.Config{
		Profile:     cfg.Observability.Profile,
		ProfilePath: cfg.Observability.ProfilePath,
	})
	if err != nil {
		router.Close(context.Background())
		return fmt.Errorf("failed to start profiling: %w", err)
	}
	defer profiler.Stop()

	hub, err := server.NewHub(cfg, router, server.WithLogger(telemetryLogger))
	if err != nil {
		router.Close(context.Background())
		return fmt.Errorf("failed to build hub: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		router.Close(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}

	stop := make(chan struct{})
	simDone := make(chan struct{})
	go func() {
		hub.RunSimulation(stop)
		close(simDone)
	}()

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir:   os.Getenv(envPrefix + "CLIENT_DIR"),
		Logger:      telemetryLogger,
		EnablePprof: cfg.Observability.EnablePprofTrace,
	})
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()
	logger.Info("server listening", "addr", listener.Addr().String(), "tickRate", cfg.Server.TickRate, "maxPlayers", cfg.Server.MaxPlayers)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetryLogger.Printf("http shutdown: %v", err)
	}
	hub.Shutdown()
	close(stop)
	<-simDone
	if err := router.Close(shutdownCtx); err != nil {
		telemetryLogger.Printf("failed to close logging router: %v", err)
	}
	return runErr
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.LoggingConfig) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "battletanks",
		Level:           parseLevel(cfg.Level),
		Formatter:       parseFormatter(cfg.Format),
	})
}

func parseLevel(raw string) log.Level {
	level, err := log.ParseLevel(raw)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

func parseFormatter(raw string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// NewRouter wires the enabled event sinks. Unknown sink names are logged
// and skipped.
func NewRouter(cfg config.LoggingConfig, fallback *log.Logger) (*logging.Router, error) {
	logConfig := logging.DefaultConfig()
	logConfig.EnabledSinks = append([]string(nil), cfg.EnabledSinks...)
	if cfg.BufferSize > 0 {
		logConfig.BufferSize = cfg.BufferSize
	}
	logConfig.MinimumSeverity = logging.ParseSeverity(cfg.Level)
	logConfig.Console.Formatter = parseFormatter(cfg.Format)
	logConfig.Console.Level = parseLevel(cfg.Level)
	logConfig.JSON.FilePath = cfg.JSONPath
	logConfig.Fallback = fallback

	var sinks []logging.NamedSink
	for _, name := range logConfig.EnabledSinks {
		switch name {
		case "console":
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console)})
		case "json":
			path := logConfig.JSON.FilePath
			if path == "" {
				path = defaultJSONPath
			}
			sink, err := loggingSinks.OpenJSONFile(path, logConfig.JSON.FlushInterval)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: sink})
		case "memory":
			sinks = append(sinks, logging.NamedSink{Name: name, Sink: loggingSinks.NewMemorySink()})
		default:
			if fallback != nil {
				fallback.Warn("unknown event sink", "name", name)
			}
		}
	}
	return logging.NewRouter(logging.ClockFunc(time.Now), logConfig, sinks)
}

// ApplyEnv layers BATTLETANKS_* variables over cfg. Invalid values are
// logged and ignored.
func ApplyEnv(cfg config.Config, logger telemetry.Logger, lookup func(string) (string, bool)) config.Config {
	if lookup == nil {
		return cfg
	}
	if logger == nil {
		logger = telemetry.Discard()
	}
	str := func(name string, dst *string) {
		if raw, ok := lookup(envPrefix + name); ok && strings.TrimSpace(raw) != "" {
			*dst = strings.TrimSpace(raw)
		}
	}
	integer := func(name string, dst *int) {
		raw, ok := lookup(envPrefix + name)
		if !ok || raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			logger.Printf("invalid %s%s=%q: %v", envPrefix, name, raw, err)
			return
		}
		*dst = value
	}
	float := func(name string, dst *float64) {
		raw, ok := lookup(envPrefix + name)
		if !ok || raw == "" {
			return
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			logger.Printf("invalid %s%s=%q: %v", envPrefix, name, raw, err)
			return
		}
		*dst = value
	}
	boolean := func(name string, dst *bool) {
		raw, ok := lookup(envPrefix + name)
		if !ok || raw == "" {
			return
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			logger.Printf("invalid %s%s=%q: %v", envPrefix, name, raw, err)
			return
		}
		*dst = value
	}

	str("HOST", &cfg.Server.Host)
	integer("PORT", &cfg.Server.Port)
	integer("MAX_PLAYERS", &cfg.Server.MaxPlayers)
	integer("TICK_RATE", &cfg.Server.TickRate)
	float("PHYSICS_TIMESTEP", &cfg.Server.PhysicsTimestep)
	float("MAP_SIZE", &cfg.Game.MapSize)
	float("ROUND_DURATION", &cfg.Game.RoundDuration)
	integer("NPC_COUNT", &cfg.Game.NPCCount)
	integer("OBSTACLE_COUNT", &cfg.Game.ObstacleCount)
	integer("POWERUP_COUNT", &cfg.PowerUps.Count)
	if raw, ok := lookup(envPrefix + "SEED"); ok && raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
			cfg.Game.Seed = value
		} else {
			logger.Printf("invalid %sSEED=%q: %v", envPrefix, raw, err)
		}
	}
	integer("HISTORY_SIZE", &cfg.Sync.HistorySize)
	integer("FULL_STATE_INTERVAL", &cfg.Sync.FullStateInterval)
	integer("INPUT_RATE_LIMIT", &cfg.Session.InputRateLimit)
	integer("MAX_COMPENSATION_MS", &cfg.Session.MaxCompensationMillis)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	if raw, ok := lookup(envPrefix + "LOG_SINKS"); ok && strings.TrimSpace(raw) != "" {
		var names []string
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		cfg.Logging.EnabledSinks = names
	}
	str("LOG_JSON_PATH", &cfg.Logging.JSONPath)
	str("PROFILE", &cfg.Observability.Profile)
	str("PROFILE_PATH", &cfg.Observability.ProfilePath)
	boolean("ENABLE_PPROF_TRACE", &cfg.Observability.EnablePprofTrace)
	return cfg
}
