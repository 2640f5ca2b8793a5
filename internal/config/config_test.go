package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default().Normalized()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
	if cfg.Server.TickRate != 30 || cfg.Server.MaxPlayers != 50 || cfg.Game.MapSize != 500 {
		t.Fatalf("unexpected defaults: %+v", cfg.Server)
	}
	if cfg.Sync.HistorySize != 300 || cfg.Sync.FullStateInterval != 30 {
		t.Fatalf("unexpected sync defaults: %+v", cfg.Sync)
	}
	if cfg.TickDuration() != time.Second/30 {
		t.Fatalf("unexpected tick duration %s", cfg.TickDuration())
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Fatalf("unexpected addr %s", cfg.Addr())
	}
	if cfg.Session.MaxCompensation() != 200*time.Millisecond || cfg.Session.RateWindow() != time.Second {
		t.Fatalf("unexpected session durations: %+v", cfg.Session)
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.json")
	body := `{"server":{"port":9001,"tickRate":60},"game":{"npcCount":3}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9001 || cfg.Server.TickRate != 60 || cfg.Game.NPCCount != 3 {
		t.Fatalf("expected file values, got %+v %+v", cfg.Server, cfg.Game)
	}
	if cfg.Server.MaxPlayers != DefaultMaxPlayers || cfg.Tank.MaxHealth != 100 {
		t.Fatalf("expected untouched fields to keep defaults")
	}

	if cfg, err := Load(""); err != nil || cfg.Server.Port != DefaultPort {
		t.Fatalf("expected empty path to return defaults, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected missing file to fail")
	}
}

func TestNormalizedDerivesTimestep(t *testing.T) {
	cfg := Default()
	cfg.Server.TickRate = 60
	cfg.Server.PhysicsTimestep = 0
	cfg.Server.Host = "  "
	cfg.Logging.Level = " DEBUG "
	n := cfg.Normalized()
	if n.Server.PhysicsTimestep != 1.0/60 {
		t.Fatalf("expected derived timestep, got %v", n.Server.PhysicsTimestep)
	}
	if n.Server.Host != DefaultHost || n.Logging.Level != "debug" {
		t.Fatalf("unexpected normalization: host=%q level=%q", n.Server.Host, n.Logging.Level)
	}
}

func TestValidateRejectsUnrunnableValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "tick rate", mutate: func(c *Config) { c.Server.TickRate = 0 }, want: "tickRate"},
		{name: "map size", mutate: func(c *Config) { c.Game.MapSize = 0 }, want: "mapSize"},
		{name: "max players", mutate: func(c *Config) { c.Server.MaxPlayers = 0 }, want: "maxPlayers"},
		{name: "history", mutate: func(c *Config) { c.Sync.HistorySize = 10 }, want: "historySize"},
		{name: "profile", mutate: func(c *Config) { c.Observability.Profile = "gpu" }, want: "profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Normalized().Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, err)
			}
		})
	}
}
