package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"
)

// ErrInvalid reports a configuration the server cannot run with.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultHost       = "127.0.0.1"
	DefaultPort       = 8080
	DefaultMaxPlayers = 50
	DefaultTickRate   = 30
)

// Config is the complete process configuration. It is read once at startup
// and handed to the hub; nothing re-reads it while the simulation runs.
type Config struct {
	Server        ServerConfig        `json:"server"`
	Game          GameConfig          `json:"game"`
	Tank          TankConfig          `json:"tank"`
	Projectile    ProjectileConfig    `json:"projectile"`
	PowerUps      PowerUpConfig       `json:"powerUps"`
	AI            AIConfig            `json:"ai"`
	Physics       PhysicsConfig       `json:"physics"`
	Sync          SyncConfig          `json:"sync"`
	Session       SessionConfig       `json:"session"`
	Logging       LoggingConfig       `json:"logging"`
	Observability ObservabilityConfig `json:"observability"`
}

type ServerConfig struct {
	Host            string  `json:"host"`
	Port            int     `json:"port" jsonschema:"minimum=1,maximum=65535"`
	MaxPlayers      int     `json:"maxPlayers" jsonschema:"minimum=1"`
	TickRate        int     `json:"tickRate" jsonschema:"minimum=1,description=Simulation ticks per second"`
	PhysicsTimestep float64 `json:"physicsTimestep" jsonschema:"description=Seconds advanced per physics step; defaults to 1/tickRate"`
}

type GameConfig struct {
	MapSize         float64 `json:"mapSize" jsonschema:"minimum=10"`
	RoundDuration   float64 `json:"roundDuration" jsonschema:"description=Round length in seconds"`
	RespawnDelay    float64 `json:"respawnDelay"`
	SpawnProtection float64 `json:"spawnProtection"`
	NPCCount        int     `json:"npcCount" jsonschema:"minimum=0"`
	ObstacleCount   int     `json:"obstacleCount" jsonschema:"minimum=0"`
	Seed            int64   `json:"seed"`
	MaxEvents       int     `json:"maxEvents" jsonschema:"minimum=1"`
}

type TankConfig struct {
	MaxHealth           float64 `json:"maxHealth"`
	Speed               float64 `json:"speed"`
	RotationSpeed       float64 `json:"rotationSpeed" jsonschema:"description=Degrees per second"`
	TurretRotationSpeed float64 `json:"turretRotationSpeed" jsonschema:"description=Degrees per second"`
	FireCooldown        float64 `json:"fireCooldown"`
	HalfWidth           float64 `json:"halfWidth"`
	HalfHeight          float64 `json:"halfHeight"`
	HalfLength          float64 `json:"halfLength"`
	MuzzleOffset        float64 `json:"muzzleOffset"`
}

type ProjectileConfig struct {
	Speed       float64 `json:"speed"`
	Damage      float64 `json:"damage"`
	MaxLifetime float64 `json:"maxLifetime"`
	Radius      float64 `json:"radius"`
}

type PowerUpConfig struct {
	Count              int     `json:"count" jsonschema:"minimum=0"`
	RespawnTime        float64 `json:"respawnTime"`
	ShieldDuration     float64 `json:"shieldDuration"`
	CloakDuration      float64 `json:"cloakDuration"`
	SpeedDuration      float64 `json:"speedDuration"`
	RapidFireDuration  float64 `json:"rapidFireDuration"`
	SpeedMultiplier    float64 `json:"speedMultiplier"`
	FireRateMultiplier float64 `json:"fireRateMultiplier"`
	PickupRadius       float64 `json:"pickupRadius"`
}

type AIConfig struct {
	DetectionRange float64 `json:"detectionRange"`
	AttackRange    float64 `json:"attackRange"`
	KeepDistance   float64 `json:"keepDistance"`
	SearchDuration float64 `json:"searchDuration"`
	PatrolTurnTime float64 `json:"patrolTurnTime"`
	AimTolerance   float64 `json:"aimTolerance" jsonschema:"description=Radians of turret error tolerated before firing"`
}

type PhysicsConfig struct {
	TankMass       float64 `json:"tankMass"`
	LinearDamping  float64 `json:"linearDamping"`
	AngularDamping float64 `json:"angularDamping"`
	CellSize       int     `json:"cellSize" jsonschema:"minimum=1"`
}

// SyncConfig tunes state replication. The thresholds are deployment surface
// rather than constants so they can track tick rate and map scale.
type SyncConfig struct {
	HistorySize           int     `json:"historySize" jsonschema:"minimum=1"`
	FullStateInterval     int     `json:"fullStateInterval" jsonschema:"minimum=1"`
	PositionThreshold     float64 `json:"positionThreshold"`
	RotationThreshold     float64 `json:"rotationThreshold"`
	RespawnTimerThreshold float64 `json:"respawnTimerThreshold"`
}

type SessionConfig struct {
	InputRateLimit        int `json:"inputRateLimit" jsonschema:"minimum=1"`
	ChatRateLimit         int `json:"chatRateLimit" jsonschema:"minimum=1"`
	RateWindowMillis      int `json:"rateWindowMillis" jsonschema:"minimum=1"`
	MaxCompensationMillis int `json:"maxCompensationMillis"`
	SendQueue             int `json:"sendQueue" jsonschema:"minimum=1"`
	CommandCapacity       int `json:"commandCapacity" jsonschema:"minimum=1"`
	WriteTimeoutMillis    int `json:"writeTimeoutMillis"`
	ReadTimeoutSeconds    int `json:"readTimeoutSeconds"`
	PingIntervalSeconds   int `json:"pingIntervalSeconds"`
	JoinTimeoutMillis     int `json:"joinTimeoutMillis"`
	MaxMessageBytes       int `json:"maxMessageBytes"`
	MaxNameLength         int `json:"maxNameLength"`
	MaxChatLength         int `json:"maxChatLength"`
}

type LoggingConfig struct {
	Level        string   `json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format       string   `json:"format" jsonschema:"enum=text,enum=json,enum=logfmt"`
	EnabledSinks []string `json:"enabledSinks"`
	JSONPath     string   `json:"jsonPath"`
	BufferSize   int      `json:"bufferSize"`
}

type ObservabilityConfig struct {
	EnablePprofTrace bool   `json:"enablePprofTrace"`
	Profile          string `json:"profile" jsonschema:"enum=,enum=cpu,enum=mem,enum=trace,enum=block,enum=mutex"`
	ProfilePath      string `json:"profilePath"`
}

// Default mirrors the shipped game balance.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			MaxPlayers:      DefaultMaxPlayers,
			TickRate:        DefaultTickRate,
			PhysicsTimestep: 1.0 / DefaultTickRate,
		},
		Game: GameConfig{
			MapSize:         500,
			RoundDuration:   600,
			RespawnDelay:    3,
			SpawnProtection: 1,
			NPCCount:        15,
			ObstacleCount:   40,
			Seed:            1,
			MaxEvents:       100,
		},
		Tank: TankConfig{
			MaxHealth:           100,
			Speed:               10,
			RotationSpeed:       90,
			TurretRotationSpeed: 120,
			FireCooldown:        0.33,
			HalfWidth:           1,
			HalfHeight:          0.5,
			HalfLength:          2,
			MuzzleOffset:        2.5,
		},
		Projectile: ProjectileConfig{
			Speed:       50,
			Damage:      25,
			MaxLifetime: 10,
			Radius:      0.1,
		},
		PowerUps: PowerUpConfig{
			Count:              6,
			RespawnTime:        15,
			ShieldDuration:     5,
			CloakDuration:      8,
			SpeedDuration:      6,
			RapidFireDuration:  8,
			SpeedMultiplier:    1.5,
			FireRateMultiplier: 0.5,
			PickupRadius:       1.5,
		},
		AI: AIConfig{
			DetectionRange: 60,
			AttackRange:    35,
			KeepDistance:   15,
			SearchDuration: 4,
			PatrolTurnTime: 3,
			AimTolerance:   0.15,
		},
		Physics: PhysicsConfig{
			TankMass:       1,
			LinearDamping:  30,
			AngularDamping: 30,
			CellSize:       16,
		},
		Sync: SyncConfig{
			HistorySize:           300,
			FullStateInterval:     30,
			PositionThreshold:     0.1,
			RotationThreshold:     0.05,
			RespawnTimerThreshold: 0.1,
		},
		Session: SessionConfig{
			InputRateLimit:        30,
			ChatRateLimit:         3,
			RateWindowMillis:      1000,
			MaxCompensationMillis: 200,
			SendQueue:             64,
			CommandCapacity:       256,
			WriteTimeoutMillis:    1000,
			ReadTimeoutSeconds:    60,
			PingIntervalSeconds:   25,
			JoinTimeoutMillis:     2000,
			MaxMessageBytes:       1 << 16,
			MaxNameLength:         24,
			MaxChatLength:         200,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "text",
			EnabledSinks: []string{"console"},
			BufferSize:   512,
		},
	}
}

// Load reads a JSON configuration file layered over the defaults. An empty
// path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// Normalized fills derived values and clamps counts that cannot be negative.
func (c Config) Normalized() Config {
	n := c
	n.Server.Host = strings.TrimSpace(n.Server.Host)
	if n.Server.Host == "" {
		n.Server.Host = DefaultHost
	}
	if n.Server.TickRate > 0 && n.Server.PhysicsTimestep <= 0 {
		n.Server.PhysicsTimestep = 1.0 / float64(n.Server.TickRate)
	}
	if n.Game.NPCCount < 0 {
		n.Game.NPCCount = 0
	}
	if n.Game.ObstacleCount < 0 {
		n.Game.ObstacleCount = 0
	}
	if n.PowerUps.Count < 0 {
		n.PowerUps.Count = 0
	}
	if n.Game.MaxEvents <= 0 {
		n.Game.MaxEvents = 100
	}
	if n.Physics.CellSize <= 0 {
		n.Physics.CellSize = 16
	}
	if n.Physics.TankMass <= 0 {
		n.Physics.TankMass = 1
	}
	if n.Session.RateWindowMillis <= 0 {
		n.Session.RateWindowMillis = 1000
	}
	if n.Session.SendQueue <= 0 {
		n.Session.SendQueue = 64
	}
	if n.Session.CommandCapacity <= 0 {
		n.Session.CommandCapacity = 256
	}
	if n.Session.MaxCompensationMillis < 0 {
		n.Session.MaxCompensationMillis = 0
	}
	if n.Session.MaxNameLength <= 0 {
		n.Session.MaxNameLength = 24
	}
	if n.Session.MaxChatLength <= 0 {
		n.Session.MaxChatLength = 200
	}
	n.Logging.Level = strings.ToLower(strings.TrimSpace(n.Logging.Level))
	if n.Logging.Level == "" {
		n.Logging.Level = "info"
	}
	n.Logging.Format = strings.ToLower(strings.TrimSpace(n.Logging.Format))
	if n.Logging.Format == "" {
		n.Logging.Format = "text"
	}
	n.Observability.Profile = strings.ToLower(strings.TrimSpace(n.Observability.Profile))
	return n
}

// Validate rejects configurations that cannot run.
func (c Config) Validate() error {
	var problems []string
	if c.Server.TickRate <= 0 {
		problems = append(problems, "server.tickRate must be positive")
	}
	if c.Server.PhysicsTimestep <= 0 || math.IsNaN(c.Server.PhysicsTimestep) {
		problems = append(problems, "server.physicsTimestep must be positive")
	}
	if c.Server.MaxPlayers <= 0 {
		problems = append(problems, "server.maxPlayers must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port out of range")
	}
	if c.Game.MapSize <= 0 {
		problems = append(problems, "game.mapSize must be positive")
	}
	if c.Tank.MaxHealth <= 0 {
		problems = append(problems, "tank.maxHealth must be positive")
	}
	if c.Projectile.MaxLifetime <= 0 {
		problems = append(problems, "projectile.maxLifetime must be positive")
	}
	if c.Sync.FullStateInterval <= 0 {
		problems = append(problems, "sync.fullStateInterval must be positive")
	}
	if c.Sync.HistorySize < c.Sync.FullStateInterval {
		problems = append(problems, "sync.historySize must cover at least one full-state interval")
	}
	if c.Session.InputRateLimit <= 0 {
		problems = append(problems, "session.inputRateLimit must be positive")
	}
	switch c.Observability.Profile {
	case "", "cpu", "mem", "trace", "block", "mutex":
	default:
		problems = append(problems, fmt.Sprintf("observability.profile %q unknown", c.Observability.Profile))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// TickDuration is the wall-clock interval between ticks.
func (c Config) TickDuration() time.Duration {
	if c.Server.TickRate <= 0 {
		return time.Second / DefaultTickRate
	}
	return time.Second / time.Duration(c.Server.TickRate)
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// RateWindow is the sliding window used by the session rate limiters.
func (s SessionConfig) RateWindow() time.Duration {
	return time.Duration(s.RateWindowMillis) * time.Millisecond
}

// MaxCompensation bounds the latency the lag compensator will honour.
func (s SessionConfig) MaxCompensation() time.Duration {
	return time.Duration(s.MaxCompensationMillis) * time.Millisecond
}

func (s SessionConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMillis) * time.Millisecond
}

func (s SessionConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

func (s SessionConfig) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalSeconds) * time.Second
}

func (s SessionConfig) JoinTimeout() time.Duration {
	return time.Duration(s.JoinTimeoutMillis) * time.Millisecond
}

// DegreesToRadians converts the degree-based rotation speeds in TankConfig.
func DegreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
