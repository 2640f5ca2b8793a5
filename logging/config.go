package logging

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Config tunes the router. EnabledSinks is read by the bootstrap when it
// builds the sink list; the router itself only sees the built sinks.
type Config struct {
	EnabledSinks    []string
	BufferSize      int
	MinimumSeverity Severity
	// Fields are merged into every event's Extra.
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
	// Fallback receives the router's own diagnostics. Nil logs to stderr.
	Fallback *log.Logger
}

type JSONConfig struct {
	FilePath string
	// FlushInterval batches file writes. Zero flushes after every event.
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	Formatter log.Formatter
	Level     log.Level
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
		Console: ConsoleConfig{
			Formatter: log.TextFormatter,
			Level:     log.DebugLevel,
		},
	}
}

// ParseSeverity maps the configured level names onto router severities.
func ParseSeverity(level string) Severity {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return SeverityDebug
	case "warn", "warning":
		return SeverityWarn
	case "error":
		return SeverityError
	default:
		return SeverityInfo
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}
