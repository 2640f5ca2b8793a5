package observability

import (
	"fmt"
	"strings"

	"github.com/pkg/profile"
)

// Config captures opt-in observability toggles that wire into the server.
type Config struct {
	// Profile selects a pkg/profile mode: cpu, mem, trace, block or mutex.
	Profile     string
	ProfilePath string
}

// Stopper ends an active profile and flushes it to disk.
type Stopper interface {
	Stop()
}

type noopStopper struct{}

func (noopStopper) Stop() {}

// StartProfile begins the configured profile. An empty mode returns a no-op
// stopper so callers can always defer Stop.
func StartProfile(cfg Config) (Stopper, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Profile))
	var option func(*profile.Profile)
	switch mode {
	case "":
		return noopStopper{}, nil
	case "cpu":
		option = profile.CPUProfile
	case "mem":
		option = profile.MemProfile
	case "trace":
		option = profile.TraceProfile
	case "block":
		option = profile.BlockProfile
	case "mutex":
		option = profile.MutexProfile
	default:
		return nil, fmt.Errorf("unknown profile mode %q", cfg.Profile)
	}
	options := []func(*profile.Profile){option, profile.NoShutdownHook, profile.Quiet}
	if path := strings.TrimSpace(cfg.ProfilePath); path != "" {
		options = append(options, profile.ProfilePath(path))
	}
	return profile.Start(options...), nil
}
