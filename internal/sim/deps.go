package sim

import (
	"math/rand"
	"time"

	"battletanks/server/internal/telemetry"
	"battletanks/server/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation engine.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	RNG       *rand.Rand
}

func (d Deps) withDefaults(seed int64) Deps {
	if d.Logger == nil {
		d.Logger = telemetry.Discard()
	}
	if d.Publisher == nil {
		d.Publisher = logging.NopPublisher()
	}
	if d.Clock == nil {
		d.Clock = logging.ClockFunc(time.Now)
	}
	if d.RNG == nil {
		d.RNG = rand.New(rand.NewSource(seed))
	}
	return d
}
