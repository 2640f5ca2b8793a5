package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"battletanks/server/internal/state"
	"battletanks/server/internal/telemetry"
	"battletanks/server/logging"
	"battletanks/server/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

// LoopHooks let the owner observe the loop without reaching into the engine.
// Every hook runs on the simulation goroutine except OnQueueWarning and
// OnCommandDrop, which run on the enqueuing goroutine.
type LoopHooks struct {
	Prepare         func(tick uint64)
	AfterStep       func(LoopStepResult)
	OnQueueWarning  func(length int)
	OnCommandDrop   func(reason string, cmd Command)
	OnBudgetOverrun func(result LoopStepResult, streak uint64)
}

// LoopStepResult describes one completed tick.
type LoopStepResult struct {
	Tick           uint64
	Snapshot       Snapshot
	Commands       []Command
	RemovedPlayers []state.PlayerID
	ApplyErr       error
	Duration       time.Duration
	Budget         time.Duration
}

// Overran reports whether the tick took longer than its budget.
func (r LoopStepResult) Overran() bool {
	return r.Budget > 0 && r.Duration > r.Budget
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
type Loop struct {
	core    EngineCore
	inputs  *InputTable
	buffer  *CommandBuffer
	hooks   LoopHooks
	config  LoopConfig
	logger  telemetry.Logger
	metrics telemetry.Metrics

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64

	overrunStreak uint64
	lastTick      atomic.Uint64
}

// NewLoop wraps the engine core with a ring-buffer command queue and the
// latest-wins input table.
func NewLoop(core EngineCore, inputs *InputTable, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	if inputs == nil {
		inputs = NewInputTable()
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = 30
	}
	deps := core.Deps()
	logger := deps.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}
	return &Loop{
		core:          core,
		inputs:        inputs,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        cfg,
		logger:        logger,
		metrics:       deps.Metrics,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

func (l *Loop) Deps() Deps {
	if l == nil {
		return Deps{}
	}
	return l.core.Deps()
}

// Inputs exposes the table network readers store into.
func (l *Loop) Inputs() *InputTable {
	if l == nil {
		return nil
	}
	return l.inputs
}

func (l *Loop) Snapshot() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	return l.core.Snapshot()
}

func (l *Loop) Counters() Counters {
	if l == nil {
		return Counters{}
	}
	return l.core.Counters()
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	reason := ""
	var dropCount uint64
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				l.queueMu.Unlock()
				l.warnQueue(length)
				return true, ""
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	return true, ""
}

// Advance executes exactly one simulation step: staged commands first, then
// the latest inputs, then departures.
func (l *Loop) Advance() LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.drainCommands()
	inputs, leaves := l.inputs.Drain()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(l.core.Tick() + 1)
	}
	applyErr := l.core.Apply(commands)
	if applyErr != nil {
		l.logger.Printf("[sim] apply commands: %v", applyErr)
	}
	l.core.SubmitInputs(inputs)
	l.core.RemovePlayers(leaves)
	l.core.Step()
	tick := l.core.Tick()
	l.lastTick.Store(tick)
	return LoopStepResult{
		Tick:           tick,
		Snapshot:       l.core.Snapshot(),
		Commands:       commands,
		RemovedPlayers: leaves,
		ApplyErr:       applyErr,
	}
}

// Run drives the fixed-timestep loop until the stop channel closes. Each
// timer fire advances one step; late fires are not caught up.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	budget := time.Second / time.Duration(l.config.TickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	clock := l.core.Deps().Clock
	if clock == nil {
		clock = logging.ClockFunc(time.Now)
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			start := clock.Now()
			result := l.Advance()
			result.Duration = clock.Now().Sub(start)
			result.Budget = budget
			l.trackBudget(result)
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) trackBudget(result LoopStepResult) {
	if !result.Overran() {
		l.overrunStreak = 0
		return
	}
	l.overrunStreak++
	streak := l.overrunStreak
	if l.hooks.OnBudgetOverrun != nil {
		l.hooks.OnBudgetOverrun(result, streak)
	}
	if streak&(streak-1) != 0 {
		return
	}
	simulation.TickBudgetOverrun(context.Background(), l.core.Deps().Publisher, result.Tick, simulation.TickBudgetOverrunPayload{
		DurationMillis: result.Duration.Milliseconds(),
		BudgetMillis:   result.Budget.Milliseconds(),
		Ratio:          float64(result.Duration) / float64(result.Budget),
		Streak:         streak,
	}, nil)
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		l.perActorCount = make(map[string]int)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if l.metrics != nil {
		l.metrics.Add("sim_commands_dropped_total", 1)
	}
	simulation.CommandDropped(context.Background(), l.core.Deps().Publisher, l.lastTick.Load(), logging.PlayerRef(cmd.ActorID), simulation.CommandDroppedPayload{
		Command: string(cmd.Type),
		Reason:  reason,
	}, nil)
	if count > 0 && count&(count-1) == 0 {
		l.logger.Printf(
			"[backpressure] dropping command actor=%s type=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			count,
			l.config.PerActorLimit,
		)
	}
}

var _ EngineCore = (*Engine)(nil)
