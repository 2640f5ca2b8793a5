package sim

import (
	"testing"
	"time"

	"battletanks/server/internal/state"
	"battletanks/server/internal/telemetry"
	"battletanks/server/logging"
)

func TestLoopAdvanceAppliesCommandsInputsAndLeaves(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	var prepared []uint64
	loop := NewLoop(engine, nil, LoopConfig{TickRate: 30, CommandCapacity: 8}, LoopHooks{
		Prepare: func(tick uint64) { prepared = append(prepared, tick) },
	})

	reply := make(chan JoinResult, 1)
	if ok, reason := loop.Enqueue(Command{ActorID: "p1", Type: CommandJoin, Join: &JoinCommand{Name: "Ada", Reply: reply}}); !ok {
		t.Fatalf("enqueue rejected: %s", reason)
	}
	result := loop.Advance()
	if result.Tick != 1 || len(result.Commands) != 1 {
		t.Fatalf("unexpected first result: %+v", result)
	}
	res := <-reply
	if res.Err != nil || res.EntityID != 1 {
		t.Fatalf("unexpected join result: %+v", res)
	}

	loop.Inputs().Store("p1", state.Input{Forward: true})
	loop.Advance()
	tank, _ := loop.Snapshot().Tank(res.EntityID)
	if tank.Position.Z <= res.Spawn.Z {
		t.Fatalf("expected forward motion after input, got %+v", tank.Position)
	}

	loop.Inputs().MarkLeft("p1")
	result = loop.Advance()
	if len(result.RemovedPlayers) != 1 || result.RemovedPlayers[0] != "p1" {
		t.Fatalf("expected p1 removal, got %v", result.RemovedPlayers)
	}
	if loop.Counters().Players != 0 {
		t.Fatalf("expected no players after leave")
	}
	if len(prepared) != 3 || prepared[0] != 1 || prepared[2] != 3 {
		t.Fatalf("expected prepare hook per tick, got %v", prepared)
	}
}

func TestLoopEnqueueBackpressure(t *testing.T) {
	metrics := &logging.Metrics{}
	engine, err := New(testConfig(), Deps{Metrics: metrics, Logger: telemetry.Discard()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var drops []string
	loop := NewLoop(engine, nil, LoopConfig{CommandCapacity: 2, PerActorLimit: 1}, LoopHooks{
		OnCommandDrop: func(reason string, cmd Command) { drops = append(drops, reason) },
	})

	if ok, _ := loop.Enqueue(Command{ActorID: "a", Type: CommandChat}); !ok {
		t.Fatalf("expected first command to be accepted")
	}
	if ok, reason := loop.Enqueue(Command{ActorID: "a", Type: CommandChat}); ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected per-actor limit, got %v %q", ok, reason)
	}
	loop.Enqueue(Command{ActorID: "b", Type: CommandChat})
	if ok, reason := loop.Enqueue(Command{ActorID: "c", Type: CommandChat}); ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected full buffer, got %v %q", ok, reason)
	}
	if len(drops) != 2 {
		t.Fatalf("expected two drop notifications, got %v", drops)
	}
	if metrics.Value("sim_commands_dropped_total") != 2 {
		t.Fatalf("expected drop counter 2, got %d", metrics.Value("sim_commands_dropped_total"))
	}

	loop.Advance()
	if loop.Pending() != 0 {
		t.Fatalf("expected advance to drain the queue")
	}
	if ok, _ := loop.Enqueue(Command{ActorID: "a", Type: CommandChat}); !ok {
		t.Fatalf("expected per-actor budget to reset each tick")
	}
}

func TestLoopRunStopsAndReportsSteps(t *testing.T) {
	engine, _ := newTestEngine(t, testConfig())
	steps := make(chan LoopStepResult, 16)
	loop := NewLoop(engine, nil, LoopConfig{TickRate: 200}, LoopHooks{
		AfterStep: func(result LoopStepResult) {
			select {
			case steps <- result:
			default:
			}
		},
	})
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		loop.Run(stop)
		close(done)
	}()

	var last uint64
	for i := 0; i < 3; i++ {
		select {
		case result := <-steps:
			if result.Tick <= last {
				t.Fatalf("expected increasing ticks, got %d after %d", result.Tick, last)
			}
			if result.Budget != 5*time.Millisecond {
				t.Fatalf("expected 5ms budget, got %s", result.Budget)
			}
			last = result.Tick
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for a step")
		}
	}
	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not stop")
	}
}

func TestLoopBudgetOverrunPublishesOnPowerOfTwoStreaks(t *testing.T) {
	engine, events := newTestEngine(t, testConfig())
	var streaks []uint64
	loop := NewLoop(engine, nil, LoopConfig{}, LoopHooks{
		OnBudgetOverrun: func(_ LoopStepResult, streak uint64) { streaks = append(streaks, streak) },
	})
	over := LoopStepResult{Tick: 1, Duration: 50 * time.Millisecond, Budget: 10 * time.Millisecond}
	for i := 0; i < 5; i++ {
		loop.trackBudget(over)
	}
	loop.trackBudget(LoopStepResult{Duration: time.Millisecond, Budget: 10 * time.Millisecond})
	loop.trackBudget(over)

	if len(streaks) != 6 || streaks[5] != 1 {
		t.Fatalf("expected streak to reset after an on-budget tick, got %v", streaks)
	}
	// Streaks 1, 2, 4 and then 1 again.
	if got := len(events.OfType("simulation.tick_budget_overrun")); got != 4 {
		t.Fatalf("expected 4 overrun events, got %d", got)
	}
}
