package sim

import (
	"testing"

	"battletanks/server/logging"
)

func TestCommandBufferWraparound(t *testing.T) {
	buffer := NewCommandBuffer(3, nil)
	cmds := []Command{
		{ActorID: "a"},
		{ActorID: "b"},
		{ActorID: "c"},
	}
	for _, cmd := range cmds {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed for %+v", cmd)
		}
	}
	if buffer.Push(Command{ActorID: "overflow"}) {
		t.Fatalf("expected push to fail when buffer full")
	}
	drained := buffer.Drain()
	if len(drained) != len(cmds) {
		t.Fatalf("expected %d commands, got %d", len(cmds), len(drained))
	}
	for i, cmd := range drained {
		if cmd.ActorID != cmds[i].ActorID {
			t.Fatalf("expected drain order %v, got %v", cmds[i].ActorID, cmd.ActorID)
		}
	}
	// Push again to ensure the indices wrap correctly.
	for _, cmd := range []Command{{ActorID: "d"}, {ActorID: "e"}} {
		if !buffer.Push(cmd) {
			t.Fatalf("expected push to succeed after drain for %+v", cmd)
		}
	}
	wrapped := buffer.Drain()
	if len(wrapped) != 2 {
		t.Fatalf("expected 2 commands after wraparound, got %d", len(wrapped))
	}
	if wrapped[0].ActorID != "d" || wrapped[1].ActorID != "e" {
		t.Fatalf("unexpected order after wraparound: %+v", wrapped)
	}
}

func TestCommandBufferOverflow(t *testing.T) {
	buffer := NewCommandBuffer(1, nil)
	if !buffer.Push(Command{ActorID: "one"}) {
		t.Fatalf("expected initial push to succeed")
	}
	if buffer.Push(Command{ActorID: "two"}) {
		t.Fatalf("expected push to fail when capacity exceeded")
	}
	drained := buffer.Drain()
	if len(drained) != 1 || drained[0].ActorID != "one" {
		t.Fatalf("unexpected drained commands: %+v", drained)
	}
	if got := buffer.Overflows(); got != 1 {
		t.Fatalf("expected one overflow, got %d", got)
	}
}

func TestCommandBufferReportsMetrics(t *testing.T) {
	metrics := &logging.Metrics{}
	buffer := NewCommandBuffer(2, metrics)
	buffer.Push(Command{ActorID: "a", Type: CommandChat})
	buffer.Push(Command{ActorID: "b", Type: CommandChat})
	if got := metrics.Value(commandBufferOccupancyMetricKey); got != 2 {
		t.Fatalf("expected occupancy 2, got %d", got)
	}
	buffer.Push(Command{ActorID: "c"})
	if got := metrics.Value(commandBufferOverflowMetricKey); got != 1 {
		t.Fatalf("expected overflow counter 1, got %d", got)
	}
	buffer.Drain()
	if got := metrics.Value(commandBufferOccupancyMetricKey); got != 0 {
		t.Fatalf("expected occupancy reset after drain, got %d", got)
	}
}

func TestCommandBufferDrainReleasesJoinReplies(t *testing.T) {
	buffer := NewCommandBuffer(4, nil)
	reply := make(chan JoinResult, 1)
	buffer.Push(Command{ActorID: "a", Type: CommandJoin, Join: &JoinCommand{Name: "Ada", Reply: reply}})
	buffer.Push(Command{ActorID: "b", Type: CommandChat})

	drained := buffer.Drain()
	if len(drained) != 2 || drained[0].Join == nil || drained[0].Join.Reply != reply {
		t.Fatalf("expected the join and its reply channel to be handed out, got %+v", drained)
	}
	for i, slot := range buffer.data {
		if slot.Join != nil || slot.ActorID != "" {
			t.Fatalf("slot %d still holds %+v after drain", i, slot)
		}
	}
}
