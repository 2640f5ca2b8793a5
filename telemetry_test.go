package server

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"battletanks/server/internal/telemetry"
)

func TestTelemetryCountersSplitFullAndDelta(t *testing.T) {
	counters := newTelemetryCounters(nil)
	counters.RecordUpdate(120, 4, false)
	counters.RecordUpdate(30, 1, true)
	counters.RecordUpdate(-5, -1, true)
	counters.RecordBroadcast(150, 5)
	counters.RecordHistory(-1, 2, 9)

	snap := counters.Snapshot()
	if snap.UpdatesSent != 3 || snap.FullUpdates != 1 || snap.DeltaUpdates != 2 {
		t.Fatalf("unexpected update counts: %+v", snap)
	}
	if snap.BytesSent != 150 || snap.EntitiesSent != 5 {
		t.Fatalf("expected negative sizes to clamp to zero, got %+v", snap)
	}
	if snap.LastBroadcastBytes != 150 {
		t.Fatalf("expected last broadcast bytes 150, got %d", snap.LastBroadcastBytes)
	}
	if snap.HistorySize != 0 || snap.HistoryOldestTick != 2 || snap.HistoryNewestTick != 9 {
		t.Fatalf("unexpected history window: %+v", snap)
	}
}

func TestTelemetryDebugLogsTickSummary(t *testing.T) {
	t.Setenv("DEBUG_TELEMETRY", "1")
	var lines []string
	counters := newTelemetryCounters(telemetry.LoggerFunc(func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}))
	counters.RecordBroadcast(64, 2)
	counters.RecordTickDuration(12, 7*time.Millisecond)

	if len(lines) != 1 || !strings.HasPrefix(lines[0], "[telemetry] tick=12 duration=7ms bytes=64") {
		t.Fatalf("unexpected debug output %v", lines)
	}
	if got := counters.Snapshot().TickDuration; got != 7 {
		t.Fatalf("expected tick duration 7ms, got %d", got)
	}
}
