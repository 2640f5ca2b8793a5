package server

import (
	"os"
	"sync/atomic"
	"time"

	"battletanks/server/internal/telemetry"
)

type telemetryCounters struct {
	bytesSent             atomic.Uint64
	updatesSent           atomic.Uint64
	fullUpdates           atomic.Uint64
	deltaUpdates          atomic.Uint64
	entitiesSent          atomic.Uint64
	tickDurationMillis    atomic.Int64
	lastBroadcastBytes    atomic.Uint64
	lastBroadcastEntities atomic.Uint64
	historySize           atomic.Uint64
	historyOldestTick     atomic.Uint64
	historyNewestTick     atomic.Uint64
	sessionsDropped       atomic.Uint64
	malformedMessages     atomic.Uint64
	debug                 bool
	logger                telemetry.Logger
}

type telemetrySnapshot struct {
	BytesSent          uint64 `json:"bytesSent"`
	UpdatesSent        uint64 `json:"updatesSent"`
	FullUpdates        uint64 `json:"fullUpdates"`
	DeltaUpdates       uint64 `json:"deltaUpdates"`
	EntitiesSent       uint64 `json:"entitiesSent"`
	TickDuration       int64  `json:"tickDurationMillis"`
	HistorySize        uint64 `json:"historySize"`
	HistoryOldestTick  uint64 `json:"historyOldestTick"`
	HistoryNewestTick  uint64 `json:"historyNewestTick"`
	SessionsDropped    uint64 `json:"sessionsDropped"`
	MalformedMessages  uint64 `json:"malformedMessages"`
	LastBroadcastBytes uint64 `json:"lastBroadcastBytes"`
}

func newTelemetryCounters(logger telemetry.Logger) *telemetryCounters {
	t := &telemetryCounters{logger: logger}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) RecordUpdate(bytes, entities int, delta bool) {
	if bytes < 0 {
		bytes = 0
	}
	if entities < 0 {
		entities = 0
	}
	t.updatesSent.Add(1)
	if delta {
		t.deltaUpdates.Add(1)
	} else {
		t.fullUpdates.Add(1)
	}
	t.bytesSent.Add(uint64(bytes))
	t.entitiesSent.Add(uint64(entities))
}

// RecordBroadcast stores the totals for the tick's whole fan-out.
func (t *telemetryCounters) RecordBroadcast(bytes, entities int) {
	t.lastBroadcastBytes.Store(uint64(max(bytes, 0)))
	t.lastBroadcastEntities.Store(uint64(max(entities, 0)))
}

func (t *telemetryCounters) RecordTickDuration(tick uint64, duration time.Duration) {
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug && t.logger != nil {
		t.logger.Printf(
			"[telemetry] tick=%d duration=%dms bytes=%d totalBytes=%d entities=%d totalEntities=%d",
			tick,
			millis,
			t.lastBroadcastBytes.Load(),
			t.bytesSent.Load(),
			t.lastBroadcastEntities.Load(),
			t.entitiesSent.Load(),
		)
	}
}

func (t *telemetryCounters) RecordHistory(size int, oldest, newest uint64) {
	if size < 0 {
		size = 0
	}
	t.historySize.Store(uint64(size))
	t.historyOldestTick.Store(oldest)
	t.historyNewestTick.Store(newest)
}

func (t *telemetryCounters) IncrementSessionsDropped() {
	t.sessionsDropped.Add(1)
}

func (t *telemetryCounters) IncrementMalformed() {
	t.malformedMessages.Add(1)
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	return telemetrySnapshot{
		BytesSent:          t.bytesSent.Load(),
		UpdatesSent:        t.updatesSent.Load(),
		FullUpdates:        t.fullUpdates.Load(),
		DeltaUpdates:       t.deltaUpdates.Load(),
		EntitiesSent:       t.entitiesSent.Load(),
		TickDuration:       t.tickDurationMillis.Load(),
		HistorySize:        t.historySize.Load(),
		HistoryOldestTick:  t.historyOldestTick.Load(),
		HistoryNewestTick:  t.historyNewestTick.Load(),
		SessionsDropped:    t.sessionsDropped.Load(),
		MalformedMessages:  t.malformedMessages.Load(),
		LastBroadcastBytes: t.lastBroadcastBytes.Load(),
	}
}
