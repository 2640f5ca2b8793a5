package journal

import (
	"sort"
	"sync"

	"battletanks/server/internal/sim"
	"battletanks/server/internal/telemetry"
)

const (
	// EvictExpired marks snapshots that fell out of the tick-age window.
	EvictExpired = "expired"
	// EvictCount marks snapshots dropped to respect the capacity bound.
	EvictCount = "count"

	metricHistorySize = "journal_history_size"
	metricEvictions   = "journal_evictions_total"
	metricRejected    = "journal_rejected_total"
)

// Journal keeps a rolling window of recent snapshots keyed by tick so
// per-session synchronizers can diff against whatever tick a client last
// acknowledged. Retention is purely tick-age based.
type Journal struct {
	mu        sync.RWMutex
	snapshots []sim.Snapshot
	capacity  int
	maxAge    uint64
	metrics   telemetry.Metrics
}

// Eviction describes a snapshot dropped from the window.
type Eviction struct {
	Tick   uint64
	Reason string
}

// StoreResult reports the window after a Store and anything it evicted.
// Rejected is set when the snapshot was not newer than the latest stored one.
type StoreResult struct {
	Size     int
	Oldest   uint64
	Newest   uint64
	Evicted  []Eviction
	Rejected bool
}

// New constructs a journal holding at most capacity snapshots whose ticks are
// within maxAge of the newest. A zero maxAge defaults to capacity.
func New(capacity int, maxAge uint64) *Journal {
	if capacity < 1 {
		capacity = 1
	}
	if maxAge == 0 {
		maxAge = uint64(capacity)
	}
	return &Journal{
		snapshots: make([]sim.Snapshot, 0, capacity),
		capacity:  capacity,
		maxAge:    maxAge,
	}
}

// AttachMetrics wires the journal into the telemetry counters.
func (j *Journal) AttachMetrics(metrics telemetry.Metrics) {
	if j == nil {
		return
	}
	j.mu.Lock()
	j.metrics = metrics
	j.mu.Unlock()
}

// Store appends the snapshot and evicts entries older than the retention
// window. Ticks must strictly increase.
func (j *Journal) Store(snap sim.Snapshot) StoreResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	if n := len(j.snapshots); n > 0 && snap.Tick <= j.snapshots[n-1].Tick {
		if j.metrics != nil {
			j.metrics.Add(metricRejected, 1)
		}
		result := j.windowLocked()
		result.Rejected = true
		return result
	}

	j.snapshots = append(j.snapshots, snap)

	var evicted []Eviction
	if snap.Tick > j.maxAge {
		cutoff := snap.Tick - j.maxAge
		idx := 0
		for idx < len(j.snapshots) && j.snapshots[idx].Tick <= cutoff {
			evicted = append(evicted, Eviction{Tick: j.snapshots[idx].Tick, Reason: EvictExpired})
			idx++
		}
		j.dropLocked(idx)
	}

	if overflow := len(j.snapshots) - j.capacity; overflow > 0 {
		for i := 0; i < overflow; i++ {
			evicted = append(evicted, Eviction{Tick: j.snapshots[i].Tick, Reason: EvictCount})
		}
		j.dropLocked(overflow)
	}

	result := j.windowLocked()
	result.Evicted = evicted
	if j.metrics != nil {
		j.metrics.Store(metricHistorySize, uint64(result.Size))
		if len(evicted) > 0 {
			j.metrics.Add(metricEvictions, uint64(len(evicted)))
		}
	}
	return result
}

func (j *Journal) dropLocked(n int) {
	if n <= 0 {
		return
	}
	copy(j.snapshots, j.snapshots[n:])
	tail := j.snapshots[len(j.snapshots)-n:]
	for i := range tail {
		tail[i] = sim.Snapshot{}
	}
	j.snapshots = j.snapshots[:len(j.snapshots)-n]
}

func (j *Journal) windowLocked() StoreResult {
	size := len(j.snapshots)
	result := StoreResult{Size: size}
	if size > 0 {
		result.Oldest = j.snapshots[0].Tick
		result.Newest = j.snapshots[size-1].Tick
	}
	return result
}

// Get returns the snapshot recorded for tick.
func (j *Journal) Get(tick uint64) (sim.Snapshot, bool) {
	if j == nil {
		return sim.Snapshot{}, false
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	idx := sort.Search(len(j.snapshots), func(i int) bool {
		return j.snapshots[i].Tick >= tick
	})
	if idx < len(j.snapshots) && j.snapshots[idx].Tick == tick {
		return j.snapshots[idx], true
	}
	return sim.Snapshot{}, false
}

// Latest returns the newest stored snapshot.
func (j *Journal) Latest() (sim.Snapshot, bool) {
	if j == nil {
		return sim.Snapshot{}, false
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.snapshots) == 0 {
		return sim.Snapshot{}, false
	}
	return j.snapshots[len(j.snapshots)-1], true
}

// Window reports the current retention window.
func (j *Journal) Window() (size int, oldest, newest uint64) {
	if j == nil {
		return 0, 0, 0
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	w := j.windowLocked()
	return w.Size, w.Oldest, w.Newest
}

func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.snapshots)
}
