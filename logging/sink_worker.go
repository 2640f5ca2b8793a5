package logging

import (
	"time"

	"github.com/charmbracelet/log"
)

const maxSinkBackoff = 32 * time.Second

// sinkWorker owns one sink. A failing sink backs off exponentially; events
// that arrive while the backlog is full are dropped.
type sinkWorker struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger
	metrics  *Metrics
	stop     <-chan struct{}

	drops    uint64
	failures int
	backoff  time.Duration
}

func newSinkWorker(named NamedSink, backlog int, fallback *log.Logger, metrics *Metrics, stop <-chan struct{}) *sinkWorker {
	return &sinkWorker{
		name:     named.Name,
		sink:     named.Sink,
		events:   make(chan Event, backlog),
		fallback: fallback,
		metrics:  metrics,
		stop:     stop,
	}
}

// offer is only called from the dispatcher goroutine.
func (w *sinkWorker) offer(event Event) {
	select {
	case w.events <- cloneEvent(event):
	default:
		w.drops++
		w.metrics.Add(metricDroppedTotal, 1)
		if w.drops&(w.drops-1) == 0 {
			w.fallback.Warn("sink backlog full, dropping event", "sink", w.name, "type", event.Type, "dropped", w.drops)
		}
	}
}

func (w *sinkWorker) run() {
	for event := range w.events {
		w.wait()
		if err := w.sink.Write(event); err != nil {
			w.failed(err)
			continue
		}
		w.failures = 0
		w.backoff = 0
	}
}

// wait sleeps out the current backoff. Shutdown cuts it short so Close
// never stalls on a broken sink.
func (w *sinkWorker) wait() {
	if w.backoff <= 0 {
		return
	}
	timer := time.NewTimer(w.backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-w.stop:
	}
}

func (w *sinkWorker) failed(err error) {
	w.failures++
	w.metrics.Add(metricSinkFailures, 1)
	w.backoff = min(time.Second<<min(w.failures-1, 5), maxSinkBackoff)
	w.fallback.Error("sink write failed", "sink", w.name, "err", err, "failures", w.failures, "retry", w.backoff)
}
