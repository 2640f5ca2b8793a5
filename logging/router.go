package logging

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

const (
	metricEventsTotal  = "logging_events_total"
	metricDroppedTotal = "logging_events_dropped_total"
	metricSinkFailures = "logging_sink_failures_total"

	minSinkBacklog = 32
	maxSinkBacklog = 1024
)

// Router fans published events out to sinks without ever blocking the
// publisher. Publish feeds one bounded intake queue; a dispatcher stamps and
// filters events and hands them to one worker per sink.
type Router struct {
	cfg      Config
	clock    Clock
	fallback *log.Logger
	metrics  *Metrics
	fields   map[string]any

	intake  chan Event
	workers []*sinkWorker
	stop    chan struct{}
	done    chan struct{}
	closed  atomic.Bool

	dropMu       sync.Mutex
	nextDropWarn time.Time
}

// NewRouter starts the dispatcher and sink workers. Nil sinks are skipped.
func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink) (*Router, error) {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.DropWarnInterval <= 0 {
		cfg.DropWarnInterval = DefaultConfig().DropWarnInterval
	}
	fallback := cfg.Fallback
	if fallback == nil {
		fallback = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "logging"})
	}

	r := &Router{
		cfg:      cfg,
		clock:    clock,
		fallback: fallback,
		metrics:  &Metrics{},
		fields:   copyFields(cfg.Fields),
		intake:   make(chan Event, cfg.BufferSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	backlog := min(max(cfg.BufferSize, minSinkBacklog), maxSinkBacklog)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.workers = append(r.workers, newSinkWorker(named, backlog, r.fallback, r.metrics, r.stop))
	}

	go r.dispatch()
	return r, nil
}

func (r *Router) dispatch() {
	var wg sync.WaitGroup
	for _, w := range r.workers {
		wg.Add(1)
		go func(w *sinkWorker) {
			defer wg.Done()
			w.run()
		}(w)
	}
	defer func() {
		for _, w := range r.workers {
			close(w.events)
		}
		wg.Wait()
		close(r.done)
	}()

	for {
		select {
		case event := <-r.intake:
			r.route(event)
		case <-r.stop:
			for {
				select {
				case event := <-r.intake:
					r.route(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) route(event Event) {
	if event.Severity < r.cfg.MinimumSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)
	r.metrics.Add(metricEventsTotal, 1)
	for _, w := range r.workers {
		w.offer(event)
	}
}

// Publish satisfies Publisher. A nil or closed router drops everything.
func (r *Router) Publish(_ context.Context, event Event) {
	if r == nil || event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.intake <- event:
	default:
		r.dropped(event)
	}
}

// dropped counts every lost event but warns at most once per interval.
func (r *Router) dropped(event Event) {
	r.metrics.Add(metricDroppedTotal, 1)
	now := r.clock.Now()
	r.dropMu.Lock()
	warn := !now.Before(r.nextDropWarn)
	if warn {
		r.nextDropWarn = now.Add(r.cfg.DropWarnInterval)
	}
	r.dropMu.Unlock()
	if warn {
		r.fallback.Warn("intake full, dropping event", "type", event.Type, "tick", event.Tick)
	}
}

// Close drains queued events into the sinks and closes them. A second call
// waits for ctx.
func (r *Router) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if !r.closed.CompareAndSwap(false, true) {
		<-ctx.Done()
		return ctx.Err()
	}
	close(r.stop)
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Metrics exposes the registry the router and its callers record into.
func (r *Router) Metrics() *Metrics {
	if r == nil {
		return nil
	}
	return r.metrics
}

func (r *Router) Sink(name string) Sink {
	if r == nil {
		return nil
	}
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}
