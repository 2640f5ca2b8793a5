package net

import (
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"sort"
	"strings"

	"battletanks/server"
	"battletanks/server/internal/net/ws"
	"battletanks/server/internal/observability"
	"battletanks/server/internal/telemetry"
)

const metricPrefix = "battletanks_"

type HTTPHandlerConfig struct {
	ClientDir string
	Logger    telemetry.Logger
	// EnablePprof mounts the runtime profiling and trace endpoints.
	EnablePprof bool
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = hub.Logger()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, hub.Health())
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, hub.Diagnostics())
	})

	mux.HandleFunc("/metrics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		if err := WriteMetrics(w, hub.MetricsSnapshot()); err != nil {
			logger.Printf("failed to write metrics: %v", err)
		}
	})

	if cfg.EnablePprof {
		observability.MountPprof(mux)
	}

	sessions := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})
	mux.HandleFunc("/ws", sessions.Handle)

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		mux.Handle("/", fs)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// WriteMetrics renders the snapshot in the Prometheus text exposition
// format. Keys ending in _total are counters; the rest are gauges.
func WriteMetrics(w io.Writer, snap server.MetricsSnapshot) error {
	var b strings.Builder
	gauge := func(name string, value uint64) {
		fmt.Fprintf(&b, "# TYPE %s gauge\n%s %d\n", name, name, value)
	}
	counter := func(name string, value uint64) {
		fmt.Fprintf(&b, "# TYPE %s counter\n%s %d\n", name, name, value)
	}

	gauge(metricPrefix+"players_total", uint64(snap.Counters.Players))
	gauge(metricPrefix+"entities_total", uint64(snap.Counters.Entities))
	gauge(metricPrefix+"physics_bodies_total", uint64(snap.Counters.PhysicsBodies))
	gauge(metricPrefix+"sessions", uint64(snap.Sessions))
	counter(metricPrefix+"tick_total", snap.Counters.Tick)

	keys := make([]string, 0, len(snap.Values))
	for key := range snap.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		name := metricPrefix + metricName(key)
		if strings.HasSuffix(name, "_total") {
			counter(name, snap.Values[key])
		} else {
			gauge(name, snap.Values[key])
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func metricName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
