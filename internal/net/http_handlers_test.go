package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"battletanks/server"
	"battletanks/server/internal/config"
	"battletanks/server/internal/sim"
)

func newTestHub(t *testing.T) *server.Hub {
	t.Helper()
	cfg := config.Default()
	cfg.Game.NPCCount = 0
	hub, err := server.NewHub(cfg, nil)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	t.Cleanup(hub.Shutdown)
	return hub
}

func TestHTTPHealthReportsCounters(t *testing.T) {
	hub := newTestHub(t)
	hub.Advance()
	hub.Advance()

	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode health payload: %v", err)
	}
	if payload["status"] != "healthy" {
		t.Fatalf("expected healthy status, got %v", payload["status"])
	}
	if tick, ok := payload["tick"].(float64); !ok || tick != 2 {
		t.Fatalf("expected tick 2, got %v", payload["tick"])
	}
	for _, key := range []string{"players", "entities", "physics_bodies"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected %q in health payload: %s", key, resp.Body.String())
		}
	}
}

func TestHTTPDiagnosticsIncludesHistoryWindow(t *testing.T) {
	hub := newTestHub(t)
	for i := 0; i < 3; i++ {
		hub.Advance()
	}

	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))

	var payload struct {
		Tick     uint64 `json:"tick"`
		TickRate int    `json:"tickRate"`
		History  struct {
			Size   int    `json:"size"`
			Oldest uint64 `json:"oldest"`
			Newest uint64 `json:"newest"`
		} `json:"history"`
		Sessions []any `json:"sessions"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if payload.Tick != 3 || payload.TickRate != 30 {
		t.Fatalf("unexpected diagnostics header: %+v", payload)
	}
	if payload.History.Size != 3 || payload.History.Oldest != 1 || payload.History.Newest != 3 {
		t.Fatalf("unexpected history window: %+v", payload.History)
	}
	if len(payload.Sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(payload.Sessions))
	}
}

func TestHTTPMetricsUsesPrometheusText(t *testing.T) {
	hub := newTestHub(t)
	hub.Advance()

	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := resp.Body.String()
	for _, want := range []string{
		"# TYPE battletanks_tick_total counter\nbattletanks_tick_total 1\n",
		"# TYPE battletanks_players_total gauge\n",
		"battletanks_physics_bodies_total ",
		"battletanks_journal_history_size 1\n",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output:\n%s", want, body)
		}
	}
}

func TestHTTPPprofOnlyWhenEnabled(t *testing.T) {
	hub := newTestHub(t)

	disabled := NewHTTPHandler(hub, HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	disabled.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected pprof to be absent by default, got %d", resp.Code)
	}

	enabled := NewHTTPHandler(hub, HTTPHandlerConfig{EnablePprof: true})
	resp = httptest.NewRecorder()
	enabled.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/trace?seconds=0.05", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected trace endpoint when enabled, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestWriteMetricsSanitizesKeys(t *testing.T) {
	var b strings.Builder
	err := WriteMetrics(&b, server.MetricsSnapshot{
		Counters: sim.Counters{Tick: 7},
		Values: map[string]uint64{
			"logging.events-dropped_total": 2,
			"queue depth":                  5,
		},
	})
	if err != nil {
		t.Fatalf("WriteMetrics: %v", err)
	}
	out := b.String()
	if !strings.Contains(out, "# TYPE battletanks_logging_events_dropped_total counter\nbattletanks_logging_events_dropped_total 2\n") {
		t.Fatalf("expected sanitized counter, got:\n%s", out)
	}
	if !strings.Contains(out, "# TYPE battletanks_queue_depth gauge\nbattletanks_queue_depth 5\n") {
		t.Fatalf("expected sanitized gauge, got:\n%s", out)
	}
}
