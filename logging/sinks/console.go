package sinks

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"battletanks/server/logging"
)

// ConsoleSink renders events as leveled key/value lines.
type ConsoleSink struct {
	logger *log.Logger
}

func NewConsoleSink(w io.Writer, cfg logging.ConsoleConfig) *ConsoleSink {
	formatter := cfg.Formatter
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "event",
		Level:           cfg.Level,
		Formatter:       formatter,
	})
	return &ConsoleSink{logger: logger}
}

func (s *ConsoleSink) Write(event logging.Event) error {
	if s.logger == nil {
		return nil
	}
	keyvals := []any{"tick", event.Tick, "actor", formatEntity(event.Actor)}
	if len(event.Targets) > 0 {
		keyvals = append(keyvals, "targets", formatTargets(event.Targets))
	}
	if event.Payload != nil {
		keyvals = append(keyvals, "payload", formatPayload(event.Payload))
	}
	for _, key := range sortedKeys(event.Extra) {
		keyvals = append(keyvals, key, event.Extra[key])
	}
	msg := string(event.Type)
	switch event.Severity {
	case logging.SeverityDebug:
		s.logger.Debug(msg, keyvals...)
	case logging.SeverityWarn:
		s.logger.Warn(msg, keyvals...)
	case logging.SeverityError:
		s.logger.Error(msg, keyvals...)
	default:
		s.logger.Info(msg, keyvals...)
	}
	return nil
}

func (s *ConsoleSink) Close(context.Context) error {
	return nil
}

func formatEntity(ref logging.EntityRef) string {
	if ref.ID == "" {
		return string(ref.Kind)
	}
	if ref.Kind == "" {
		return ref.ID
	}
	return string(ref.Kind) + ":" + ref.ID
}

func formatTargets(targets []logging.EntityRef) string {
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, formatEntity(target))
	}
	return strings.Join(parts, ",")
}

func formatPayload(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return "<unencodable>"
	}
	return string(data)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
