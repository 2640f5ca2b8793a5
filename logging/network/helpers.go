package network

import (
	"context"

	"battletanks/server/logging"
)

const (
	// EventAckAdvanced is emitted when a client acknowledges a newer tick.
	EventAckAdvanced logging.EventType = "network.ack_advanced"
	// EventAckRegression is emitted when a client reports an older acknowledgement than previously recorded.
	EventAckRegression logging.EventType = "network.ack_regression"
	// EventInputRateLimited is emitted on a power-of-two cadence while a session floods input.
	EventInputRateLimited logging.EventType = "network.input_rate_limited"
	// EventMalformedMessage is emitted when an inbound frame cannot be decoded.
	EventMalformedMessage logging.EventType = "network.malformed_message"
	// EventSessionDropped is emitted when a send failure tears a session down.
	EventSessionDropped logging.EventType = "network.session_dropped"
)

// AckPayload captures acknowledgement progression details.
type AckPayload struct {
	Previous uint64 `json:"previous"`
	Ack      uint64 `json:"ack"`
}

// RateLimitedPayload captures how many messages a session has had dropped.
type RateLimitedPayload struct {
	Kind    string `json:"kind"`
	Dropped uint64 `json:"dropped"`
}

// MalformedPayload captures a decode failure.
type MalformedPayload struct {
	Error string `json:"error"`
	Bytes int    `json:"bytes"`
}

// SessionDroppedPayload captures why a session was removed.
type SessionDroppedPayload struct {
	Reason string `json:"reason"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, severity logging.Severity, tick uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// AckAdvanced publishes a debug event when a client acknowledgement advances.
func AckAdvanced(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AckPayload, extra map[string]any) {
	publish(ctx, pub, EventAckAdvanced, logging.SeverityDebug, tick, actor, payload, extra)
}

// AckRegression publishes a warning event when a client acknowledgement regresses.
func AckRegression(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload AckPayload, extra map[string]any) {
	publish(ctx, pub, EventAckRegression, logging.SeverityWarn, tick, actor, payload, extra)
}

// InputRateLimited publishes a warning for a flooding session.
func InputRateLimited(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RateLimitedPayload, extra map[string]any) {
	publish(ctx, pub, EventInputRateLimited, logging.SeverityWarn, tick, actor, payload, extra)
}

// MalformedMessage publishes a decode failure.
func MalformedMessage(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload MalformedPayload, extra map[string]any) {
	publish(ctx, pub, EventMalformedMessage, logging.SeverityWarn, tick, actor, payload, extra)
}

// SessionDropped publishes a forced session removal.
func SessionDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SessionDroppedPayload, extra map[string]any) {
	publish(ctx, pub, EventSessionDropped, logging.SeverityWarn, tick, actor, payload, extra)
}
