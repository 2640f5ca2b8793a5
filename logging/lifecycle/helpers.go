package lifecycle

import (
	"context"

	"battletanks/server/logging"
)

const (
	// EventPlayerJoined is emitted when a session's join is accepted.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDisconnected is emitted when a session ends.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
	// EventJoinRejected is emitted when a join request is refused.
	EventJoinRejected logging.EventType = "lifecycle.join_rejected"
	// EventRoundStarted is emitted when a new round populates the map.
	EventRoundStarted logging.EventType = "lifecycle.round_started"
	// EventRoundEnded is emitted when the round timer expires.
	EventRoundEnded logging.EventType = "lifecycle.round_ended"
)

// PlayerJoinedPayload captures spawn metadata for a new player.
type PlayerJoinedPayload struct {
	Name     string  `json:"name"`
	EntityID uint64  `json:"entityId"`
	Team     string  `json:"team"`
	SpawnX   float64 `json:"spawnX"`
	SpawnZ   float64 `json:"spawnZ"`
}

// PlayerDisconnectedPayload captures the reason a player left.
type PlayerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// JoinRejectedPayload captures why a join failed.
type JoinRejectedPayload struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// RoundPayload describes a round boundary.
type RoundPayload struct {
	Round  uint64 `json:"round"`
	Winner string `json:"winner,omitempty"`
	Score  int64  `json:"score,omitempty"`
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
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// PlayerJoined publishes a player join event.
func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerJoined, logging.SeverityInfo, tick, actor, payload, extra)
}

// PlayerDisconnected publishes a player disconnect event.
func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerDisconnected, logging.SeverityInfo, tick, actor, payload, extra)
}

// JoinRejected publishes a refused join.
func JoinRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload JoinRejectedPayload, extra map[string]any) {
	publish(ctx, pub, EventJoinRejected, logging.SeverityInfo, tick, actor, payload, extra)
}

// RoundStarted publishes a round start.
func RoundStarted(ctx context.Context, pub logging.Publisher, tick uint64, payload RoundPayload, extra map[string]any) {
	publish(ctx, pub, EventRoundStarted, logging.SeverityInfo, tick, logging.WorldRef(), payload, extra)
}

// RoundEnded publishes a round end with its winner.
func RoundEnded(ctx context.Context, pub logging.Publisher, tick uint64, payload RoundPayload, extra map[string]any) {
	publish(ctx, pub, EventRoundEnded, logging.SeverityInfo, tick, logging.WorldRef(), payload, extra)
}
