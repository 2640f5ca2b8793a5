package combat

import (
	"context"

	"battletanks/server/logging"
)

const (
	// EventProjectileHit is emitted when a projectile damages a tank.
	EventProjectileHit logging.EventType = "combat.projectile_hit"
	// EventTankDestroyed is emitted when a tank's health reaches zero.
	EventTankDestroyed logging.EventType = "combat.tank_destroyed"
	// EventPowerUpPickedUp is emitted when a tank collects a power-up.
	EventPowerUpPickedUp logging.EventType = "combat.powerup_picked_up"
)

// ProjectileHitPayload captures the amount dealt to a single target.
type ProjectileHitPayload struct {
	Projectile   uint64  `json:"projectile"`
	Amount       float64 `json:"amount"`
	TargetHealth float64 `json:"targetHealth"`
	Blocked      bool    `json:"blocked,omitempty"`
}

// TankDestroyedPayload describes a kill.
type TankDestroyedPayload struct {
	KillerScore int64 `json:"killerScore"`
}

// PowerUpPayload describes a pickup.
type PowerUpPayload struct {
	Type     string  `json:"type"`
	Duration float64 `json:"duration"`
}

// ProjectileHit publishes damage dealt by actor's projectile to target.
func ProjectileHit(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload ProjectileHitPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventProjectileHit,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}

// TankDestroyed publishes a kill by actor of target.
func TankDestroyed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload TankDestroyedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTankDestroyed,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}

// PowerUpPickedUp publishes a pickup by actor.
func PowerUpPickedUp(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PowerUpPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPowerUpPickedUp,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}
