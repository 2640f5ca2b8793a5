package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"battletanks/server/internal/net/proto"
	"battletanks/server/logging"
	"battletanks/server/logging/network"
)

// ErrUnexpectedMessage reports a server-to-client message arriving from a
// client.
var ErrUnexpectedMessage = errors.New("unexpected client message")

// DropRateLimited is the reason recorded for messages over budget.
const DropRateLimited = "rate_limited"

// Target is the session layer a Stage routes decoded messages into.
// Join delivers its own response to the session, so the stage returns no
// reply for a join.
type Target interface {
	Join(ctx context.Context, sessionID, name string) (proto.JoinResponse, error)
	SubmitInput(sessionID string, input proto.PlayerInput) error
	Ping(sessionID string, ping proto.PingRequest, receivedAt time.Time) (proto.PongResponse, error)
	Chat(sessionID, text string) error
}

type StageConfig struct {
	InputLimit int
	ChatLimit  int
	Window     time.Duration
	Now        func() time.Time
	Tick       func() uint64
	Publisher  logging.Publisher
	// OnDrop observes silently dropped messages.
	OnDrop func(kind proto.MessageType, reason string)
}

// Result is what the transport should do after a message was staged.
// Reply is nil when nothing needs to be written back.
type Result struct {
	Reply   proto.Message
	Dropped string
}

// Stage owns the inbound path of one session: per-session rate limiting
// followed by dispatch into the session layer.
type Stage struct {
	sessionID string
	target    Target
	inputs    *RateLimiter
	chats     *RateLimiter
	now       func() time.Time
	tick      func() uint64
	publisher logging.Publisher
	onDrop    func(proto.MessageType, string)

	inputDrops uint64
	chatDrops  uint64
}

func NewStage(sessionID string, target Target, cfg StageConfig) *Stage {
	if cfg.InputLimit <= 0 {
		cfg.InputLimit = 30
	}
	if cfg.ChatLimit <= 0 {
		cfg.ChatLimit = 3
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Publisher == nil {
		cfg.Publisher = logging.NopPublisher()
	}
	return &Stage{
		sessionID: sessionID,
		target:    target,
		inputs:    NewRateLimiter(cfg.InputLimit, cfg.Window),
		chats:     NewRateLimiter(cfg.ChatLimit, cfg.Window),
		now:       cfg.Now,
		tick:      cfg.Tick,
		publisher: cfg.Publisher,
		onDrop:    cfg.OnDrop,
	}
}

// Handle routes one decoded message. Rate-limited input and chat are dropped
// without an error so the sender learns nothing from flooding.
func (s *Stage) Handle(ctx context.Context, msg proto.Message) (Result, error) {
	switch m := msg.(type) {
	case proto.JoinRequest:
		_, err := s.target.Join(ctx, s.sessionID, m.DisplayName)
		return Result{}, err
	case proto.PlayerInput:
		if !s.inputs.Allow(s.now()) {
			s.inputDrops++
			s.dropped(ctx, m.MessageType(), s.inputDrops)
			return Result{Dropped: DropRateLimited}, nil
		}
		return Result{}, s.target.SubmitInput(s.sessionID, m)
	case proto.PingRequest:
		pong, err := s.target.Ping(s.sessionID, m, s.now())
		if err != nil {
			return Result{}, err
		}
		return Result{Reply: pong}, nil
	case proto.ChatMessage:
		if !s.chats.Allow(s.now()) {
			s.chatDrops++
			s.dropped(ctx, m.MessageType(), s.chatDrops)
			return Result{Dropped: DropRateLimited}, nil
		}
		return Result{}, s.target.Chat(s.sessionID, m.Text)
	case nil:
		return Result{}, fmt.Errorf("%w: nil", ErrUnexpectedMessage)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.MessageType())
	}
}

// Dropped reports how many input and chat messages were rate limited.
func (s *Stage) Dropped() (inputs, chats uint64) {
	return s.inputDrops, s.chatDrops
}

func (s *Stage) dropped(ctx context.Context, kind proto.MessageType, count uint64) {
	if s.onDrop != nil {
		s.onDrop(kind, DropRateLimited)
	}
	if count&(count-1) != 0 {
		return
	}
	var tick uint64
	if s.tick != nil {
		tick = s.tick()
	}
	network.InputRateLimited(ctx, s.publisher, tick, logging.SessionRef(s.sessionID), network.RateLimitedPayload{
		Kind:    string(kind),
		Dropped: count,
	}, nil)
}
