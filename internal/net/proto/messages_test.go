package proto

import (
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestDecodeDispatchesOnType(t *testing.T) {
	ack := uint64(41)
	cases := []struct {
		name string
		msg  Message
	}{
		{"join", JoinRequest{DisplayName: "Ada"}},
		{"input", PlayerInput{Forward: true, TurretAngle: 1.25, Timestamp: 99, SequenceNumber: 7, AckTick: &ack}},
		{"ping", PingRequest{ClientTimestamp: 1234, SequenceNumber: 3}},
		{"chat", ChatMessage{Text: "gg"}},
		{"pong", PongResponse{ClientTimestamp: 1, ServerTimestamp: 2, SequenceNumber: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Encode(tc.msg)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if decoded.MessageType() != tc.msg.MessageType() {
				t.Fatalf("expected %s, got %s", tc.msg.MessageType(), decoded.MessageType())
			}
		})
	}
}

func TestDecodePlayerInputKeepsAckTick(t *testing.T) {
	ack := uint64(41)
	data, err := Encode(PlayerInput{Fire: true, SequenceNumber: 9, AckTick: &ack})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	input, ok := msg.(PlayerInput)
	if !ok {
		t.Fatalf("expected PlayerInput, got %T", msg)
	}
	if input.AckTick == nil || *input.AckTick != 41 {
		t.Fatalf("expected ack tick 41, got %v", input.AckTick)
	}
	converted := input.Input()
	if !converted.Fire || converted.Sequence != 9 {
		t.Fatalf("unexpected simulation input: %+v", converted)
	}

	data, _ = Encode(PlayerInput{Forward: true})
	msg, _ = Decode(data)
	if msg.(PlayerInput).AckTick != nil {
		t.Fatalf("expected absent ack tick to stay nil")
	}
}

func TestEncodeGameStateUpdate(t *testing.T) {
	update := GameStateUpdate{
		Tick:               12,
		RoundTimeRemaining: 599.5,
		IsDelta:            true,
		FullStateTick:      10,
		Tanks: []TankState{{
			ID:        1,
			Team:      "red",
			Position:  Vec3{X: 1, Y: 0.5, Z: 2},
			Rotation:  Quat{W: 1},
			Health:    75,
			MaxHealth: 100,
			PowerUps:  []ActivePowerUp{{Type: "shield", Remaining: 2, Total: 5}},
		}},
		Events: []GameEvent{{Type: "tank_destroyed", Tick: 12, Actor: 1, Target: 4}},
		Scores: []ScoreEntry{{PlayerID: "p1", Name: "Ada", EntityID: 1, Kills: 1, Score: 100}},
	}
	data, err := Encode(update)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	got := msg.(GameStateUpdate)
	if got.Tick != 12 || !got.IsDelta || got.FullStateTick != 10 {
		t.Fatalf("unexpected header: %+v", got)
	}
	if len(got.Tanks) != 1 || got.Tanks[0].Position != update.Tanks[0].Position || got.Tanks[0].PowerUps[0].Type != "shield" {
		t.Fatalf("unexpected tanks: %+v", got.Tanks)
	}
	if len(got.Events) != 1 || got.Events[0].Target != 4 {
		t.Fatalf("unexpected events: %+v", got.Events)
	}
	if len(got.Scores) != 1 || got.Scores[0].Score != 100 {
		t.Fatalf("unexpected scores: %+v", got.Scores)
	}
}

func TestEncodeJoinResponse(t *testing.T) {
	data, err := Encode(JoinResponse{Success: false, ErrorMessage: "Server is full"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeJoinResponse || env.Ver != Version {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	msg, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if resp := msg.(JoinResponse); resp.Success || resp.ErrorMessage != "Server is full" || resp.GameConfig != nil {
		t.Fatalf("unexpected join response: %+v", resp)
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		if _, err := Decode([]byte{0xc1, 0x00}); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		data, _ := msgpack.Marshal(&Envelope{Type: "teleport", Payload: msgpack.RawMessage{0x80}})
		if _, err := Decode(data); !errors.Is(err, ErrUnknownType) {
			t.Fatalf("expected ErrUnknownType, got %v", err)
		}
	})

	t.Run("missing payload", func(t *testing.T) {
		data, _ := msgpack.Marshal(&Envelope{Type: TypeChatMessage})
		if _, err := Decode(data); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("payload of wrong shape", func(t *testing.T) {
		payload, _ := msgpack.Marshal("not a struct")
		data, _ := msgpack.Marshal(&Envelope{Type: TypePlayerInput, Payload: payload})
		if _, err := Decode(data); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("future version", func(t *testing.T) {
		payload, _ := msgpack.Marshal(ChatMessage{Text: "hi"})
		data, _ := msgpack.Marshal(&Envelope{Ver: Version + 1, Type: TypeChatMessage, Payload: payload})
		if _, err := Decode(data); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})
}
