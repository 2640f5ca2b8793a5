package ws

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"battletanks/server"
	"battletanks/server/internal/config"
	"battletanks/server/internal/net/proto"
)

func newRunningHub(t *testing.T) *server.Hub {
	t.Helper()
	cfg := config.Default()
	cfg.Game.NPCCount = 0
	cfg.Game.ObstacleCount = 0
	cfg.PowerUps.Count = 0
	hub, err := server.NewHub(cfg, nil)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		hub.RunSimulation(stop)
		close(done)
	}()
	t.Cleanup(func() {
		close(stop)
		<-done
		hub.Shutdown()
	})
	return hub
}

func websocketURL(t *testing.T, raw string) string {
	t.Helper()
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse server url: %v", err)
	}
	parsed.Scheme = "ws"
	return parsed.String()
}

func dial(t *testing.T, hub *server.Hub) *websocket.Conn {
	t.Helper()
	handler := NewHandler(hub, HandlerConfig{})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg proto.Message) {
	t.Helper()
	data, err := proto.Encode(msg)
	if err != nil {
		t.Fatalf("encode %s: %v", msg.MessageType(), err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("write %s: %v", msg.MessageType(), err)
	}
}

// readUntil returns the first message of the wanted type, skipping state
// updates that arrive in between.
func readUntil(t *testing.T, conn *websocket.Conn, want proto.MessageType) proto.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if kind != websocket.BinaryMessage {
			t.Fatalf("expected binary frame, got %d", kind)
		}
		msg, err := proto.Decode(payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.MessageType() == want {
			return msg
		}
	}
}

func TestHandleJoinReceivesConfigAndState(t *testing.T) {
	hub := newRunningHub(t)
	conn := dial(t, hub)

	send(t, conn, proto.JoinRequest{DisplayName: "Ada"})
	resp := readUntil(t, conn, proto.TypeJoinResponse).(proto.JoinResponse)
	if !resp.Success || resp.AssignedEntityID != 1 || resp.GameConfig == nil {
		t.Fatalf("unexpected join response: %+v", resp)
	}

	update := readUntil(t, conn, proto.TypeGameStateUpdate).(proto.GameStateUpdate)
	if update.IsDelta {
		t.Fatalf("expected first update to carry full state")
	}
	found := false
	for _, tank := range update.Tanks {
		if tank.ID == resp.AssignedEntityID && tank.Name == "Ada" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected own tank in full state, got %+v", update.Tanks)
	}
}

func TestHandlePingAndMalformedFrames(t *testing.T) {
	hub := newRunningHub(t)
	conn := dial(t, hub)

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{0xc1, 0x00}); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	send(t, conn, proto.PingRequest{ClientTimestamp: uint64(time.Now().UnixMilli()), SequenceNumber: 9})
	pong := readUntil(t, conn, proto.TypePongResponse).(proto.PongResponse)
	if pong.SequenceNumber != 9 || pong.ServerTimestamp == 0 {
		t.Fatalf("unexpected pong: %+v", pong)
	}
	if got := hub.Diagnostics().Telemetry.MalformedMessages; got != 1 {
		t.Fatalf("expected one malformed message, got %d", got)
	}
}

func TestHandleDisconnectRemovesSession(t *testing.T) {
	hub := newRunningHub(t)
	conn := dial(t, hub)

	send(t, conn, proto.JoinRequest{DisplayName: "Ada"})
	readUntil(t, conn, proto.TypeJoinResponse)
	if hub.SessionCount() != 1 {
		t.Fatalf("expected one session, got %d", hub.SessionCount())
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for hub.SessionCount() != 0 || hub.Health().Players != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected session and player to be removed, health=%+v", hub.Health())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
