package ws

import (
	"context"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"battletanks/server"
	"battletanks/server/internal/net/intake"
	"battletanks/server/internal/net/proto"
	"battletanks/server/internal/telemetry"
)

type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades HTTP requests and runs one session per connection.
type Handler struct {
	hub      *server.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = hub.Logger()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	h.Serve(ctx, conn)
}

// Serve owns conn until the peer goes away, a deadline passes, or the hub
// drops the session.
func (h *Handler) Serve(ctx context.Context, conn *websocket.Conn) {
	if h == nil || h.hub == nil || conn == nil {
		return
	}
	cfg := h.hub.Config().Session
	session := h.hub.Connect(&wsConn{conn: conn, writeTimeout: cfg.WriteTimeout()})
	go keepalive(conn, session.Done(), cfg.PingInterval(), cfg.WriteTimeout())

	stage := intake.NewStage(session.ID, h.hub, intake.StageConfig{
		InputLimit: cfg.InputRateLimit,
		ChatLimit:  cfg.ChatRateLimit,
		Window:     cfg.RateWindow(),
		Now:        h.hub.Now,
		Tick:       h.hub.Tick,
		Publisher:  h.hub.Publisher(),
	})

	if cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(int64(cfg.MaxMessageBytes))
	}
	readTimeout := cfg.ReadTimeout()
	extend := func() {
		if readTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(readTimeout))
		}
	}
	extend()
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			reason := server.ReasonReadFailed
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				reason = server.ReasonClosed
			}
			h.hub.Disconnect(session.ID, reason)
			return
		}
		extend()

		msg, err := proto.Decode(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", session.ID, err)
			h.hub.RecordMalformed(session.ID, len(payload), err)
			continue
		}

		result, err := stage.Handle(ctx, msg)
		if result.Reply != nil {
			if sendErr := h.hub.Send(session.ID, result.Reply); sendErr != nil {
				return
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, server.ErrUnknownSession):
			return
		case errors.Is(err, intake.ErrUnexpectedMessage):
			h.logger.Printf("discarding %s from %s: %v", msg.MessageType(), session.ID, err)
		case msg.MessageType() == proto.TypeJoinRequest:
			h.logger.Printf("join rejected for %s: %v", session.ID, err)
		default:
			h.logger.Printf("%s from %s: %v", msg.MessageType(), session.ID, err)
		}
	}
}
