package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a websocket connection to the hub's outbound Conn. Every
// frame is binary msgpack.
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu sync.Mutex
}

func (c *wsConn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close sends a best-effort close frame before dropping the socket.
func (c *wsConn) Close() error {
	deadline := time.Now().Add(time.Second)
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, message, deadline)
	return c.conn.Close()
}

// keepalive pings the peer until done closes or a ping cannot be written.
// Pongs extend the read deadline in the read loop.
func keepalive(conn *websocket.Conn, done <-chan struct{}, interval, writeTimeout time.Duration) {
	if interval <= 0 {
		return
	}
	if writeTimeout <= 0 {
		writeTimeout = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
