package server

import (
	"sync"
	"time"

	"battletanks/server/internal/journal"
	"battletanks/server/internal/state"
)

// Conn is the outbound half of a client transport. Write is only ever
// called from the session's writer goroutine; Close may be called from any
// goroutine.
type Conn interface {
	Write(data []byte) error
	Close() error
}

// Session is one connected client. It exists from Connect until Disconnect
// whether or not the client ever joins.
type Session struct {
	ID          string
	ConnectedAt time.Time

	conn      Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	syncer    *journal.Synchronizer

	mu       sync.Mutex
	name     string
	joined   bool
	joining  bool
	entityID state.EntityID
	ackTick  uint64
	hasAck   bool
	lastSent uint64
	lastRTT  time.Duration
	lastSeen time.Time
}

// SessionInfo is a point-in-time copy of a session for diagnostics.
type SessionInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Joined       bool   `json:"joined"`
	EntityID     uint64 `json:"entityId,omitempty"`
	RTTMillis    int64  `json:"rttMillis"`
	AckTick      uint64 `json:"ackTick"`
	LastSentTick uint64 `json:"lastSentTick"`
	LastFullTick uint64 `json:"lastFullTick"`
	SendQueue    int    `json:"sendQueue"`
	LastSeen     int64  `json:"lastSeen"`
}

func newSession(id string, conn Conn, queue int, syncer *journal.Synchronizer, now time.Time) *Session {
	return &Session{
		ID:          id,
		ConnectedAt: now,
		conn:        conn,
		send:        make(chan []byte, queue),
		done:        make(chan struct{}),
		syncer:      syncer,
		lastSeen:    now,
	}
}

// PlayerID is the simulation identity of the session.
func (s *Session) PlayerID() state.PlayerID {
	return state.PlayerID(s.ID)
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) Joined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined
}

func (s *Session) EntityID() state.EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entityID
}

// AckTick reports the newest tick the client acknowledged.
func (s *Session) AckTick() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ackTick, s.hasAck
}

// inGame reports whether the simulation may hold an entity for the session.
func (s *Session) inGame() (joined, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined, s.joining
}

func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// beginJoin claims the session for a join attempt.
func (s *Session) beginJoin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.joined || s.joining {
		return false
	}
	s.joining = true
	return true
}

func (s *Session) finishJoin(name string, entity state.EntityID, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joining = false
	if !ok {
		return
	}
	s.joined = true
	s.name = name
	s.entityID = entity
}

// recordAck moves the acknowledged tick forward. Acks for ticks the session
// was never sent are ignored. It returns the previous ack and whether the
// new one regressed.
func (s *Session) recordAck(ack uint64) (previous uint64, regressed, advanced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.ackTick
	if ack > s.lastSent {
		return previous, false, false
	}
	if s.hasAck && ack < s.ackTick {
		return previous, true, false
	}
	if s.hasAck && ack == s.ackTick {
		return previous, false, false
	}
	s.ackTick = ack
	s.hasAck = true
	return previous, false, true
}

// reference returns the tick to diff against and whether tick may be sent
// at all. A session never receives a tick at or below one it already got.
func (s *Session) reference(tick uint64) (*uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.joined || tick <= s.lastSent {
		return nil, false
	}
	if !s.hasAck {
		return nil, true
	}
	ref := s.ackTick
	return &ref, true
}

func (s *Session) markSent(tick uint64) {
	s.mu.Lock()
	if tick > s.lastSent {
		s.lastSent = tick
	}
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time, rtt time.Duration, hasRTT bool) {
	s.mu.Lock()
	s.lastSeen = now
	if hasRTT {
		s.lastRTT = rtt
	}
	s.mu.Unlock()
}

// enqueue hands a frame to the writer without blocking. A full queue means
// the client cannot keep up.
func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// writeLoop drains the send queue until the session closes or a write fails.
func (s *Session) writeLoop(onError func(error)) {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			if err := s.conn.Write(data); err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
		}
	}
}

func (s *Session) close() bool {
	closed := false
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
		closed = true
	})
	return closed
}

func (s *Session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := SessionInfo{
		ID:           s.ID,
		Name:         s.name,
		Joined:       s.joined,
		EntityID:     uint64(s.entityID),
		RTTMillis:    s.lastRTT.Milliseconds(),
		AckTick:      s.ackTick,
		LastSentTick: s.lastSent,
		SendQueue:    len(s.send),
		LastSeen:     s.lastSeen.UnixMilli(),
	}
	if s.syncer != nil {
		info.LastFullTick = s.syncer.LastFullTick()
	}
	return info
}
