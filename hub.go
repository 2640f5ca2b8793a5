package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"battletanks/server/internal/config"
	"battletanks/server/internal/journal"
	"battletanks/server/internal/lagcomp"
	"battletanks/server/internal/net/proto"
	"battletanks/server/internal/sim"
	"battletanks/server/internal/state"
	"battletanks/server/internal/telemetry"
	"battletanks/server/logging"
	"battletanks/server/logging/lifecycle"
	"battletanks/server/logging/network"
)

var (
	ErrServerFull     = sim.ErrServerFull
	ErrAlreadyJoined  = sim.ErrAlreadyJoined
	ErrInvalidName    = errors.New("invalid display name")
	ErrUnknownSession = errors.New("unknown session")
	ErrJoinTimeout    = errors.New("join timed out")
	ErrNotJoined      = errors.New("session has not joined")
	ErrServerBusy     = errors.New("server busy")
	ErrSendQueueFull  = errors.New("send queue full")
)

const (
	ReasonClosed       = "closed"
	ReasonQueueFull    = "send_queue_full"
	ReasonSendFailed   = "send_failed"
	ReasonJoinTimeout  = "join_timeout"
	ReasonReadFailed   = "read_failed"
	ReasonShuttingDown = "shutting_down"

	// Client-reported samples further out than this are stale.
	maxRTTSample = 5 * time.Second

	metricSessions         = "hub_sessions"
	metricAckRegressions   = "hub_ack_regressions_total"
	metricSessionsDropped  = "hub_sessions_dropped_total"
	metricJoinsRejected    = "hub_joins_rejected_total"
	metricMalformedFrames  = "hub_malformed_messages_total"
	metricBroadcastBytes   = "hub_broadcast_bytes_total"
	metricUpdatesFull      = "hub_updates_full_total"
	metricUpdatesDelta     = "hub_updates_delta_total"
	summaryIntervalSeconds = 10
)

// Hub owns the session table and is the only bridge between network
// goroutines and the simulation loop.
type Hub struct {
	cfg       config.Config
	engine    *sim.Engine
	loop      *sim.Loop
	journal   *journal.Journal
	lag       *lagcomp.Compensator
	logger    telemetry.Logger
	metrics   *logging.Metrics
	publisher logging.Publisher
	clock     logging.Clock
	telemetry *telemetryCounters

	mu       sync.Mutex
	sessions map[string]*Session

	tick     atomic.Uint64
	counters atomic.Pointer[sim.Counters]
}

type hubOptions struct {
	logger    telemetry.Logger
	clock     logging.Clock
	publisher logging.Publisher
}

// HubOption customises a Hub at construction.
type HubOption func(*hubOptions)

func WithLogger(logger telemetry.Logger) HubOption {
	return func(o *hubOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithClock(clock logging.Clock) HubOption {
	return func(o *hubOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithPublisher overrides the router as the event destination.
func WithPublisher(pub logging.Publisher) HubOption {
	return func(o *hubOptions) {
		if pub != nil {
			o.publisher = pub
		}
	}
}

// NewHub builds the engine, loop and snapshot history from cfg. A nil
// router publishes nowhere and keeps metrics locally.
func NewHub(cfg config.Config, router *logging.Router, opts ...HubOption) (*Hub, error) {
	cfg = cfg.Normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := hubOptions{
		logger: telemetry.Discard(),
		clock:  logging.ClockFunc(time.Now),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	metrics := &logging.Metrics{}
	var publisher logging.Publisher = logging.NopPublisher()
	if router != nil {
		metrics = router.Metrics()
		publisher = router
	}
	if options.publisher != nil {
		publisher = options.publisher
	}

	engine, err := sim.New(cfg, sim.Deps{
		Logger:    options.logger,
		Metrics:   metrics,
		Publisher: publisher,
		Clock:     options.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	history := journal.New(cfg.Sync.HistorySize, uint64(cfg.Sync.HistorySize))
	history.AttachMetrics(metrics)

	h := &Hub{
		cfg:       cfg,
		engine:    engine,
		journal:   history,
		lag:       lagcomp.New(cfg.Session.MaxCompensation()),
		logger:    options.logger,
		metrics:   metrics,
		publisher: publisher,
		clock:     options.clock,
		telemetry: newTelemetryCounters(options.logger),
		sessions:  make(map[string]*Session),
	}
	h.loop = sim.NewLoop(engine, sim.NewInputTable(), sim.LoopConfig{
		TickRate:        cfg.Server.TickRate,
		CommandCapacity: cfg.Session.CommandCapacity,
		PerActorLimit:   cfg.Session.ChatRateLimit + 1,
		WarningStep:     max(cfg.Session.CommandCapacity/4, 1),
	}, sim.LoopHooks{
		AfterStep:       h.afterStep,
		OnQueueWarning:  h.queueWarning,
		OnBudgetOverrun: h.budgetOverrun,
	})
	counters := engine.Counters()
	h.counters.Store(&counters)
	return h, nil
}

func (h *Hub) Config() config.Config { return h.cfg }

// Tick is the last completed simulation tick.
func (h *Hub) Tick() uint64 { return h.tick.Load() }

func (h *Hub) Publisher() logging.Publisher { return h.publisher }

func (h *Hub) Logger() telemetry.Logger { return h.logger }

func (h *Hub) Now() time.Time { return h.clock.Now() }

// Connect registers a transport and starts its writer. The session is not
// in the game until it joins.
func (h *Hub) Connect(conn Conn) *Session {
	id := uuid.NewString()
	session := newSession(id, conn, h.cfg.Session.SendQueue, journal.NewSynchronizer(h.journal, h.cfg.Sync), h.clock.Now())

	h.mu.Lock()
	h.sessions[id] = session
	count := len(h.sessions)
	h.mu.Unlock()

	h.metrics.Store(metricSessions, uint64(count))
	go session.writeLoop(func(err error) {
		h.dropSession(session, ReasonSendFailed, err)
	})
	h.logger.Printf("session %s connected (%d active)", id, count)
	return session
}

// Disconnect tears the session down. The player's tank leaves the world at
// the next tick. Repeated calls are no-ops.
func (h *Hub) Disconnect(sessionID, reason string) bool {
	h.mu.Lock()
	session, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	count := len(h.sessions)
	h.mu.Unlock()
	if !ok {
		return false
	}

	session.close()
	h.metrics.Store(metricSessions, uint64(count))

	joined, pending := session.inGame()
	if joined || pending {
		player := session.PlayerID()
		h.loop.Inputs().MarkLeft(player)
		h.lag.Remove(player)
	}
	if joined {
		lifecycle.PlayerDisconnected(context.Background(), h.publisher, h.tick.Load(), logging.PlayerRef(sessionID), lifecycle.PlayerDisconnectedPayload{
			Reason: reason,
		}, nil)
	}
	h.logger.Printf("session %s disconnected: %s (%d active)", sessionID, reason, count)
	return true
}

// Shutdown disconnects every session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.Disconnect(id, ReasonShuttingDown)
	}
}

func (h *Hub) session(id string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) dropSession(session *Session, reason string, err error) {
	h.telemetry.IncrementSessionsDropped()
	h.metrics.Add(metricSessionsDropped, 1)
	network.SessionDropped(context.Background(), h.publisher, h.tick.Load(), logging.SessionRef(session.ID), network.SessionDroppedPayload{
		Reason: reason,
	}, nil)
	if err != nil {
		h.logger.Printf("dropping session %s (%s): %v", session.ID, reason, err)
	}
	h.Disconnect(session.ID, reason)
}

// Join spawns a tank for the session. It blocks until the tick that applies
// the join, the join timeout, or ctx, whichever comes first. Join queues the
// response to the session itself and also returns it; the response is
// meaningful even when an error is returned.
func (h *Hub) Join(ctx context.Context, sessionID, name string) (proto.JoinResponse, error) {
	session, ok := h.session(sessionID)
	if !ok {
		return proto.JoinResponse{ErrorMessage: JoinErrorMessage(ErrUnknownSession)}, ErrUnknownSession
	}
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > h.cfg.Session.MaxNameLength {
		return h.rejectJoin(ctx, session, name, ErrInvalidName)
	}
	if !session.beginJoin() {
		return h.rejectJoin(ctx, session, name, ErrAlreadyJoined)
	}

	reply := make(chan sim.JoinResult, 1)
	if ok, reason := h.loop.Enqueue(sim.Command{
		OriginTick: h.tick.Load(),
		ActorID:    sessionID,
		Type:       sim.CommandJoin,
		IssuedAt:   h.clock.Now(),
		Join:       &sim.JoinCommand{Name: name, Reply: reply},
	}); !ok {
		session.finishJoin("", 0, false)
		return h.rejectJoin(ctx, session, name, fmt.Errorf("%w: %s", ErrServerBusy, reason))
	}

	timer := time.NewTimer(h.cfg.Session.JoinTimeout())
	defer timer.Stop()

	var result sim.JoinResult
	select {
	case result = <-reply:
	case <-timer.C:
		session.finishJoin("", 0, false)
		h.loop.Inputs().MarkLeft(session.PlayerID())
		resp, err := h.rejectJoin(ctx, session, name, ErrJoinTimeout)
		h.Disconnect(sessionID, ReasonJoinTimeout)
		return resp, err
	case <-ctx.Done():
		session.finishJoin("", 0, false)
		h.loop.Inputs().MarkLeft(session.PlayerID())
		return h.rejectJoin(ctx, session, name, ctx.Err())
	case <-session.Done():
		session.finishJoin("", 0, false)
		return proto.JoinResponse{ErrorMessage: JoinErrorMessage(ErrUnknownSession)}, ErrUnknownSession
	}

	if result.Err != nil {
		session.finishJoin("", 0, false)
		return h.rejectJoin(ctx, session, name, result.Err)
	}

	gameConfig := h.gameConfig()
	resp := proto.JoinResponse{
		Success:          true,
		PlayerID:         sessionID,
		AssignedEntityID: uint64(result.EntityID),
		GameConfig:       &gameConfig,
	}
	// Broadcasts skip sessions that are not joined yet, so queueing the reply
	// first keeps it ahead of the first state update.
	if err := h.deliver(session, resp); err != nil {
		session.finishJoin("", 0, false)
		h.loop.Inputs().MarkLeft(session.PlayerID())
		return proto.JoinResponse{ErrorMessage: JoinErrorMessage(err)}, err
	}
	session.finishJoin(name, result.EntityID, true)

	// The session may have closed while the join was in flight.
	select {
	case <-session.Done():
		h.loop.Inputs().MarkLeft(session.PlayerID())
		return proto.JoinResponse{ErrorMessage: JoinErrorMessage(ErrUnknownSession)}, ErrUnknownSession
	default:
	}

	h.logger.Printf("session %s joined as %q entity=%d team=%s", sessionID, name, result.EntityID, result.Team)
	return resp, nil
}

func (h *Hub) rejectJoin(ctx context.Context, session *Session, name string, err error) (proto.JoinResponse, error) {
	h.metrics.Add(metricJoinsRejected, 1)
	lifecycle.JoinRejected(ctx, h.publisher, h.tick.Load(), logging.SessionRef(session.ID), lifecycle.JoinRejectedPayload{
		Name:   name,
		Reason: err.Error(),
	}, nil)
	resp := proto.JoinResponse{Success: false, ErrorMessage: JoinErrorMessage(err)}
	if sendErr := h.deliver(session, resp); sendErr != nil {
		h.logger.Printf("join rejection for %s not delivered: %v", session.ID, sendErr)
	}
	return resp, err
}

// JoinErrorMessage is the client-facing text for a failed join.
func JoinErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrServerFull):
		return "Server is full"
	case errors.Is(err, ErrInvalidName):
		return "Invalid display name"
	case errors.Is(err, ErrAlreadyJoined):
		return "Already joined"
	case errors.Is(err, ErrJoinTimeout):
		return "Join timed out"
	case errors.Is(err, ErrServerBusy):
		return "Server is busy"
	case errors.Is(err, ErrUnknownSession):
		return "Session closed"
	default:
		return "Join failed"
	}
}

func (h *Hub) gameConfig() proto.GameConfig {
	return proto.GameConfig{
		TickRate:            h.cfg.Server.TickRate,
		MaxPlayers:          h.cfg.Server.MaxPlayers,
		RoundDuration:       h.cfg.Game.RoundDuration,
		RespawnTime:         h.cfg.Game.RespawnDelay,
		InvulnerabilityTime: h.cfg.Game.SpawnProtection,
		MapSize:             h.cfg.Game.MapSize,
	}
}

// SubmitInput replaces the player's pending input. The origin tick is
// rewound by the player's measured latency.
func (h *Hub) SubmitInput(sessionID string, input proto.PlayerInput) error {
	session, ok := h.session(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	if !session.Joined() {
		return ErrNotJoined
	}
	player := session.PlayerID()
	tick := h.tick.Load()
	in := input.Input()
	in.OriginTick = h.lag.CompensatedTick(player, tick, h.cfg.Server.TickRate)
	h.loop.Inputs().Store(player, in)

	if input.AckTick != nil {
		h.recordAck(session, *input.AckTick, tick)
	}
	session.touch(h.clock.Now(), 0, false)
	return nil
}

func (h *Hub) recordAck(session *Session, ack, tick uint64) {
	previous, regressed, advanced := session.recordAck(ack)
	switch {
	case regressed:
		h.metrics.Add(metricAckRegressions, 1)
		network.AckRegression(context.Background(), h.publisher, tick, logging.SessionRef(session.ID), network.AckPayload{
			Previous: previous,
			Ack:      ack,
		}, nil)
	case advanced && previous == 0:
		network.AckAdvanced(context.Background(), h.publisher, tick, logging.SessionRef(session.ID), network.AckPayload{
			Previous: previous,
			Ack:      ack,
		}, nil)
	}
}

// Ping answers a keepalive and folds the latency sample into lag
// compensation.
func (h *Hub) Ping(sessionID string, ping proto.PingRequest, receivedAt time.Time) (proto.PongResponse, error) {
	session, ok := h.session(sessionID)
	if !ok {
		return proto.PongResponse{}, ErrUnknownSession
	}
	oneWay, ok := oneWayLatency(ping, receivedAt)
	if ok {
		h.lag.UpdateLatency(session.PlayerID(), oneWay)
	}
	session.touch(receivedAt, 2*oneWay, ok)
	return proto.PongResponse{
		ClientTimestamp: ping.ClientTimestamp,
		ServerTimestamp: uint64(h.clock.Now().UnixMilli()),
		SequenceNumber:  ping.SequenceNumber,
	}, nil
}

// oneWayLatency prefers the client's measured round trip and falls back to
// the send-to-receive delta.
func oneWayLatency(ping proto.PingRequest, receivedAt time.Time) (time.Duration, bool) {
	if ping.RTTMillis > 0 {
		rtt := time.Duration(ping.RTTMillis) * time.Millisecond
		if rtt > maxRTTSample {
			return 0, false
		}
		return rtt / 2, true
	}
	if ping.ClientTimestamp == 0 {
		return 0, false
	}
	delta := receivedAt.UnixMilli() - int64(ping.ClientTimestamp)
	if delta < 0 || time.Duration(delta)*time.Millisecond > maxRTTSample {
		return 0, false
	}
	return time.Duration(delta) * time.Millisecond, true
}

// Chat queues a trimmed chat line for the next tick. Empty lines are
// dropped.
func (h *Hub) Chat(sessionID, text string) error {
	session, ok := h.session(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	if !session.Joined() {
		return ErrNotJoined
	}
	text = truncateRunes(strings.TrimSpace(text), h.cfg.Session.MaxChatLength)
	if text == "" {
		return nil
	}
	if ok, reason := h.loop.Enqueue(sim.Command{
		OriginTick: h.tick.Load(),
		ActorID:    sessionID,
		Type:       sim.CommandChat,
		IssuedAt:   h.clock.Now(),
		Chat:       &sim.ChatCommand{Text: text},
	}); !ok {
		return fmt.Errorf("%w: %s", ErrServerBusy, reason)
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}

// Send encodes msg onto the session's queue. A full queue drops the session.
func (h *Hub) Send(sessionID string, msg proto.Message) error {
	session, ok := h.session(sessionID)
	if !ok {
		return ErrUnknownSession
	}
	return h.deliver(session, msg)
}

// deliver queues msg on the session's writer. A closed session reports
// ErrUnknownSession; a full queue drops the session.
func (h *Hub) deliver(session *Session, msg proto.Message) error {
	data, err := proto.Encode(msg)
	if err != nil {
		return err
	}
	if !session.enqueue(data) {
		select {
		case <-session.Done():
			return ErrUnknownSession
		default:
		}
		h.dropSession(session, ReasonQueueFull, nil)
		return ErrSendQueueFull
	}
	return nil
}

// RecordMalformed accounts for an inbound frame that could not be decoded.
func (h *Hub) RecordMalformed(sessionID string, size int, err error) {
	h.telemetry.IncrementMalformed()
	h.metrics.Add(metricMalformedFrames, 1)
	network.MalformedMessage(context.Background(), h.publisher, h.tick.Load(), logging.SessionRef(sessionID), network.MalformedPayload{
		Error: err.Error(),
		Bytes: size,
	}, nil)
}

// Advance runs exactly one tick and its broadcast. It must not be called
// while RunSimulation is active.
func (h *Hub) Advance() sim.LoopStepResult {
	start := h.clock.Now()
	result := h.loop.Advance()
	result.Duration = h.clock.Now().Sub(start)
	result.Budget = h.cfg.TickDuration()
	h.afterStep(result)
	return result
}

// RunSimulation drives the fixed-step loop until stop closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	h.logger.Printf("simulation running at %d Hz", h.cfg.Server.TickRate)
	h.loop.Run(stop)
}

// afterStep runs on the simulation goroutine once per tick.
func (h *Hub) afterStep(result sim.LoopStepResult) {
	h.tick.Store(result.Tick)
	counters := h.engine.Counters()
	h.counters.Store(&counters)

	stored := h.journal.Store(result.Snapshot)
	h.telemetry.RecordHistory(stored.Size, stored.Oldest, stored.Newest)

	h.broadcast(result.Snapshot)
	h.telemetry.RecordTickDuration(result.Tick, result.Duration)

	every := uint64(h.cfg.Server.TickRate * summaryIntervalSeconds)
	if every > 0 && result.Tick%every == 0 {
		h.logger.Printf(
			"tick=%d players=%d entities=%d bodies=%d sessions=%d history=%d duration=%s",
			result.Tick,
			counters.Players,
			counters.Entities,
			counters.PhysicsBodies,
			h.SessionCount(),
			stored.Size,
			result.Duration,
		)
	}
}

// broadcast sends each joined session either full state or a delta against
// its acknowledged tick.
func (h *Hub) broadcast(snap sim.Snapshot) {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	totalBytes, totalEntities := 0, 0
	for _, s := range sessions {
		ref, ok := s.reference(snap.Tick)
		if !ok {
			continue
		}
		update := s.syncer.CreateUpdate(snap, ref)
		data, err := proto.Encode(update)
		if err != nil {
			h.logger.Printf("encode update for %s: %v", s.ID, err)
			continue
		}
		if !s.enqueue(data) {
			h.dropSession(s, ReasonQueueFull, nil)
			continue
		}
		s.markSent(snap.Tick)

		entities := len(update.Tanks) + len(update.Projectiles) + len(update.PowerUps)
		h.telemetry.RecordUpdate(len(data), entities, update.IsDelta)
		h.metrics.Add(metricBroadcastBytes, uint64(len(data)))
		if update.IsDelta {
			h.metrics.Add(metricUpdatesDelta, 1)
		} else {
			h.metrics.Add(metricUpdatesFull, 1)
		}
		totalBytes += len(data)
		totalEntities += entities
	}
	h.telemetry.RecordBroadcast(totalBytes, totalEntities)
}

func (h *Hub) queueWarning(length int) {
	h.logger.Printf("[backpressure] command queue length=%d capacity=%d", length, h.cfg.Session.CommandCapacity)
}

func (h *Hub) budgetOverrun(result sim.LoopStepResult, streak uint64) {
	if streak&(streak-1) != 0 {
		return
	}
	h.logger.Printf("tick %d overran its budget: %s > %s (streak %d)", result.Tick, result.Duration, result.Budget, streak)
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status        string `json:"status"`
	Tick          uint64 `json:"tick"`
	Players       int    `json:"players"`
	Entities      int    `json:"entities"`
	PhysicsBodies int    `json:"physics_bodies"`
}

func (h *Hub) Health() HealthStatus {
	counters := h.lastCounters()
	return HealthStatus{
		Status:        "healthy",
		Tick:          counters.Tick,
		Players:       counters.Players,
		Entities:      counters.Entities,
		PhysicsBodies: counters.PhysicsBodies,
	}
}

func (h *Hub) lastCounters() sim.Counters {
	if c := h.counters.Load(); c != nil {
		return *c
	}
	return sim.Counters{}
}

// HistoryWindow describes the ticks currently held for delta references.
type HistoryWindow struct {
	Size   int    `json:"size"`
	Oldest uint64 `json:"oldest"`
	Newest uint64 `json:"newest"`
}

type Diagnostics struct {
	ServerTime int64             `json:"serverTime"`
	Tick       uint64            `json:"tick"`
	TickRate   int               `json:"tickRate"`
	Sessions   []SessionInfo     `json:"sessions"`
	History    HistoryWindow     `json:"history"`
	Telemetry  telemetrySnapshot `json:"telemetry"`
}

func (h *Hub) Diagnostics() Diagnostics {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

	size, oldest, newest := h.journal.Window()
	return Diagnostics{
		ServerTime: h.clock.Now().UnixMilli(),
		Tick:       h.tick.Load(),
		TickRate:   h.cfg.Server.TickRate,
		Sessions:   infos,
		History:    HistoryWindow{Size: size, Oldest: oldest, Newest: newest},
		Telemetry:  h.telemetry.Snapshot(),
	}
}

// MetricsSnapshot pairs the engine counters with every router metric.
type MetricsSnapshot struct {
	Counters sim.Counters
	Sessions int
	Values   map[string]uint64
}

func (h *Hub) MetricsSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters: h.lastCounters(),
		Sessions: h.SessionCount(),
		Values:   h.metrics.Snapshot(),
	}
}

// Latency reports the one-way latency the compensator holds for a player.
func (h *Hub) Latency(player state.PlayerID) (time.Duration, bool) {
	return h.lag.Latency(player)
}
