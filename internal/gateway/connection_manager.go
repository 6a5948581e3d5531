package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/draftroom/internal/engine/events"
	"github.com/mcdev12/draftroom/internal/eventbus"
	"github.com/rs/zerolog/log"
)

// ConnectionManager owns the WebSocket connection pools, one per room, and
// fans bus events out to them. Rooms are subscribed on the bus lazily: the
// first connection for a room opens the subscription, the last one closes
// it.
type ConnectionManager struct {
	bus      eventbus.Bus
	upgrader websocket.Upgrader
	config   ConnectionConfig

	mu            sync.RWMutex
	roomConns     map[string]map[*Connection]bool
	subscriptions map[string]func()

	broadcastCh chan BroadcastMessage
	commands    CommandHandler
}

// CommandHandler processes a decoded client command for a connection.
type CommandHandler interface {
	HandleCommand(ctx context.Context, conn *Connection, cmd ClientCommand)
}

// Connection is one WebSocket client attached to a room.
type Connection struct {
	ID     string
	RoomID string
	Conn   *websocket.Conn
	Send   chan []byte

	manager *ConnectionManager

	// mu guards the feed state below. Every send on Send takes it first,
	// so Send is never written after close. While syncing, broadcast
	// frames accumulate in pending; openFeed queues the snapshot frame,
	// replays pending above the floor, and opens the live feed. lastPick
	// keeps the pick feed gapless and duplicate-free: a PickMade event is
	// delivered only if its pick number is past the last delivered one.
	mu       sync.Mutex
	closed   bool
	syncing  bool
	pending  []BroadcastMessage
	lastPick int

	ConnectedAt time.Time
}

// ConnectionConfig holds WebSocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the stock WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// BroadcastMessage is one frame headed for a room's connections.
// PickNumber is nonzero only for pick feed events and drives per-connection
// dedupe.
type BroadcastMessage struct {
	RoomID     string
	PickNumber int
	Data       []byte
}

// NewConnectionManager creates a manager fed by bus.
func NewConnectionManager(config ConnectionConfig, bus eventbus.Bus, commands CommandHandler) *ConnectionManager {
	return &ConnectionManager{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:        config,
		roomConns:     make(map[string]map[*Connection]bool),
		subscriptions: make(map[string]func()),
		broadcastCh:   make(chan BroadcastMessage, 1000),
		commands:      commands,
	}
}

// Start processes broadcast messages until ctx is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket attached to
// roomID. The connection starts syncing: broadcast frames are buffered
// from this moment until openFeed installs the snapshot, so a pick that
// commits during the handshake is neither lost nor delivered ahead of the
// snapshot frame.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, roomID string) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		manager:     cm,
		syncing:     true,
		ConnectedAt: time.Now(),
	}

	if err := cm.registerConnection(connection); err != nil {
		conn.Close()
		return nil, err
	}

	go connection.writePump()
	// The request context dies when the HTTP handler returns, so commands
	// run against the background context for the life of the socket.
	go connection.readPump(context.Background())

	log.Info().
		Str("connection_id", connection.ID).
		Str("room_id", roomID).
		Msg("WebSocket connection established")
	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.roomConns[conn.RoomID] == nil {
		unsub, err := cm.bus.Subscribe(conn.RoomID, cm.forwardEvent)
		if err != nil {
			return fmt.Errorf("subscribe room %s: %w", conn.RoomID, err)
		}
		cm.roomConns[conn.RoomID] = make(map[*Connection]bool)
		cm.subscriptions[conn.RoomID] = unsub
	}
	cm.roomConns[conn.RoomID][conn] = true
	return nil
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.roomConns[conn.RoomID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	conn.shut()

	if len(connections) == 0 {
		delete(cm.roomConns, conn.RoomID)
		if unsub := cm.subscriptions[conn.RoomID]; unsub != nil {
			unsub()
		}
		delete(cm.subscriptions, conn.RoomID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("room_id", conn.RoomID).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for roomID, connections := range cm.roomConns {
		for conn := range connections {
			conn.shut()
			conn.Conn.Close()
		}
		if unsub := cm.subscriptions[roomID]; unsub != nil {
			unsub()
		}
	}
	cm.roomConns = make(map[string]map[*Connection]bool)
	cm.subscriptions = make(map[string]func())
}

// forwardEvent is the bus handler: it wraps the envelope in a server
// message and queues it for the room's pool.
func (cm *ConnectionManager) forwardEvent(event eventbus.Event) {
	data, err := marshalMessage(MessageEvent, event)
	if err != nil {
		log.Error().Err(err).Str("event_type", event.Type).Msg("failed to marshal event for broadcast")
		return
	}

	pickNumber := 0
	if event.Type == events.TypePickMade {
		var payload events.PickMadePayload
		if err := json.Unmarshal(event.Payload, &payload); err == nil {
			pickNumber = payload.PickNumber
		}
	}

	select {
	case cm.broadcastCh <- BroadcastMessage{RoomID: event.RoomID, PickNumber: pickNumber, Data: data}:
	default:
		log.Warn().Str("room_id", event.RoomID).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.roomConns[message.RoomID]
	if !exists {
		cm.mu.RUnlock()
		return
	}
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		if conn.deliver(message) {
			continue
		}
		// Connection is slow/dead, close it
		log.Warn().
			Str("connection_id", conn.ID).
			Str("room_id", conn.RoomID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}
}

// Stats summarizes active connections per room.
func (cm *ConnectionManager) Stats() (total int, rooms map[string]int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	rooms = make(map[string]int, len(cm.roomConns))
	for roomID, connections := range cm.roomConns {
		rooms[roomID] = len(connections)
		total += len(connections)
	}
	return total, rooms
}

// openFeed queues the snapshot frame and releases the live feed behind it.
// floor is the last pick number the snapshot already covers; buffered pick
// events at or below it are discarded, everything newer replays in order
// right after the snapshot.
func (c *Connection) openFeed(floor int, snapshot []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.syncing {
		return
	}
	if floor > c.lastPick {
		c.lastPick = floor
	}
	c.queueLocked(snapshot)
	for _, m := range c.pending {
		if m.PickNumber > 0 {
			if m.PickNumber <= c.lastPick {
				continue
			}
			c.lastPick = m.PickNumber
		}
		c.queueLocked(m.Data)
	}
	c.pending = nil
	c.syncing = false
}

// deliver queues a broadcast frame: buffered while the connection is still
// syncing, suppressed when the client already has the pick. Returns false
// only when the send buffer is full and the connection should be evicted.
func (c *Connection) deliver(m BroadcastMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	if c.syncing {
		c.pending = append(c.pending, m)
		return true
	}
	if m.PickNumber > 0 {
		if m.PickNumber <= c.lastPick {
			return true
		}
		c.lastPick = m.PickNumber
	}
	select {
	case c.Send <- m.Data:
		return true
	default:
		return false
	}
}

// shut closes Send exactly once. Every send takes c.mu first, so none can
// land after the close.
func (c *Connection) shut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// queueLocked best-effort queues a frame. Callers hold c.mu.
func (c *Connection) queueLocked(frame []byte) {
	select {
	case c.Send <- frame:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("send buffer full, dropping message")
	}
}

// sendMessage queues an out-of-band frame for this connection only.
func (c *Connection) sendMessage(kind string, data any) {
	frame, err := marshalMessage(kind, data)
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("failed to marshal message")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.queueLocked(frame)
}

func (c *Connection) sendError(code, detail string) {
	c.sendMessage(MessageError, errorBody{Code: code, Detail: detail})
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump(ctx context.Context) {
	defer func() {
		c.manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			break
		}

		var cmd ClientCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.sendError(CodeMalformed, "commands must be JSON")
		} else {
			c.manager.commands.HandleCommand(ctx, c, cmd)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
