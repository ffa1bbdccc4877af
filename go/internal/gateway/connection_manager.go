package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tableside/go/internal/events"
)

// ErrManagerStopped is returned by Broadcast and SendTo once Start has returned
var ErrManagerStopped = errors.New("connection manager stopped")

// SnapshotSource produces the state dump a newly connected observer starts from.
// deliver must be called while no later mutation can be broadcast.
type SnapshotSource interface {
	Snapshot(ctx context.Context, deliver func(*events.Envelope) error) error
}

// CommandDispatcher answers commands received from a connection
type CommandDispatcher interface {
	Handle(ctx context.Context, cmd events.Command) events.AckPayload
}

// ConnectionManager is the observer registry. Every outbound message, fan-out
// or targeted, passes through one channel drained by one goroutine, so all
// observers see events in the order they were handed to Broadcast.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock

	snapshots SnapshotSource
	commands  CommandDispatcher

	broadcastCh chan outboundMessage
	done        chan struct{}
	startOnce   sync.Once

	delivered atomic.Int64
	dropped   atomic.Int64
}

// Connection is one websocket observer
type Connection struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan []byte
	Manager     *ConnectionManager
	ConnectedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// ConnectionConfig holds configuration for websocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	QueueSize       int
	CheckOrigin     func(r *http.Request) bool
}

type outboundMessage struct {
	target    string // empty means every connection
	eventType events.Type
	data      []byte
}

// ConnectionStats is a point-in-time view of the registry
type ConnectionStats struct {
	TotalConnections int      `json:"total_connections"`
	ConnectionIDs    []string `json:"connection_ids"`
	Delivered        int64    `json:"messages_delivered"`
	Dropped          int64    `json:"connections_dropped"`
}

// DefaultConnectionConfig returns default websocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		QueueSize:       1024,
		CheckOrigin: func(r *http.Request) bool {
			// accept any origin; browsers on the LAN connect directly
			return true
		},
	}
}

// NewConnectionManager creates a new observer registry. A nil clock means wall-clock time.
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = DefaultConnectionConfig().SendBufferSize
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConnectionConfig().QueueSize
	}
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		broadcastCh: make(chan outboundMessage, config.QueueSize),
		done:        make(chan struct{}),
	}
}

// SetSnapshotSource sets where new connections get their initial state
func (cm *ConnectionManager) SetSnapshotSource(src SnapshotSource) {
	cm.snapshots = src
}

// SetCommandDispatcher sets the handler for client commands
func (cm *ConnectionManager) SetCommandDispatcher(d CommandDispatcher) {
	cm.commands = d
}

// Start drains the broadcast queue until ctx is done, then closes every connection
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	defer cm.startOnce.Do(func() {
		close(cm.done)
		cm.closeAll()
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// Broadcast queues env for every registered connection. It blocks until the
// message is queued so no event is silently skipped.
func (cm *ConnectionManager) Broadcast(ctx context.Context, env *events.Envelope) error {
	return cm.enqueue(ctx, "", env)
}

// SendTo queues env for one connection only
func (cm *ConnectionManager) SendTo(ctx context.Context, connectionID string, env *events.Envelope) error {
	if connectionID == "" {
		return fmt.Errorf("connection id is required")
	}
	return cm.enqueue(ctx, connectionID, env)
}

func (cm *ConnectionManager) enqueue(ctx context.Context, target string, env *events.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", env.Type, err)
	}

	select {
	case <-cm.done:
		return ErrManagerStopped
	default:
	}

	message := outboundMessage{target: target, eventType: env.Type, data: data}

	// a queue with room always accepts, whatever the state of ctx
	select {
	case cm.broadcastCh <- message:
		return nil
	default:
	}

	select {
	case cm.broadcastCh <- message:
		return nil
	case <-cm.done:
		return ErrManagerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpgradeConnection upgrades an HTTP request to a websocket observer and
// queues its snapshot
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Registered before the snapshot is taken: anything committed after the
	// snapshot is queued behind it.
	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("websocket connection established")

	if cm.snapshots != nil {
		err := cm.snapshots.Snapshot(r.Context(), func(env *events.Envelope) error {
			return cm.SendTo(r.Context(), connection.ID, env)
		})
		if err != nil {
			log.Error().Err(err).Str("connection_id", connection.ID).Msg("failed to send snapshot")
			cm.unregisterConnection(connection)
			return connection, fmt.Errorf("failed to send snapshot: %w", err)
		}
	}

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and closes its send queue. Safe
// to call more than once.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn.ID]; !exists {
		return
	}
	delete(cm.connections, conn.ID)
	close(conn.Send)
	conn.cancel()

	log.Info().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		cm.unregisterConnection(c)
	}
}

// handleBroadcast hands one message to its targets. Sends happen under the
// read lock so a concurrent unregister cannot close a queue mid-send.
func (cm *ConnectionManager) handleBroadcast(message outboundMessage) {
	var slow []*Connection
	sent := 0

	cm.mu.RLock()
	for id, conn := range cm.connections {
		if message.target != "" && id != message.target {
			continue
		}
		select {
		case conn.Send <- message.data:
			sent++
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		// It re-syncs from a fresh snapshot when it reconnects.
		log.Warn().
			Str("connection_id", conn.ID).
			Str("event_type", string(message.eventType)).
			Msg("connection send buffer full, closing connection")
		cm.dropped.Add(1)
		cm.unregisterConnection(conn)
	}

	cm.delivered.Add(int64(sent))
	log.Debug().
		Str("event_type", string(message.eventType)).
		Str("target", message.target).
		Int("connections", sent).
		Msg("event broadcasted")
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	ids := make([]string, 0, len(cm.connections))
	for id := range cm.connections {
		ids = append(ids, id)
	}

	return ConnectionStats{
		TotalConnections: len(cm.connections),
		ConnectionIDs:    ids,
		Delivered:        cm.delivered.Load(),
		Dropped:          cm.dropped.Load(),
	}
}

// writePump is the only writer on the websocket
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to websocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client commands until the socket closes. Commands from one
// connection are handled in the order they arrive.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected websocket close error")
			}
			return
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage runs one command and queues its ack for this connection only
func (c *Connection) handleClientMessage(message []byte) {
	var cmd events.Command
	var ack events.AckPayload

	if err := json.Unmarshal(message, &cmd); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("malformed client message")
		ack = events.AckPayload{Success: false, Message: "Malformed message", Code: "validation_failed"}
	} else if c.Manager.commands == nil {
		ack = events.AckPayload{ReplyTo: cmd.ID, Command: cmd.Type, Success: false, Message: "Commands are not accepted", Code: "validation_failed"}
	} else {
		log.Debug().
			Str("connection_id", c.ID).
			Str("command", string(cmd.Type)).
			Msg("received client command")
		ack = c.Manager.commands.Handle(c.ctx, cmd)
	}

	env, err := events.NewEnvelope(events.TypeAck, c.Manager.clock.Now(), ack)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to build ack")
		return
	}
	if err := c.Manager.SendTo(c.ctx, c.ID, env); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("failed to queue ack")
	}
}
