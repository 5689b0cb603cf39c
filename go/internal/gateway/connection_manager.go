package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/tzrooms/go/internal/metrics"
)

var (
	// ErrStopped is returned when work is submitted after the event loop exited.
	ErrStopped = errors.New("connection manager stopped")
	// ErrUnknownConnection is returned when sending to a connection that is not registered.
	ErrUnknownConnection = errors.New("unknown connection")
)

// ConnectionManager owns every WebSocket connection and the group membership
// sets. All state is confined to a single event loop goroutine: connection
// registration, inbound messages, group changes and sends all run as tasks on
// that loop, so none of the maps below are locked.
type ConnectionManager struct {
	connections map[string]*Connection
	// Members of each group in join order
	groups map[string][]string
	// Groups of each connection in join order, self-group first
	memberships map[string][]string

	count   atomic.Int64
	handler Handler

	queue   chan func()
	done    chan struct{}
	stopped atomic.Bool
	ctx     context.Context

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	config  ConnectionConfig
	clock   clockwork.Clock
	metrics metrics.Collector
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
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

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		QueueSize:       1024,
		CheckOrigin: func(r *http.Request) bool {
			// Origins are enforced by the CORS layer in front of the mux
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock, m metrics.Collector) *ConnectionManager {
	defaults := DefaultConnectionConfig()
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = defaults.SendBufferSize
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = defaults.CheckOrigin
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if m == nil {
		m = metrics.NoOpCollector{}
	}

	return &ConnectionManager{
		connections: make(map[string]*Connection),
		groups:      make(map[string][]string),
		memberships: make(map[string][]string),
		queue:       make(chan func(), config.QueueSize),
		done:        make(chan struct{}),
		ctx:         context.Background(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		clock:   clock,
		metrics: m,
	}
}

// SetHandler installs the lifecycle handler. Must be called before Start.
func (cm *ConnectionManager) SetHandler(h Handler) {
	cm.handler = h
}

// Start runs the event loop until ctx is cancelled
func (cm *ConnectionManager) Start(ctx context.Context) {
	cm.ctx = ctx
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.shutdown()
			return
		case task := <-cm.queue:
			task()
		}
	}
}

func (cm *ConnectionManager) shutdown() {
	cm.stopped.Store(true)
	close(cm.done)
	for _, c := range cm.connections {
		c.Conn.Close()
	}
}

// Post enqueues a task for the event loop. It reports false once the loop has
// stopped. Must not be called from the loop itself.
func (cm *ConnectionManager) Post(task func()) bool {
	if cm.stopped.Load() {
		return false
	}
	select {
	case cm.queue <- task:
		return true
	case <-cm.done:
		return false
	}
}

// Do runs fn on the event loop and waits for it to finish.
func (cm *ConnectionManager) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !cm.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-cm.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go runs blocking work on its own goroutine and posts the continuation it
// returns back onto the event loop. Must be called from the loop.
func (cm *ConnectionManager) Go(work func(ctx context.Context) func()) {
	ctx := cm.ctx
	go func() {
		if next := work(ctx); next != nil {
			cm.Post(next)
		}
	}()
}

// Count returns the number of registered connections. Safe from any goroutine.
func (cm *ConnectionManager) Count() int {
	return int(cm.count.Load())
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
	}

	if !cm.Post(func() { cm.registerConnection(connection) }) {
		conn.Close()
		return ErrStopped
	}

	// Start connection handlers
	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection and its self-group. Runs on the loop.
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.connections[conn.ID] = conn
	cm.count.Add(1)
	cm.metrics.SetConnections(len(cm.connections))

	cm.joinGroup(conn.ID, conn.ID)

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")

	if cm.handler != nil {
		cm.handler.OnConnect(conn.ID)
	}
}

// unregisterConnection removes a connection from every group. Runs on the loop.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	if _, exists := cm.connections[conn.ID]; !exists {
		return
	}

	delete(cm.connections, conn.ID)
	close(conn.send)
	cm.count.Add(-1)
	cm.metrics.SetConnections(len(cm.connections))

	groups := append([]string(nil), cm.memberships[conn.ID]...)
	for _, group := range groups {
		cm.leaveGroup(conn.ID, group)
	}
	delete(cm.memberships, conn.ID)

	log.Info().
		Str("connection_id", conn.ID).
		Dur("connected_for", cm.clock.Since(conn.ConnectedAt)).
		Msg("connection unregistered")

	if cm.handler != nil {
		cm.handler.OnDisconnect(conn.ID)
	}
}

// Join adds a connection to a group. Runs on the loop; the GroupJoined
// callback has completed when Join returns.
func (cm *ConnectionManager) Join(connID, group string) {
	if _, exists := cm.connections[connID]; !exists {
		return
	}
	cm.joinGroup(connID, group)
}

// Leave removes a connection from a group. Runs on the loop; GroupLeft and,
// for the last member, GroupDeleted have completed when Leave returns.
func (cm *ConnectionManager) Leave(connID, group string) {
	cm.leaveGroup(connID, group)
}

func (cm *ConnectionManager) joinGroup(connID, group string) {
	for _, id := range cm.groups[group] {
		if id == connID {
			return
		}
	}
	cm.groups[group] = append(cm.groups[group], connID)
	cm.memberships[connID] = append(cm.memberships[connID], group)

	cm.notify(GroupEvent{Kind: GroupJoined, Group: group, ConnID: connID})
}

func (cm *ConnectionManager) leaveGroup(connID, group string) {
	members, exists := cm.groups[group]
	if !exists {
		return
	}
	idx := indexOf(members, connID)
	if idx < 0 {
		return
	}

	cm.groups[group] = append(members[:idx:idx], members[idx+1:]...)
	if groups := cm.memberships[connID]; len(groups) > 0 {
		if j := indexOf(groups, group); j >= 0 {
			cm.memberships[connID] = append(groups[:j:j], groups[j+1:]...)
		}
	}

	cm.notify(GroupEvent{Kind: GroupLeft, Group: group, ConnID: connID})

	// A callback may have re-populated the group
	if len(cm.groups[group]) == 0 {
		delete(cm.groups, group)
		cm.notify(GroupEvent{Kind: GroupDeleted, Group: group})
	}
}

func (cm *ConnectionManager) notify(event GroupEvent) {
	if cm.handler != nil {
		cm.handler.OnGroupEvent(event)
	}
}

// Members returns the group's members in join order. Runs on the loop.
func (cm *ConnectionManager) Members(group string) []string {
	return append([]string(nil), cm.groups[group]...)
}

// GroupsOf returns the groups a connection belongs to, self-group first.
func (cm *ConnectionManager) GroupsOf(connID string) []string {
	return append([]string(nil), cm.memberships[connID]...)
}

// HasGroup reports whether any connection is in the named group.
func (cm *ConnectionManager) HasGroup(group string) bool {
	return len(cm.groups[group]) > 0
}

// SendTo delivers an event to one connection. Runs on the loop.
func (cm *ConnectionManager) SendTo(connID, event string, data interface{}) error {
	conn, exists := cm.connections[connID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, connID)
	}

	payload, err := EncodeMessage(event, data)
	if err != nil {
		return err
	}
	cm.deliver(conn, payload)
	return nil
}

// SendToGroup delivers an event to every member of a group. Runs on the loop.
func (cm *ConnectionManager) SendToGroup(group, event string, data interface{}) {
	members := cm.groups[group]
	if len(members) == 0 {
		return
	}

	// Marshal the event once
	payload, err := EncodeMessage(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal event for broadcast")
		return
	}

	for _, id := range members {
		if conn, exists := cm.connections[id]; exists {
			cm.deliver(conn, payload)
		}
	}

	log.Debug().
		Str("event", event).
		Str("group", group).
		Int("connections", len(members)).
		Msg("event broadcasted")
}

func (cm *ConnectionManager) deliver(conn *Connection, payload []byte) {
	select {
	case conn.send <- payload:
	default:
		// Connection is slow/dead, close it; readPump reports the unregister
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		conn.Conn.Close()
	}
}

// ConnectionStats is a snapshot of the transport state
type ConnectionStats struct {
	TotalConnections int `json:"total_connections"`
	Groups           int `json:"groups"`
}

// Stats must run on the loop; see Do.
func (cm *ConnectionManager) Stats() ConnectionStats {
	return ConnectionStats{
		TotalConnections: len(cm.connections),
		Groups:           len(cm.groups) - len(cm.connections),
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := c.Manager.clock.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.Chan():
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	cm := c.Manager
	defer func() {
		cm.Post(func() { cm.unregisterConnection(c) })
		c.Conn.Close()
	}()

	if cm.config.MaxMessageSize > 0 {
		c.Conn.SetReadLimit(cm.config.MaxMessageSize)
	}
	c.extendReadDeadline()
	c.Conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			log.Debug().
				Str("connection_id", c.ID).
				Int("bytes", len(data)).
				Msg("ignoring malformed client message")
			c.extendReadDeadline()
			continue
		}

		if !cm.Post(func() { cm.dispatch(c.ID, msg) }) {
			break
		}
		c.extendReadDeadline()
	}
}

func (c *Connection) extendReadDeadline() {
	if timeout := c.Manager.config.ReadTimeout; timeout > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(timeout))
	}
}

// dispatch hands an inbound message to the handler. Runs on the loop.
func (cm *ConnectionManager) dispatch(connID string, msg Message) {
	if _, exists := cm.connections[connID]; !exists || cm.handler == nil {
		return
	}
	cm.handler.OnMessage(connID, msg)
}

func indexOf(list []string, value string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}
	return -1
}
