package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/HarshPratapSingh1/ChatVerse/pkg/liveness"
)

// callback executed when a message is received.
type MessageHandler func(ctx context.Context, connID uuid.UUID, msg []byte)

type OnCloseHandler func(connID uuid.UUID, err error)

// ErrConnectionClosed is returned by Send once the connection has begun
// closing. Callers treat it as a signal to evict the connection, not as a
// delivery guarantee failure.
var ErrConnectionClosed = errors.New("connection closed")

type ConnectionConfig struct {
	SendQueueSize int
	ProbeInterval time.Duration
	PongTimeout   time.Duration
}

// Connection represents a single, thread-safe WebSocket connection with
// its own heartbeat cycle. A connection that stops answering pings closes
// itself, which feeds the registry's removal path via the close handler.
type Connection struct {
	id      uuid.UUID
	conn    *websocket.Conn
	config  ConnectionConfig
	send    chan []byte
	monitor *liveness.Monitor

	onMessage MessageHandler
	onClose   OnCloseHandler

	done      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	closeOnce sync.Once
	cancel    context.CancelFunc

	logger *slog.Logger
}

func NewConnection(parentCtx context.Context, wg *sync.WaitGroup, conn *websocket.Conn, config ConnectionConfig, logger *slog.Logger) *Connection {
	id := uuid.New()
	connCtx, cancel := context.WithCancel(parentCtx)
	connLogger := logger.With(slog.String("connID", id.String()))

	if config.SendQueueSize <= 0 {
		config.SendQueueSize = 256
	}

	// Balanced by Close, which may run even if Run never does (e.g. a
	// failed registration).
	wg.Add(1)

	c := &Connection{
		id:     id,
		conn:   conn,
		logger: connLogger,
		config: config,
		send:   make(chan []byte, config.SendQueueSize),
		done:   make(chan struct{}),
		ctx:    connCtx,
		cancel: cancel,
		wg:     wg,
	}
	c.monitor = liveness.NewMonitor(
		c.probe,
		config.ProbeInterval,
		config.PongTimeout,
		func(reason error) { c.Close(reason) },
		connLogger,
	)
	return c
}

func (c *Connection) Run() {
	go c.readPump()
	go c.writePump()
	go c.monitor.Run(c.ctx)

	c.logger.Info("connection established")
}

// probe sends a websocket ping and waits for the pong. The concurrent
// readPump is what actually surfaces the pong frame to the library.
func (c *Connection) probe(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// readPump pumps messages from the WebSocket connection to the message handler.
// A connection may be idle indefinitely: the read blocks under the
// connection context with no deadline of its own, and only the heartbeat
// cycle evicts peers that stop answering.
func (c *Connection) readPump() {
	var readErr error
	defer func() {
		c.Close(readErr)
	}()

	for {
		typ, r, err := c.conn.Reader(c.ctx)
		if err != nil {
			readErr = err
			return
		}
		// Ensure we are only handling text or binary messages.
		if typ != websocket.MessageText && typ != websocket.MessageBinary {
			continue
		}
		message, err := io.ReadAll(r)
		if err != nil {
			readErr = err
			return
		}
		if c.onMessage != nil {
			// Inbound messages from one connection are handled in order,
			// on this goroutine.
			c.onMessage(c.ctx, c.id, message)
		}
	}
}

// writePump pumps messages from the send channel to the WebSocket connection.
func (c *Connection) writePump() {
	var writeErr error

	defer func() {
		c.Close(writeErr)
	}()

	for {
		select {
		case message := <-c.send:
			if err := c.conn.Write(c.ctx, websocket.MessageText, message); err != nil {
				writeErr = err
				return
			}
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "request cancelled")
			return
		}
	}
}

// Send enqueues a message to the client. It is safe for concurrent use
// and reports ErrConnectionClosed once the connection is shutting down,
// so broadcast loops can evict dead targets instead of blocking on them.
// The send channel is never closed; cancellation is the only close
// signal, so a Send racing Close can never panic.
func (c *Connection) Send(message []byte) error {
	if c.ctx.Err() != nil {
		return ErrConnectionClosed
	}
	select {
	case c.send <- message:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close gracefully shuts down the connection and its resources. Safe to
// call from the read pump, the write pump, the liveness monitor, and the
// owner at the same time; only the first call takes effect.
func (c *Connection) Close(err error) {
	c.closeOnce.Do(func() {
		status := websocket.CloseStatus(err)
		c.logger.Info("Transport connection closing", slog.Any("reason", err), slog.String("status", status.String()))

		c.monitor.Stop()
		c.cancel() // Signal goroutines to stop.
		if c.conn != nil {
			c.conn.Close(websocket.StatusNormalClosure, "")
		}
		if c.onClose != nil {
			c.onClose(c.id, err)
		}
		c.wg.Done()
		close(c.done)
	})
}

// Done returns a channel that is closed when the connection is fully terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// ID returns the unique identifier of the connection.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// LivenessState exposes the heartbeat state for diagnostics and tests.
func (c *Connection) LivenessState() liveness.State {
	return c.monitor.State()
}

// HeartbeatEvicted reports whether the connection was terminated by its
// own liveness monitor rather than by the peer or the owner.
func (c *Connection) HeartbeatEvicted() bool {
	return c.monitor.Evicted()
}

func (c *Connection) SetOnMessageHandler(handler MessageHandler) {
	c.onMessage = handler
}

func (c *Connection) SetOnCloseHandler(handler OnCloseHandler) {
	c.onClose = handler
}
