package ipc

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/nstehr/vimy/vimy-instance/model"
)

// Handler processes a received envelope. Return nil to send no reply.
type Handler func(env Envelope) (*Envelope, error)

// Handlers routes envelopes by type. Transports share one table.
type Handlers map[string]Handler

// Dispatch runs the handler registered for env.Type. Unknown types yield an
// error ack so the caller is not left waiting.
func (h Handlers) Dispatch(env Envelope) (*Envelope, error) {
	handler, ok := h[env.Type]
	if !ok {
		slog.Warn("no handler for message type", "type", env.Type)
		return Error(fmt.Errorf("unknown message type %q", env.Type))
	}
	return handler(env)
}

// Connection is one instance server session on the unix socket. Replies
// and pushed events share the socket, so writes are serialized.
type Connection struct {
	conn     net.Conn
	handlers Handlers
	wmu      sync.Mutex
	Player   model.PlayerID
}

func NewConnection(conn net.Conn, handlers Handlers) *Connection {
	if handlers == nil {
		handlers = make(Handlers)
	}
	return &Connection{
		conn:     conn,
		handlers: handlers,
	}
}

func (c *Connection) RegisterHandler(msgType string, handler Handler) {
	c.handlers[msgType] = handler
}

// Send pushes an unsolicited message. It is safe to call from any goroutine.
func (c *Connection) Send(msgType string, data any) error {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return err
	}
	return c.write(env)
}

func (c *Connection) write(env Envelope) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return WriteEnvelope(c.conn, env)
}

func (c *Connection) Close() error { return c.conn.Close() }

// ReadLoop blocks until the connection closes or errors. It owns the conn lifetime
// so callers don't need to track cleanup.
func (c *Connection) ReadLoop() {
	defer c.conn.Close()

	for {
		env, err := ReadEnvelope(c.conn)
		if err != nil {
			slog.Info("connection read ended", "player", c.Player, "error", err)
			return
		}

		resp, err := c.handlers.Dispatch(env)
		if err != nil {
			slog.Error("handler error", "type", env.Type, "error", err)
			if resp, err = Error(err); err != nil {
				continue
			}
		}

		if resp != nil {
			if err := c.write(*resp); err != nil {
				slog.Error("failed to send response", "type", resp.Type, "error", err)
				return
			}
			slog.Debug("sent response", "type", resp.Type, "player", c.Player)
		}
	}
}
