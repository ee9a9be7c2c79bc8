// Package ws serves the instance server protocol over websockets. Each
// text message carries one JSON envelope; there is no length prefix.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nstehr/vimy/vimy-instance/agent"
	"github.com/nstehr/vimy/vimy-instance/instance"
	"github.com/nstehr/vimy/vimy-instance/ipc"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	outQueue     = 64
)

type Server struct {
	inst    *instance.Instance
	saveDir string

	upgrader websocket.Upgrader
}

func NewServer(inst *instance.Instance, saveDir string) *Server {
	return &Server{
		inst:    inst,
		saveDir: saveDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// conn queues outgoing envelopes for the writer goroutine. Replies and
// pushed events share the queue so frames never interleave.
type conn struct {
	ctx context.Context
	out chan []byte
}

// Send implements agent.Sender. A full queue drops the message.
func (c *conn) Send(msgType string, data any) error {
	env, err := ipc.NewEnvelope(msgType, data)
	if err != nil {
		return err
	}
	return c.enqueue(env)
}

func (c *conn) enqueue(env ipc.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	case c.out <- b:
		return nil
	default:
		return errors.New("websocket send queue full")
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := &conn{ctx: ctx, out: make(chan []byte, outQueue)}
		a := agent.New(s.inst, c)
		a.SaveDir = s.saveDir
		a.Attach()
		defer a.Detach()
		handlers := a.Handlers()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		slog.Info("websocket client connected", "remote", r.RemoteAddr)
		for {
			_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := ws.ReadMessage()
			if err != nil {
				slog.Info("websocket read ended", "remote", r.RemoteAddr, "error", err)
				return
			}
			var env ipc.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				slog.Warn("bad websocket envelope", "error", err)
				continue
			}

			resp, err := handlers.Dispatch(env)
			if err != nil {
				slog.Error("handler error", "type", env.Type, "error", err)
				if resp, err = ipc.Error(err); err != nil {
					continue
				}
			}
			if resp == nil {
				continue
			}
			if err := c.enqueue(*resp); err != nil {
				slog.Error("failed to queue response", "type", resp.Type, "error", err)
				return
			}
		}
	}
}
