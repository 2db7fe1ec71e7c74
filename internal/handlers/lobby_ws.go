// internal/handlers/lobby_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/fraud/internal/game"
	"github.com/jason-s-yu/fraud/internal/lobby"
	"github.com/jason-s-yu/fraud/internal/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "fraud"

const (
	pingInterval = 30 * time.Second
	pingTimeout  = 15 * time.Second
	writeTimeout = 5 * time.Second

	// readLimit leaves room for a profile image inside a LOBBY_JOIN frame.
	readLimit = lobby.MaxProfileImageLength + 64*1024
)

// WSOptions tunes the lobby socket.
type WSOptions struct {
	OriginPatterns []string
	MessageRate    rate.Limit
	MessageBurst   int
	OutBuffer      int
}

func (o WSOptions) withDefaults() WSOptions {
	if len(o.OriginPatterns) == 0 {
		o.OriginPatterns = []string{"*"}
	}
	if o.MessageRate <= 0 {
		o.MessageRate = 10
	}
	if o.MessageBurst <= 0 {
		o.MessageBurst = 20
	}
	if o.OutBuffer <= 0 {
		o.OutBuffer = lobby.DefaultOutBuffer
	}
	return o
}

// LobbyWSHandler upgrades a request to the lobby socket. One socket carries a
// client from the lobby list through any number of lobbies and rounds.
func LobbyWSHandler(logger *logrus.Logger, manager *lobby.Manager, opts WSOptions) http.HandlerFunc {
	opts = opts.withDefaults()
	dispatcher := NewDispatcher(manager, logger)

	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the fraud subprotocol")
			return
		}
		c.SetReadLimit(readLimit)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		conn := lobby.NewConnection(remoteAddr, opts.OutBuffer, cancel, logger)
		manager.Connect(conn)
		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)

		go writePump(ctx, c, conn, logger)

		limiter := rate.NewLimiter(opts.MessageRate, opts.MessageBurst)
		readErr := readPump(ctx, c, conn, dispatcher, limiter, logger)

		manager.Disconnect(conn)
		conn.Close()
		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, readErr)
	}
}

// readPump decodes client frames and hands them to the dispatcher one at a
// time. It returns the read error that ended the loop, or nil on a normal close.
func readPump(ctx context.Context, c *websocket.Conn, conn *lobby.Connection, d *Dispatcher, limiter *rate.Limiter, logger *logrus.Logger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			logger.Warnf("conn %s: ignoring non-text message type %d", conn.ID, typ)
			continue
		}

		in, err := Decode(msg)
		if err != nil {
			Reply(conn, in.RequestID, nil, badRequest("Invalid message."))
			continue
		}

		if !limiter.Allow() {
			e := game.NewError(game.KindCapacity, game.CodeRateLimited, "Slow down.")
			e.Quiet = true
			Reply(conn, in.RequestID, nil, e)
			continue
		}

		d.Handle(ctx, conn, in)
	}
}

// writePump drains the connection's queue onto the socket and keeps it alive
// with pings. It closes the socket when the queue is closed.
func writePump(ctx context.Context, c *websocket.Conn, conn *lobby.Connection, logger *logrus.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-conn.OutChan:
			if !ok {
				_ = c.Close(websocket.StatusNormalClosure, "connection closed")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warnf("conn %s: failed to marshal %s: %v", conn.ID, ev.Type, err)
				continue
			}

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("conn %s: websocket write failed: %v", conn.ID, err)
				conn.Close()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("conn %s: ping failed, assuming disconnect: %v", conn.ID, err)
				conn.Close()
				return
			}
		}
	}
}
