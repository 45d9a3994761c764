// Package chat is the websocket adapter: one multiplexed connection
// per client, JSON envelopes dispatched to the engines, acks back to
// the invoking connection only.
package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"huddle/internal/app"
	"huddle/internal/auth"
	"huddle/internal/config"
	"huddle/internal/store"
)

var ErrBackpressure = errors.New("backpressure")

type ChatWSController struct {
	Cfg        *config.Config
	Auth       *auth.Service
	Store      store.Store
	Registry   *app.Registry
	Moderation *app.Moderation
	Messaging  *app.Messaging
	Presence   *app.Presence
	Reaper     *app.Reaper
}

// WsChatConn is one live socket plus its bounded outbound queue. It
// implements app.Conn, so the registry can fan out to it.
type WsChatConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *WsChatConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsChatConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleChat authenticates the bearer token, upgrades, registers the
// connection and starts the pumps. The opportunistic reaper sweep
// happens here, before the session snapshot goes out.
func (ctl *ChatWSController) HandleChat(ctx context.Context, c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}
	principal, err := ctl.Auth.Verify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "chat").Str("nickname", principal.Nickname).Msg("new WS connection")

	conn := &WsChatConn{
		conn: ws,
		send: make(chan []byte, ctl.Cfg.SendBuffer),
	}
	if ctl.Cfg.ReadLimit > 0 {
		ws.SetReadLimit(ctl.Cfg.ReadLimit)
	}

	ctl.Registry.Add(principal.ID, conn)

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go func() {
		defer cancel()
		ctl.Reaper.Sweep(connCtx)
		ctl.sendSession(connCtx, principal, conn)
		ctl.readPump(connCtx, principal, conn)
	}()
}

// sendSession pushes the profile and channel snapshots the client
// bootstraps its UI from.
func (ctl *ChatWSController) sendSession(ctx context.Context, p *auth.Principal, conn *WsChatConn) {
	user, err := ctl.Store.UserByID(ctx, p.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("session profile")
		return
	}
	channels, err := ctl.Moderation.List(ctx, p)
	if err != nil {
		log.Error().Err(err).Str("module", "chat").Msg("session channels")
		return
	}
	ctl.sendJSON(conn, pushFrame{Type: app.EventSession, Data: sessionPayload{
		Profile: profilePayload{
			FirstName: user.FirstName,
			LastName:  user.LastName,
			NickName:  user.Nickname,
			Email:     user.Email,
		},
		Channels: channels,
	}})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
