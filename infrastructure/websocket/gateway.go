// Package websocket exposes the chat session over a WebSocket, for browser clients.
package websocket

import (
	"chat-presence/domain/chat"
	"chat-presence/infrastructure/wire"
	"chat-presence/services"
	"chat-presence/sink"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameLength = 64 * 1024
)

type Identifier interface {
	Identify(token string) (chat.UserID, error)
}

// Gateway upgrades authenticated HTTP requests to chat sessions.
type Gateway struct {
	log         *slog.Logger
	chatService services.IChatService
	identifier  Identifier
	bufferSize  int
	upgrader    websocket.Upgrader
}

func NewGateway(log *slog.Logger, chatService services.IChatService, identifier Identifier, bufferSize int) *Gateway {
	return &Gateway{
		log:         log,
		chatService: chatService,
		identifier:  identifier,
		bufferSize:  bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// bearerToken reads the token from the Authorization header, or from the
// "token" query parameter since browsers cannot set headers on WebSocket requests.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "authorization token is missing", http.StatusUnauthorized)
		return
	}
	identity, err := g.identifier.Identify(token)
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", "user_id", identity, "error", err)
		return
	}
	g.serve(r.Context(), identity, ws)
}

func (g *Gateway) serve(parent context.Context, identity chat.UserID, ws *websocket.Conn) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	conn := sink.NewConnectionSink(g.bufferSize)
	g.chatService.Connect(ctx, identity, conn)
	defer func() {
		conn.Close()
		g.chatService.Disconnect(context.WithoutCancel(ctx), identity, conn)
		_ = ws.Close()
	}()

	go g.writeLoop(ctx, cancel, identity, conn, ws)
	g.readLoop(ctx, identity, conn, ws)
}

// readLoop handles inbound frames in order until the peer goes away.
func (g *Gateway) readLoop(ctx context.Context, identity chat.UserID, conn *sink.ConnectionSink, ws *websocket.Conn) {
	ws.SetReadLimit(maxFrameLength)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame wire.ClientEvent
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Warn("websocket read failed", "user_id", identity, "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		g.chatService.Handle(ctx, identity, conn, frame.ToCommand())
	}
}

func (g *Gateway) writeLoop(ctx context.Context, cancel context.CancelFunc, identity chat.UserID,
	conn *sink.ConnectionSink, ws *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		// Unblocks the read loop when the write side fails first.
		_ = ws.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case evt := <-conn.Events:
			frame, ok := wire.FromEvent(evt)
			if !ok {
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(frame); err != nil {
				g.log.Warn("websocket write failed", "user_id", identity, "error", err)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
