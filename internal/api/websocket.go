package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/frontdesk-io/frontdesk-ce/internal/events"
	"github.com/frontdesk-io/frontdesk-ce/internal/middleware"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Kiosks and displays connect from their own origins.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// clientCommand is what a connected session may send: room membership
// changes.
type clientCommand struct {
	Action string `json:"action"` // join-room | leave-room
	Room   string `json:"room"`
}

// handleWebSocket handles GET /ws: upgrades, attaches a hub subscription and
// pumps room events out until the peer goes away.
func (r *Router) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	sessionID := uuid.New().String()
	sub := r.hub.Subscribe(sessionID, r.wsUserID(c))
	defer r.hub.Unsubscribe(sub)

	done := make(chan struct{})
	go r.writePump(conn, sub, done)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		switch cmd.Action {
		case "join-room":
			if cmd.Room != "" {
				r.hub.Join(sub, cmd.Room)
			}
		case "leave-room":
			if cmd.Room != "" {
				r.hub.Leave(sub, cmd.Room)
			}
		}
	}
	close(done)
	_ = conn.Close()
}

// writePump drains the subscription into the socket and keeps the
// connection alive with pings.
func (r *Router) writePump(conn *websocket.Conn, sub *events.Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// wsUserID resolves the optional token query parameter so admin sessions are
// registered for force-logout. Anonymous connections are fine.
func (r *Router) wsUserID(c *gin.Context) string {
	raw := c.Query("token")
	if raw == "" {
		return ""
	}
	claims := &middleware.Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(r.cfg.Auth.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	return claims.Subject
}
