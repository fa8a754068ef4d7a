package ws

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dyn-warrior/TicX/internal/auth"
	"github.com/dyn-warrior/TicX/internal/config"
	"github.com/dyn-warrior/TicX/internal/events"
	"github.com/dyn-warrior/TicX/internal/lobby"
	"github.com/dyn-warrior/TicX/internal/match"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Gateway owns the websocket surface: it authenticates connections,
// dispatches inbound events into the core, and fans published match
// events out to connected clients.
type Gateway struct {
	hub     *Hub
	cfg     *config.Config
	lobby   *lobby.Lobby
	matches *match.Manager
}

func NewGateway(cfg *config.Config, lb *lobby.Lobby, matches *match.Manager) *Gateway {
	g := &Gateway{
		hub:     NewHub(),
		cfg:     cfg,
		lobby:   lb,
		matches: matches,
	}
	upgrader.CheckOrigin = func(r *http.Request) bool {
		if cfg.Environment != "production" {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == cfg.FrontendURL || strings.HasPrefix(origin, cfg.FrontendURL+"/")
	}
	return g
}

// Handle upgrades an authenticated HTTP request to a websocket session.
// The token rides in the query string because browsers cannot set headers
// on websocket handshakes.
func (g *Gateway) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		userID, err := auth.ParseToken(token, g.cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[WS] Upgrade failed for user %s: %v", userID, err)
			return
		}

		client := &Client{
			conn:   conn,
			userID: userID,
			send:   make(chan []byte, 16),
		}
		g.hub.register(client)
		log.Printf("[WS] User %s connected", userID)

		// A reconnecting player rejoins their live match room and gets a
		// fresh authoritative snapshot.
		if s, ok := g.matches.SessionForUser(userID); ok {
			g.hub.JoinRoom(s.ID, userID)
			if snap, err := g.matches.Snapshot(s.ID); err == nil {
				g.hub.SendToUser(userID, map[string]interface{}{
					"type": events.TypeMatchState,
					"data": events.MatchState{
						MatchID:     snap.ID,
						Board:       snap.Board,
						Turn:        snap.Turn,
						MoveNo:      snap.MoveCount,
						RemainingMs: snap.RemainingMs,
					},
				})
			}
		}

		go client.writePump()
		go g.readPump(client)
	}
}
