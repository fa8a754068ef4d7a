package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dyn-warrior/TicX/internal/board"
	"github.com/dyn-warrior/TicX/internal/ledger"
	"github.com/dyn-warrior/TicX/internal/lobby"
	"github.com/dyn-warrior/TicX/internal/match"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 60 * time.Second

	maxMessageSize = 1024
)

// inboundMessage is the tagged client request envelope. Payloads that do
// not match their schema are rejected, never coerced.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinQueuePayload struct {
	BaseEntry int64 `json:"baseEntry"`
	Leverage  int   `json:"leverage"`
}

type movePayload struct {
	MatchID string `json:"matchId"`
	Index   *int   `json:"index0to8"`
}

type resignPayload struct {
	MatchID string `json:"matchId"`
}

// writePump writes messages from the send channel to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed - connection replaced or cleaned up.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for user %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound messages and dispatches them to the core.
func (g *Gateway) readPump(c *Client) {
	defer func() {
		g.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error for user %s: %v", c.userID, err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			g.sendError(c, "BAD_REQUEST", "malformed message")
			continue
		}
		g.dispatch(context.Background(), c, msg)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, msg inboundMessage) {
	switch msg.Type {
	case "join_queue":
		var p joinQueuePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.BaseEntry <= 0 {
			g.sendError(c, "BAD_REQUEST", "invalid join_queue payload")
			return
		}
		entryAmount, err := g.lobby.JoinQueue(ctx, c.userID, p.BaseEntry, p.Leverage)
		if err != nil {
			g.sendError(c, errorCode(err), err.Error())
			return
		}
		g.hub.SendToUser(c.userID, map[string]interface{}{
			"type": "queue_joined",
			"data": map[string]interface{}{"entryAmount": entryAmount, "leverage": p.Leverage},
		})

	case "leave_queue":
		released, err := g.lobby.LeaveQueue(ctx, c.userID)
		if err != nil {
			g.sendError(c, errorCode(err), err.Error())
			return
		}
		g.hub.SendToUser(c.userID, map[string]interface{}{
			"type": "queue_left",
			"data": map[string]interface{}{"released": released},
		})

	case "submit_move":
		var p movePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.MatchID == "" || p.Index == nil {
			g.sendError(c, "BAD_REQUEST", "invalid submit_move payload")
			return
		}
		if err := g.lobby.AllowMove(ctx, c.userID); err != nil {
			g.sendError(c, errorCode(err), err.Error())
			return
		}
		if _, err := g.matches.SubmitMove(ctx, p.MatchID, c.userID, *p.Index); err != nil {
			g.sendError(c, errorCode(err), err.Error())
			return
		}

	case "resign":
		var p resignPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.MatchID == "" {
			g.sendError(c, "BAD_REQUEST", "invalid resign payload")
			return
		}
		if err := g.matches.Resign(ctx, p.MatchID, c.userID); err != nil {
			g.sendError(c, errorCode(err), err.Error())
			return
		}

	default:
		g.sendError(c, "BAD_REQUEST", "unknown message type")
	}
}

func (g *Gateway) sendError(c *Client, code, message string) {
	g.hub.SendToUser(c.userID, map[string]interface{}{
		"type": "error",
		"data": map[string]string{"code": code, "message": message},
	})
}

// errorCode maps core failures onto stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, board.ErrNotYourTurn):
		return "NOT_YOUR_TURN"
	case errors.Is(err, board.ErrInvalidPosition):
		return "INVALID_POSITION"
	case errors.Is(err, board.ErrCellOccupied):
		return "CELL_OCCUPIED"
	case errors.Is(err, board.ErrGameOver):
		return "GAME_OVER"
	case errors.Is(err, match.ErrMatchNotFound):
		return "MATCH_NOT_FOUND"
	case errors.Is(err, match.ErrMatchNotActive):
		return "MATCH_NOT_ACTIVE"
	case errors.Is(err, match.ErrUnknownParticipant):
		return "UNKNOWN_PARTICIPANT"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ledger.ErrUserBanned):
		return "USER_BANNED"
	case errors.Is(err, ledger.ErrAccountFrozen):
		return "ACCOUNT_FROZEN"
	case errors.Is(err, ledger.ErrAlreadySettled):
		return "ALREADY_SETTLED"
	case errors.Is(err, ledger.ErrInsufficientLocked):
		return "HOLD_ALREADY_RELEASED"
	case errors.Is(err, lobby.ErrStakeOutOfRange):
		return "STAKE_OUT_OF_RANGE"
	case errors.Is(err, lobby.ErrLeverageOutOfRange):
		return "LEVERAGE_OUT_OF_RANGE"
	case errors.Is(err, lobby.ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, lobby.ErrAlreadyQueued):
		return "ALREADY_QUEUED"
	case errors.Is(err, lobby.ErrAlreadyInMatch):
		return "ALREADY_IN_MATCH"
	case errors.Is(err, lobby.ErrNotQueued):
		return "NOT_QUEUED"
	default:
		return "INTERNAL"
	}
}
