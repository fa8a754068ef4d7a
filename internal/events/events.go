package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

// Channel carries every match event between the core and the delivery
// layer. Workers publish here; the websocket hub subscribes and fans out.
const Channel = "match_events"

// Event types on the wire
const (
	TypeMatchFound   = "match_found"
	TypeMatchState   = "match_state"
	TypeMoveAccepted = "move_accepted"
	TypeMatchEnd     = "match_end"
	TypeError        = "error"
)

// MatchFound tells one queued player they were paired.
type MatchFound struct {
	MatchID     string `json:"matchId"`
	Symbol      string `json:"symbol"`
	EntryAmount int64  `json:"entryAmount"`
	Opponent    string `json:"opponent"`
}

// MatchState is the authoritative position snapshot for a match room.
type MatchState struct {
	MatchID     string `json:"matchId"`
	Board       string `json:"board"`
	Turn        string `json:"turn"`
	MoveNo      int    `json:"moveNo"`
	RemainingMs int64  `json:"remainingMs"`
}

// MoveAccepted confirms a validated move to the match room.
type MoveAccepted struct {
	MatchID string `json:"matchId"`
	MoveNo  int    `json:"moveNo"`
	Index   int    `json:"index0to8"`
	Symbol  string `json:"symbol"`
}

// MatchEnd announces a terminal outcome.
type MatchEnd struct {
	MatchID  string `json:"matchId"`
	Outcome  string `json:"outcome"`
	WinnerID string `json:"winnerId,omitempty"`
	Reason   string `json:"reason"`
}

// ErrorEvent reports a rejected operation back to one user.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope wraps a typed payload with its routing target: UserID for
// point-to-point delivery, otherwise the whole match room.
type Envelope struct {
	Type    string          `json:"type"`
	MatchID string          `json:"matchId,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// Emitter is the abstract event surface the core emits into. The transport
// that delivers envelopes to client sockets lives behind it.
type Emitter interface {
	ToUser(ctx context.Context, userID, eventType string, payload interface{})
	ToMatch(ctx context.Context, matchID, eventType string, payload interface{})
}

// Publisher emits envelopes onto the Redis event channel.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) publish(ctx context.Context, env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		log.Printf("[EVENTS] Failed to marshal %s event: %v", env.Type, err)
		return
	}
	if err := p.rdb.Publish(ctx, Channel, b).Err(); err != nil {
		log.Printf("[EVENTS] Failed to publish %s event: %v", env.Type, err)
	}
}

func (p *Publisher) ToUser(ctx context.Context, userID, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[EVENTS] Failed to marshal %s payload: %v", eventType, err)
		return
	}
	p.publish(ctx, Envelope{Type: eventType, UserID: userID, Data: data})
}

func (p *Publisher) ToMatch(ctx context.Context, matchID, eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[EVENTS] Failed to marshal %s payload: %v", eventType, err)
		return
	}
	p.publish(ctx, Envelope{Type: eventType, MatchID: matchID, Data: data})
}
