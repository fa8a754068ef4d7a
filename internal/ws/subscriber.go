package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/dyn-warrior/TicX/internal/events"
)

// StartEventSubscriber consumes the core's published match events and
// routes each envelope to its user or match room.
func (g *Gateway) StartEventSubscriber(ctx context.Context, rdb *redis.Client) {
	pubsub := rdb.Subscribe(ctx, events.Channel)
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		log.Printf("[WS] Match event subscriber started")

		for {
			select {
			case <-ctx.Done():
				log.Printf("[WS] Match event subscriber stopped")
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env events.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					log.Printf("[WS] Invalid event payload: %v", err)
					continue
				}
				g.route(env)
			}
		}
	}()
}

func (g *Gateway) route(env events.Envelope) {
	out := map[string]interface{}{
		"type": env.Type,
		"data": env.Data,
	}

	switch {
	case env.UserID != "":
		g.hub.SendToUser(env.UserID, out)
		// A match_found event also subscribes the user to the new room.
		if env.Type == events.TypeMatchFound {
			var mf events.MatchFound
			if err := json.Unmarshal(env.Data, &mf); err == nil && mf.MatchID != "" {
				g.hub.JoinRoom(mf.MatchID, env.UserID)
			}
		}

	case env.MatchID != "":
		g.hub.BroadcastToMatch(env.MatchID, out)
		if env.Type == events.TypeMatchEnd {
			g.hub.CloseRoom(env.MatchID)
		}

	default:
		log.Printf("[WS] Dropping unroutable %s event", env.Type)
	}
}
