package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectMovesRoomToNewSocket(t *testing.T) {
	h := NewHub()

	old := &Client{userID: "u1", send: make(chan []byte, 1)}
	h.register(old)
	h.JoinRoom("m1", "u1")

	// Reconnect: same user, fresh socket.
	replacement := &Client{userID: "u1", send: make(chan []byte, 1)}
	h.register(replacement)

	assert.NotPanics(t, func() {
		h.BroadcastToMatch("m1", map[string]string{"type": "match_state"})
	})

	select {
	case msg := <-replacement.send:
		assert.Contains(t, string(msg), "match_state")
	default:
		t.Fatal("replacement socket received nothing")
	}

	// The replaced socket's channel is closed and drained, never written.
	_, open := <-old.send
	assert.False(t, open)
}

func TestUnregisterOldSocketKeepsReplacement(t *testing.T) {
	h := NewHub()

	old := &Client{userID: "u1", send: make(chan []byte, 1)}
	h.register(old)
	h.JoinRoom("m1", "u1")

	replacement := &Client{userID: "u1", send: make(chan []byte, 2)}
	h.register(replacement)

	// The old readPump exits after the replace and unregisters its client;
	// the replacement must survive that cleanup.
	h.unregister(old)

	h.SendToUser("u1", map[string]string{"type": "queue_joined"})
	require.Len(t, replacement.send, 1)

	h.BroadcastToMatch("m1", map[string]string{"type": "match_state"})
	assert.Len(t, replacement.send, 2)
}
