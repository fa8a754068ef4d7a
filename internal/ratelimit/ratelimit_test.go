package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiterKeyScopesByActionAndUser(t *testing.T) {
	assert.Equal(t, "rate_limit:join_queue:u1", limiterKey("join_queue", "u1"))
	assert.NotEqual(t, limiterKey("join_queue", "u1"), limiterKey("submit_move", "u1"))
	assert.NotEqual(t, limiterKey("join_queue", "u1"), limiterKey("join_queue", "u2"))
}
