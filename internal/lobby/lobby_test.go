package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyn-warrior/TicX/internal/config"
)

func boundsConfig() *config.Config {
	return &config.Config{
		BaseEntryMin: 10,
		BaseEntryMax: 1000,
		LeverageMin:  1,
		LeverageMax:  5,
	}
}

func TestValidateStakeBounds(t *testing.T) {
	lb := &Lobby{cfg: boundsConfig()}

	assert.NoError(t, lb.ValidateStake(10, 1))
	assert.NoError(t, lb.ValidateStake(1000, 5))

	assert.ErrorIs(t, lb.ValidateStake(9, 1), ErrStakeOutOfRange)
	assert.ErrorIs(t, lb.ValidateStake(1001, 1), ErrStakeOutOfRange)
	assert.ErrorIs(t, lb.ValidateStake(100, 0), ErrLeverageOutOfRange)
	assert.ErrorIs(t, lb.ValidateStake(100, 6), ErrLeverageOutOfRange)
}
