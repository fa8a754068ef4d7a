package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyn-warrior/TicX/internal/models"
)

func TestPayoutForCapsAtPot(t *testing.T) {
	// 500 per side, 1.5x: uncapped credit would be 1500, pot is 1000
	assert.Equal(t, int64(1000), PayoutFor(500, 1.5))
}

func TestPayoutForBelowCap(t *testing.T) {
	// 0.45x leaves a 10% residual with the house
	assert.Equal(t, int64(450), PayoutFor(500, 0.45))
}

func TestPayoutForExactPot(t *testing.T) {
	assert.Equal(t, int64(200), PayoutFor(100, 1.0))
}

func TestPayoutForNeverNegative(t *testing.T) {
	assert.Equal(t, int64(0), PayoutFor(500, -1))
}

func TestApplyReleaseMovesHoldToBalance(t *testing.T) {
	w := &walletRow{Balance: 100, Locked: 500}
	require.NoError(t, applyRelease(w, 500))
	assert.Equal(t, int64(600), w.Balance)
	assert.Equal(t, int64(0), w.Locked)
}

func TestApplyReleaseRejectsDoubleRelease(t *testing.T) {
	// A queue leave racing the reconciliation sweep: the second release
	// finds nothing held and must fail without mutating the wallet.
	w := &walletRow{Balance: 600, Locked: 0}
	err := applyRelease(w, 500)
	assert.ErrorIs(t, err, ErrInsufficientLocked)
	assert.Equal(t, int64(600), w.Balance)
	assert.Equal(t, int64(0), w.Locked)
}

func TestRecordStatusMatchesSchemaDefault(t *testing.T) {
	assert.Equal(t, "COMPLETED", models.TxStatusCompleted)
}
