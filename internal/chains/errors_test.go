package chains

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestMapNodeError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want error
	}{
		{"geth nonce too low", "nonce too low: next nonce 42, tx nonce 40", ErrNonceTooLow},
		{"geth underpriced", "replacement transaction underpriced", ErrUnderpriced},
		{"geth already known", "already known", ErrAlreadyKnown},
		{"solana already processed", "Transaction simulation failed: AlreadyProcessed", ErrAlreadyKnown},
		{"contract htlc exists", "execution reverted: HTLC already exists", ErrHTLCAlreadyExists},
		{"contract already claimed", "execution reverted: already claimed", ErrAlreadyClaimed},
		{"contract already redeemed", "execution reverted: already redeemed", ErrAlreadyClaimed},
		{"contract already refunded", "execution reverted: already refunded", ErrAlreadyRefunded},
		{"contract hashlock set", "execution reverted: hashlock already set", ErrHashlockAlreadySet},
		{"contract bad timelock", "execution reverted: invalid timelock", ErrInvalidTimelock},
		{"contract timelock past", "execution reverted: timelock not in the future", ErrInvalidTimelock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapNodeError(errors.New(tt.msg))
			assert.ErrorIs(t, got, tt.want)
			// the node's original text survives for logs
			assert.Contains(t, got.Error(), tt.msg)
		})
	}
}

func TestMapNodeErrorPassthrough(t *testing.T) {
	assert.NoError(t, MapNodeError(nil))

	unknown := errors.New("connection refused")
	assert.Equal(t, unknown, MapNodeError(unknown))
}
