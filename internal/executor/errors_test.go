package executor

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/signer"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		txType model.TransactionType
		err    error
		want   Class
	}{
		{"nonce too low", model.TransactionTypeLock, chains.ErrNonceTooLow, ClassChainState},
		{"underpriced", model.TransactionTypeLock, chains.ErrUnderpriced, ClassChainState},
		{"not confirmed", model.TransactionTypeRedeem, chains.ErrNotConfirmed, ClassChainState},
		{"already claimed on redeem", model.TransactionTypeRedeem, chains.ErrAlreadyClaimed, ClassAlreadyDone},
		{"already claimed on refund", model.TransactionTypeRefund, chains.ErrAlreadyClaimed, ClassFatal},
		{"already refunded on refund", model.TransactionTypeRefund, chains.ErrAlreadyRefunded, ClassAlreadyDone},
		{"already refunded on redeem", model.TransactionTypeRedeem, chains.ErrAlreadyRefunded, ClassFatal},
		{"htlc exists on lock", model.TransactionTypeLock, chains.ErrHTLCAlreadyExists, ClassAlreadyDone},
		{"htlc exists on commit", model.TransactionTypeCommit, chains.ErrHTLCAlreadyExists, ClassAlreadyDone},
		{"htlc exists on redeem", model.TransactionTypeRedeem, chains.ErrHTLCAlreadyExists, ClassFatal},
		{"hashlock set on add lock sig", model.TransactionTypeAddLockSig, chains.ErrHashlockAlreadySet, ClassAlreadyDone},
		{"hashlock set on refund", model.TransactionTypeRefund, chains.ErrHashlockAlreadySet, ClassFatal},
		{"already known", model.TransactionTypeLock, chains.ErrAlreadyKnown, ClassAlreadyDone},
		{"invalid timelock", model.TransactionTypeLock, chains.ErrInvalidTimelock, ClassFatal},
		{"signer permanent", model.TransactionTypeLock, signer.ErrPermanent, ClassFatal},
		{"lock timeout wrapped", model.TransactionTypeLock, errors.Wrap(chains.ErrNonceTooLow, "publish"), ClassChainState},
		{"unrecognized", model.TransactionTypeLock, errors.New("boom"), ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.txType, tt.err))
		})
	}
}

func TestRestartErrorUnwrap(t *testing.T) {
	restart := (&Context{}).next(chains.ErrUnderpriced)

	assert.Equal(t, 1, restart.Ctx.Attempts)
	assert.ErrorIs(t, restart, chains.ErrUnderpriced)
}

func TestContextCarriesPublishedAcrossRestarts(t *testing.T) {
	ec := &Context{}
	ec.recordPublished("0xa")
	ec.recordPublished("0xa")
	ec.recordPublished("0xb")

	restart := ec.next(chains.ErrNotConfirmed)
	assert.Equal(t, []string{"0xa", "0xb"}, restart.Ctx.PublishedTxIDs)
}
