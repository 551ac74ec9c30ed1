package executor

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/coordinator"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/signer"
)

// Class buckets execution failures by the recovery they demand.
type Class int

const (
	// ClassUnknown errors propagate to the caller unchanged.
	ClassUnknown Class = iota
	// ClassTransient errors are infrastructure hiccups, safe to retry the
	// failed call in place.
	ClassTransient
	// ClassChainState errors mean the chain moved under us (nonce taken,
	// fee market shifted, confirmation window missed). The whole attempt
	// restarts with carried context.
	ClassChainState
	// ClassAlreadyDone errors report that the intended on-chain effect
	// already exists. The step succeeds.
	ClassAlreadyDone
	// ClassFatal errors no retry can fix. The saga compensates.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassChainState:
		return "chain_state"
	case ClassAlreadyDone:
		return "already_done"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Classify maps an error onto its recovery class. The transaction type
// matters: "already claimed" means success for a redeem but tells a refund
// the funds are gone, and symmetrically for "already refunded". Adapters
// are responsible for folding node responses onto the chains sentinel set
// first.
func Classify(txType model.TransactionType, err error) Class {
	switch {
	case err == nil:
		return ClassUnknown

	case errors.Is(err, chains.ErrNonceTooLow),
		errors.Is(err, chains.ErrUnderpriced),
		errors.Is(err, chains.ErrNotConfirmed):
		return ClassChainState

	case errors.Is(err, chains.ErrAlreadyClaimed):
		if txType == model.TransactionTypeRedeem {
			return ClassAlreadyDone
		}
		return ClassFatal

	case errors.Is(err, chains.ErrAlreadyRefunded):
		if txType == model.TransactionTypeRefund {
			return ClassAlreadyDone
		}
		return ClassFatal

	case errors.Is(err, chains.ErrHTLCAlreadyExists):
		if txType == model.TransactionTypeLock || txType == model.TransactionTypeCommit {
			return ClassAlreadyDone
		}
		return ClassFatal

	case errors.Is(err, chains.ErrHashlockAlreadySet):
		if txType == model.TransactionTypeAddLockSig || txType == model.TransactionTypeLock {
			return ClassAlreadyDone
		}
		return ClassFatal

	case errors.Is(err, chains.ErrAlreadyKnown):
		return ClassAlreadyDone

	case errors.Is(err, chains.ErrInvalidTimelock),
		errors.Is(err, signer.ErrPermanent):
		return ClassFatal

	case errors.Is(err, coordinator.ErrLockTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	}
	return ClassUnknown
}

// RestartError asks the caller to run the attempt again with the carried
// context. It is a control-flow signal, not a failure.
type RestartError struct {
	Ctx   *Context
	Cause error
}

func (e *RestartError) Error() string {
	return fmt.Sprintf("restart attempt %d: %v", e.Ctx.Attempts, e.Cause)
}

func (e *RestartError) Unwrap() error {
	return e.Cause
}
