package chains

import (
	"strings"

	"github.com/pkg/errors"
)

// Chain-state errors. The executor's classification (see internal/executor)
// depends on adapters mapping node responses onto these sentinels.
var (
	// retryable chain state: restart the attempt with carried context
	ErrNonceTooLow  = errors.New("chain: nonce too low")
	ErrUnderpriced  = errors.New("chain: transaction underpriced")
	ErrNotConfirmed = errors.New("chain: transaction not confirmed in time")

	// idempotent outcomes: the on-chain effect already happened
	ErrHTLCAlreadyExists  = errors.New("chain: htlc already exists")
	ErrAlreadyClaimed     = errors.New("chain: htlc already claimed")
	ErrAlreadyRefunded    = errors.New("chain: htlc already refunded")
	ErrHashlockAlreadySet = errors.New("chain: hashlock already set")
	ErrAlreadyKnown       = errors.New("chain: transaction already known")

	// fatal parameter errors
	ErrInvalidTimelock = errors.New("chain: invalid timelock")

	ErrTxNotFound      = errors.New("chain: transaction not found")
	ErrUnknownNetwork  = errors.New("chain: unknown network")
	ErrUnsupportedType = errors.New("chain: unsupported network type")
)

// MapNodeError folds the free-text error strings RPC nodes return into the
// sentinel set above. Unrecognized errors pass through unchanged.
func MapNodeError(err error) error {
	if err == nil {
		return nil
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "nonce too low"):
		return errors.Wrap(ErrNonceTooLow, err.Error())
	case strings.Contains(msg, "underpriced"):
		return errors.Wrap(ErrUnderpriced, err.Error())
	case strings.Contains(msg, "already known"),
		strings.Contains(msg, "alreadyprocessed"):
		return errors.Wrap(ErrAlreadyKnown, err.Error())
	case strings.Contains(msg, "htlc already exists"),
		strings.Contains(msg, "already exist"):
		return errors.Wrap(ErrHTLCAlreadyExists, err.Error())
	case strings.Contains(msg, "already claimed"),
		strings.Contains(msg, "already redeemed"):
		return errors.Wrap(ErrAlreadyClaimed, err.Error())
	case strings.Contains(msg, "already refunded"):
		return errors.Wrap(ErrAlreadyRefunded, err.Error())
	case strings.Contains(msg, "hashlock already set"):
		return errors.Wrap(ErrHashlockAlreadySet, err.Error())
	case strings.Contains(msg, "invalid timelock"),
		strings.Contains(msg, "timelock not in the future"):
		return errors.Wrap(ErrInvalidTimelock, err.Error())
	}
	return err
}
