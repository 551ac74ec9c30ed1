package chains

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/atomport/solver/internal/model"
)

// TransactionRequest describes one logical HTLC transaction independent of
// any chain encoding. The adapter turns it into calldata.
type TransactionRequest struct {
	Type        model.TransactionType
	Network     string
	CommitID    string
	FromAddress string
	ToAddress   string
	Asset       string
	Amount      decimal.Decimal
	Hashlock    string
	Timelock    int64
	Secret      string // redeem only
	Signature   []byte // add_lock_sig only
}

type Fee struct {
	Asset    string
	Amount   decimal.Decimal
	GasLimit uint64
	GasPrice *big.Int
}

// UnsignedTx carries the signable payload plus the chain-native transaction
// object. Native never crosses a process boundary; after a crash the
// executor re-builds instead of resuming a half-signed payload.
type UnsignedTx struct {
	Network string
	From    string
	Nonce   uint64
	Fee     *Fee
	Payload []byte
	Native  interface{}
}

type SignedTx struct {
	Network   string
	From      string
	Payload   []byte
	Signature []byte
	Native    interface{}
}

type Receipt struct {
	TxID          string
	Confirmed     bool
	Success       bool
	BlockNumber   uint64
	Confirmations uint64
	FeePaid       decimal.Decimal
	FeeAsset      string
}

type EventBatch struct {
	Commits []model.HTLCCommitEvent
	Locks   []model.HTLCLockEvent
}

// Adapter is the per-network capability the executor and scanner consume.
// Implementations are selected by the network's declared type.
type Adapter interface {
	Network() string
	Type() model.NetworkType

	BuildTransaction(ctx context.Context, req *TransactionRequest, nonce uint64, fee *Fee) (*UnsignedTx, error)
	EstimateFee(ctx context.Context, req *TransactionRequest) (*Fee, error)
	NextNonce(ctx context.Context, address string) (uint64, error)
	Simulate(ctx context.Context, tx *SignedTx) error
	Publish(ctx context.Context, tx *SignedTx) (string, error)
	GetReceipt(ctx context.Context, txID string) (*Receipt, error)

	LastConfirmedBlock(ctx context.Context) (uint64, error)
	GetEvents(ctx context.Context, fromBlock, toBlock uint64) (*EventBatch, error)
}
