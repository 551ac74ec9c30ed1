package model

import (
	"github.com/shopspring/decimal"
)

// HTLCCommitEvent is the immutable fact read off a source-chain log when a
// user commits funds under a hashlock. It is a trigger, not an entity: the
// scanner turns it into a Swap row and a saga start.
type HTLCCommitEvent struct {
	TxHash             string
	CommitID           string
	SourceNetwork      string
	SourceAsset        string
	SourceAddress      string
	DestinationNetwork string
	DestinationAsset   string
	DestinationAddress string
	Amount             decimal.Decimal
	Hashlock           string
	Timelock           int64
}

// HTLCLockEvent is observed on the destination chain once the solver's lock
// transaction confirms. Routed to the saga identified by CommitID.
type HTLCLockEvent struct {
	TxHash   string
	CommitID string
	Network  string
	Hashlock string
	Timelock int64
	Amount   decimal.Decimal
}
