package saga

import "github.com/atomport/solver/internal/model"

const (
	Kind = "swap_saga"

	SignalLockCommitted   = "lock_committed"
	SignalRefundRequested = "refund_requested"

	CallAddLockSignature = "add_lock_signature"
	CallStatus           = "status"
)

// ProcessID derives the engine id for a swap's saga. Deterministic so that
// redelivered commit events collapse onto the running instance.
func ProcessID(commitID string) string {
	return "swap:" + commitID
}

// AddLockSignatureRequest is the update payload for chains whose unlock
// step requires a pre-authorized signature. Secret optionally carries the
// hashlock preimage when it is relayed off-band.
type AddLockSignatureRequest struct {
	CommitID  string `json:"commit_id" validate:"required"`
	Signature string `json:"signature" validate:"required,hexadecimal"`
	Secret    string `json:"secret" validate:"omitempty,hexadecimal"`
}

// StatusReply is the synchronous answer to a status query.
type StatusReply struct {
	CommitID           string                  `json:"commit_id"`
	Status             model.SwapStatus        `json:"status"`
	SourceNetwork      string                  `json:"source_network"`
	DestinationNetwork string                  `json:"destination_network"`
	SourceAmount       string                  `json:"source_amount"`
	DestinationAmount  string                  `json:"destination_amount"`
	Timelock           int64                   `json:"timelock"`
	Transactions       []TransactionStatusItem `json:"transactions"`
}

type TransactionStatusItem struct {
	Type    model.TransactionType   `json:"type"`
	Network string                  `json:"network"`
	Hash    string                  `json:"hash"`
	Status  model.TransactionStatus `json:"status"`
}
