package model

import (
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeCommit     TransactionType = "commit"
	TransactionTypeLock       TransactionType = "lock"
	TransactionTypeRedeem     TransactionType = "redeem"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeApprove    TransactionType = "approve"
	TransactionTypeAddLockSig TransactionType = "add_lock_sig"
)

type TransactionStatus string

const (
	TransactionStatusInitiated TransactionStatus = "initiated"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction records one on-chain leg of a swap. Created when the saga
// starts the leg, updated by the executor once the receipt is in.
type Transaction struct {
	gorm.Model
	SwapID        uint              `gorm:"column:swap_id;not null;index;uniqueIndex:idx_transactions_swap_type_network"`
	Type          TransactionType   `gorm:"column:type;type:varchar(20);not null;uniqueIndex:idx_transactions_swap_type_network"`
	Network       string            `gorm:"column:network;type:varchar(50);not null;uniqueIndex:idx_transactions_swap_type_network"`
	Hash          string            `gorm:"column:hash;type:varchar(255)"`
	Nonce         uint64            `gorm:"column:nonce"`
	Confirmations uint64            `gorm:"column:confirmations;default:0"`
	Status        TransactionStatus `gorm:"column:status;type:varchar(20);not null;default:'initiated'"`
	FeeAmount     string            `gorm:"column:fee_amount;type:varchar(78)"`
	FeeAsset      string            `gorm:"column:fee_asset;type:varchar(20)"`
}

func (Transaction) TableName() string {
	return "transactions"
}
