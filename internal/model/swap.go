package model

import (
	"time"

	"gorm.io/gorm"
)

type SwapStatus string

const (
	SwapStatusAwaitingLock             SwapStatus = "awaiting_lock"
	SwapStatusAwaitingLockConfirmation SwapStatus = "awaiting_lock_confirmation"
	SwapStatusAwaitingSecret           SwapStatus = "awaiting_secret_or_signature"
	SwapStatusRedeeming                SwapStatus = "redeeming"
	SwapStatusCompleted                SwapStatus = "completed"
	SwapStatusRefunding                SwapStatus = "refunding"
	SwapStatusRefunded                 SwapStatus = "refunded"
	SwapStatusFailed                   SwapStatus = "failed"
)

// Terminal reports whether no further saga step can run for this status.
func (s SwapStatus) Terminal() bool {
	return s == SwapStatusCompleted || s == SwapStatusRefunded || s == SwapStatusFailed
}

// Swap is the audit trail of one cross-chain swap. The row is created when
// the source commit event is first observed and is never deleted.
type Swap struct {
	gorm.Model
	CommitID           string        `gorm:"column:commit_id;type:varchar(255);not null;uniqueIndex"`
	SourceNetwork      string        `gorm:"column:source_network;type:varchar(50);not null"`
	SourceAsset        string        `gorm:"column:source_asset;type:varchar(20);not null"`
	SourceAddress      string        `gorm:"column:source_address;type:varchar(255);not null"`
	DestinationNetwork string        `gorm:"column:destination_network;type:varchar(50);not null"`
	DestinationAsset   string        `gorm:"column:destination_asset;type:varchar(20);not null"`
	DestinationAddress string        `gorm:"column:destination_address;type:varchar(255);not null"`
	SourceAmount       string        `gorm:"column:source_amount;type:varchar(78);not null"`
	DestinationAmount  string        `gorm:"column:destination_amount;type:varchar(78)"`
	FeeAmount          string        `gorm:"column:fee_amount;type:varchar(78)"`
	Hashlock           string        `gorm:"column:hashlock;type:varchar(66);not null"`
	Timelock           int64         `gorm:"column:timelock;not null"`
	Status             SwapStatus    `gorm:"column:status;type:varchar(50);not null;default:'awaiting_lock'"`
	CompletedAt        *time.Time    `gorm:"column:completed_at"`
	Transactions       []Transaction `gorm:"foreignKey:SwapID"`
}

func (Swap) TableName() string {
	return "swaps"
}

// TimelockExpired reports whether the source HTLC can already be refunded.
func (s *Swap) TimelockExpired(now time.Time) bool {
	return now.Unix() >= s.Timelock
}
