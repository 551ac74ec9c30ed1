package model

import (
	"gorm.io/gorm"
)

// ReservedNonce pins the chain nonce assigned to one logical transaction.
// The (network, reference_id) pair is unique so a concurrent duplicate
// insert fails loudly instead of silently double-allocating; the record is
// never mutated after creation.
type ReservedNonce struct {
	gorm.Model
	Network     string `gorm:"column:network;type:varchar(50);not null;uniqueIndex:idx_reserved_nonces_network_ref"`
	Address     string `gorm:"column:address;type:varchar(255);not null"`
	ReferenceID string `gorm:"column:reference_id;type:varchar(255);not null;uniqueIndex:idx_reserved_nonces_network_ref"`
	Nonce       uint64 `gorm:"column:nonce;not null"`
}

func (ReservedNonce) TableName() string {
	return "reserved_nonces"
}
