package network

import (
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/model"
)

type IStore interface {
	All(tx *gorm.DB) ([]model.Network, error)
	GetByName(tx *gorm.DB, name string) (*model.Network, error)
	UpdateLastProcessedBlock(tx *gorm.DB, name string, block uint64) error
	GetRoute(tx *gorm.DB, sourceNetwork, sourceAsset, destinationNetwork, destinationAsset string) (*model.Route, error)
	ListTokens(tx *gorm.DB, networkName string) ([]model.Token, error)
}
