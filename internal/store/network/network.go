package network

import (
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/model"
)

type Store struct {
}

func New() IStore {
	return &Store{}
}

func (s *Store) All(tx *gorm.DB) ([]model.Network, error) {
	var networks []model.Network
	err := tx.Find(&networks).Error
	if err != nil {
		return nil, err
	}
	return networks, nil
}

func (s *Store) GetByName(tx *gorm.DB, name string) (*model.Network, error) {
	var n model.Network
	err := tx.Where("name = ?", name).First(&n).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Store) UpdateLastProcessedBlock(tx *gorm.DB, name string, block uint64) error {
	return tx.Model(&model.Network{}).
		Where("name = ?", name).
		Update("last_processed_block", block).Error
}

func (s *Store) GetRoute(tx *gorm.DB, sourceNetwork, sourceAsset, destinationNetwork, destinationAsset string) (*model.Route, error) {
	var route model.Route
	err := tx.Where(
		"source_network = ? AND source_asset = ? AND destination_network = ? AND destination_asset = ? AND enabled = true",
		sourceNetwork, sourceAsset, destinationNetwork, destinationAsset,
	).First(&route).Error
	if err != nil {
		return nil, err
	}
	return &route, nil
}

func (s *Store) ListTokens(tx *gorm.DB, networkName string) ([]model.Token, error) {
	var tokens []model.Token
	err := tx.Where("network_name = ?", networkName).Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
