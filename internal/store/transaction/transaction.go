package transaction

import (
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/model"
)

type Store struct {
}

func New() IStore {
	return &Store{}
}

func (s *Store) Create(tx *gorm.DB, txn *model.Transaction) (*model.Transaction, error) {
	return txn, tx.Create(txn).Error
}

func (s *Store) Get(tx *gorm.DB, swapID uint, txType model.TransactionType, network string) (*model.Transaction, error) {
	var txn model.Transaction
	err := tx.Where("swap_id = ? AND type = ? AND network = ?", swapID, txType, network).First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (s *Store) UpdateOnPublish(tx *gorm.DB, id uint, hash string, nonce uint64) error {
	return tx.Model(&model.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"hash":  hash,
			"nonce": nonce,
		}).Error
}

func (s *Store) MarkCompleted(tx *gorm.DB, id uint, confirmations uint64, feeAmount, feeAsset string) error {
	return tx.Model(&model.Transaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        model.TransactionStatusCompleted,
			"confirmations": confirmations,
			"fee_amount":    feeAmount,
			"fee_asset":     feeAsset,
		}).Error
}

func (s *Store) MarkFailed(tx *gorm.DB, id uint) error {
	return tx.Model(&model.Transaction{}).
		Where("id = ?", id).
		Update("status", model.TransactionStatusFailed).Error
}

func (s *Store) FindBySwapID(tx *gorm.DB, swapID uint) ([]model.Transaction, error) {
	var txns []model.Transaction
	err := tx.Where("swap_id = ?", swapID).Order("id asc").Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
