package swap

import (
	"time"

	"gorm.io/gorm"

	"github.com/atomport/solver/internal/model"
)

type Store struct {
}

func New() IStore {
	return &Store{}
}

func (s *Store) Create(tx *gorm.DB, swap *model.Swap) (*model.Swap, error) {
	return swap, tx.Create(swap).Error
}

func (s *Store) GetByCommitID(tx *gorm.DB, commitID string) (*model.Swap, error) {
	var swap model.Swap
	err := tx.Preload("Transactions").Where("commit_id = ?", commitID).First(&swap).Error
	if err != nil {
		return nil, err
	}
	return &swap, nil
}

func (s *Store) UpdateStatus(tx *gorm.DB, commitID string, status model.SwapStatus) error {
	return tx.Model(&model.Swap{}).
		Where("commit_id = ?", commitID).
		Update("status", status).Error
}

func (s *Store) SetQuote(tx *gorm.DB, commitID, destinationAmount, feeAmount string) error {
	return tx.Model(&model.Swap{}).
		Where("commit_id = ?", commitID).
		Updates(map[string]interface{}{
			"destination_amount": destinationAmount,
			"fee_amount":         feeAmount,
		}).Error
}

func (s *Store) MarkCompleted(tx *gorm.DB, commitID string) error {
	return tx.Model(&model.Swap{}).
		Where("commit_id = ?", commitID).
		Updates(map[string]interface{}{
			"status":       model.SwapStatusCompleted,
			"completed_at": time.Now(),
		}).Error
}

func (s *Store) FindActive(tx *gorm.DB) ([]model.Swap, error) {
	var swaps []model.Swap
	err := tx.Where("status NOT IN ?", []model.SwapStatus{
		model.SwapStatusCompleted,
		model.SwapStatusRefunded,
		model.SwapStatusFailed,
	}).Find(&swaps).Error
	if err != nil {
		return nil, err
	}
	return swaps, nil
}

func (s *Store) FindRefundCandidates(tx *gorm.DB, nowUnix int64) ([]model.Swap, error) {
	var swaps []model.Swap
	err := tx.Where("timelock <= ?", nowUnix).
		Where("status NOT IN ?", []model.SwapStatus{
			model.SwapStatusCompleted,
			model.SwapStatusRefunded,
			model.SwapStatusFailed,
		}).Find(&swaps).Error
	if err != nil {
		return nil, err
	}
	return swaps, nil
}
