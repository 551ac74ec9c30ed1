package transaction

import (
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, txn *model.Transaction) (*model.Transaction, error)
	Get(tx *gorm.DB, swapID uint, txType model.TransactionType, network string) (*model.Transaction, error)
	UpdateOnPublish(tx *gorm.DB, id uint, hash string, nonce uint64) error
	MarkCompleted(tx *gorm.DB, id uint, confirmations uint64, feeAmount, feeAsset string) error
	MarkFailed(tx *gorm.DB, id uint) error
	FindBySwapID(tx *gorm.DB, swapID uint) ([]model.Transaction, error)
}
