package swap

import (
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, swap *model.Swap) (*model.Swap, error)
	GetByCommitID(tx *gorm.DB, commitID string) (*model.Swap, error)
	UpdateStatus(tx *gorm.DB, commitID string, status model.SwapStatus) error
	SetQuote(tx *gorm.DB, commitID, destinationAmount, feeAmount string) error
	MarkCompleted(tx *gorm.DB, commitID string) error
	FindActive(tx *gorm.DB) ([]model.Swap, error)
	FindRefundCandidates(tx *gorm.DB, nowUnix int64) ([]model.Swap, error)
}
