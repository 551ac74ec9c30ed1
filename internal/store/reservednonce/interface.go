package reservednonce

import (
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/model"
)

type IStore interface {
	Create(tx *gorm.DB, nonce *model.ReservedNonce) (*model.ReservedNonce, error)
	GetByReference(tx *gorm.DB, network, referenceID string) (*model.ReservedNonce, error)
}
