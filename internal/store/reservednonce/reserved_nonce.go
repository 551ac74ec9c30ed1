package reservednonce

import (
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/model"
)

type Store struct {
}

func New() IStore {
	return &Store{}
}

func (s *Store) Create(tx *gorm.DB, nonce *model.ReservedNonce) (*model.ReservedNonce, error) {
	return nonce, tx.Create(nonce).Error
}

func (s *Store) GetByReference(tx *gorm.DB, network, referenceID string) (*model.ReservedNonce, error) {
	var nonce model.ReservedNonce
	err := tx.Where("network = ? AND reference_id = ?", network, referenceID).First(&nonce).Error
	if err != nil {
		return nil, err
	}
	return &nonce, nil
}
