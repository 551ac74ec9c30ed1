package coordinator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/store/reservednonce"
	"github.com/atomport/solver/internal/utils/logger"
)

// Coordinator hands out chain nonces exactly once per reference id. A
// reference id names one logical transaction (commit id + transaction
// type), so a replayed saga step gets its original nonce back instead of
// burning a new one.
type Coordinator struct {
	db       *gorm.DB
	nonces   reservednonce.IStore
	locker   ILocker
	adapters *chains.Registry
	lockTTL  time.Duration
	logger   *logger.Logger
}

func New(db *gorm.DB, nonces reservednonce.IStore, locker ILocker, adapters *chains.Registry, lockTTL time.Duration, logger *logger.Logger) *Coordinator {
	return &Coordinator{
		db:       db,
		nonces:   nonces,
		locker:   locker,
		adapters: adapters,
		lockTTL:  lockTTL,
		logger:   logger,
	}
}

func (c *Coordinator) Reserve(ctx context.Context, network, address, referenceID string) (uint64, error) {
	// fast path: the reference id was already served
	if existing, err := c.nonces.GetByReference(c.db, network, referenceID); err == nil {
		return existing.Nonce, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	release, err := c.locker.Acquire(ctx, "nonce:"+network+":"+address, c.lockTTL)
	if err != nil {
		return 0, err
	}
	defer release()

	// re-check under the lock: another holder may have just reserved it
	if existing, err := c.nonces.GetByReference(c.db, network, referenceID); err == nil {
		return existing.Nonce, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	adapter, err := c.adapters.Get(network)
	if err != nil {
		return 0, err
	}

	nonce, err := adapter.NextNonce(ctx, address)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read next nonce from chain")
	}

	_, err = c.nonces.Create(c.db, &model.ReservedNonce{
		Network:     network,
		Address:     address,
		ReferenceID: referenceID,
		Nonce:       nonce,
	})
	if err != nil {
		// a concurrent insert won the unique constraint; their value is
		// the truth
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, getErr := c.nonces.GetByReference(c.db, network, referenceID)
			if getErr != nil {
				return 0, getErr
			}
			return existing.Nonce, nil
		}
		return 0, err
	}

	c.logger.Debug("reserved nonce", map[string]string{
		"network":      network,
		"address":      address,
		"reference_id": referenceID,
	})
	return nonce, nil
}
