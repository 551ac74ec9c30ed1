package store

import (
	"github.com/atomport/solver/internal/store/network"
	"github.com/atomport/solver/internal/store/reservednonce"
	"github.com/atomport/solver/internal/store/swap"
	"github.com/atomport/solver/internal/store/transaction"
)

type Store struct {
	Swap          swap.IStore
	Transaction   transaction.IStore
	ReservedNonce reservednonce.IStore
	Network       network.IStore
}

func New() *Store {
	return &Store{
		Swap:          swap.New(),
		Transaction:   transaction.New(),
		ReservedNonce: reservednonce.New(),
		Network:       network.New(),
	}
}
