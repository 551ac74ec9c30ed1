// Package storemock provides in-memory store implementations for tests.
// The *gorm.DB argument every method receives is ignored; tests pass nil.
package storemock

import (
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/store"
)

type State struct {
	mu sync.Mutex

	swapSeq uint
	swaps   map[string]*model.Swap

	txSeq        uint
	transactions []*model.Transaction

	nonces map[string]*model.ReservedNonce

	networks map[string]*model.Network
	routes   []*model.Route
	tokens   []*model.Token
}

// New returns the shared state and a store aggregate backed by it.
func New() (*State, *store.Store) {
	state := &State{
		swaps:    make(map[string]*model.Swap),
		nonces:   make(map[string]*model.ReservedNonce),
		networks: make(map[string]*model.Network),
	}
	return state, &store.Store{
		Swap:          &SwapStore{state},
		Transaction:   &TransactionStore{state},
		ReservedNonce: &ReservedNonceStore{state},
		Network:       &NetworkStore{state},
	}
}

func (st *State) AddNetwork(n model.Network) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.networks[n.Name] = &n
}

func (st *State) AddRoute(r model.Route) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.routes = append(st.routes, &r)
}

func (st *State) AddToken(t model.Token) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.tokens = append(st.tokens, &t)
}

// ExpireSwap rewrites a swap's timelock, used to simulate expiry without
// waiting.
func (st *State) ExpireSwap(commitID string, timelock int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if swap, ok := st.swaps[commitID]; ok {
		swap.Timelock = timelock
	}
}

// NonceCount reports how many reservation rows exist.
func (st *State) NonceCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.nonces)
}

func nonceKey(network, referenceID string) string {
	return network + "|" + referenceID
}

func (st *State) transactionsFor(swapID uint) []model.Transaction {
	var out []model.Transaction
	for _, txn := range st.transactions {
		if txn.SwapID == swapID {
			out = append(out, *txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type SwapStore struct {
	st *State
}

func (s *SwapStore) Create(_ *gorm.DB, swap *model.Swap) (*model.Swap, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, exists := s.st.swaps[swap.CommitID]; exists {
		return nil, gorm.ErrDuplicatedKey
	}
	s.st.swapSeq++
	swap.ID = s.st.swapSeq
	clone := *swap
	s.st.swaps[swap.CommitID] = &clone
	return swap, nil
}

func (s *SwapStore) GetByCommitID(_ *gorm.DB, commitID string) (*model.Swap, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	stored, ok := s.st.swaps[commitID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *stored
	clone.Transactions = s.st.transactionsFor(stored.ID)
	return &clone, nil
}

func (s *SwapStore) UpdateStatus(_ *gorm.DB, commitID string, status model.SwapStatus) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	stored, ok := s.st.swaps[commitID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.Status = status
	return nil
}

func (s *SwapStore) SetQuote(_ *gorm.DB, commitID, destinationAmount, feeAmount string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	stored, ok := s.st.swaps[commitID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.DestinationAmount = destinationAmount
	stored.FeeAmount = feeAmount
	return nil
}

func (s *SwapStore) MarkCompleted(_ *gorm.DB, commitID string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	stored, ok := s.st.swaps[commitID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	stored.Status = model.SwapStatusCompleted
	stored.CompletedAt = &now
	return nil
}

func (s *SwapStore) FindActive(_ *gorm.DB) ([]model.Swap, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	var out []model.Swap
	for _, stored := range s.st.swaps {
		if !stored.Status.Terminal() {
			out = append(out, *stored)
		}
	}
	return out, nil
}

func (s *SwapStore) FindRefundCandidates(_ *gorm.DB, nowUnix int64) ([]model.Swap, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	var out []model.Swap
	for _, stored := range s.st.swaps {
		if stored.Timelock <= nowUnix && !stored.Status.Terminal() {
			out = append(out, *stored)
		}
	}
	return out, nil
}

type TransactionStore struct {
	st *State
}

func (s *TransactionStore) Create(_ *gorm.DB, txn *model.Transaction) (*model.Transaction, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, existing := range s.st.transactions {
		if existing.SwapID == txn.SwapID && existing.Type == txn.Type && existing.Network == txn.Network {
			return nil, gorm.ErrDuplicatedKey
		}
	}
	s.st.txSeq++
	txn.ID = s.st.txSeq
	clone := *txn
	s.st.transactions = append(s.st.transactions, &clone)
	return txn, nil
}

func (s *TransactionStore) Get(_ *gorm.DB, swapID uint, txType model.TransactionType, network string) (*model.Transaction, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, txn := range s.st.transactions {
		if txn.SwapID == swapID && txn.Type == txType && txn.Network == network {
			clone := *txn
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *TransactionStore) UpdateOnPublish(_ *gorm.DB, id uint, hash string, nonce uint64) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, txn := range s.st.transactions {
		if txn.ID == id {
			txn.Hash = hash
			txn.Nonce = nonce
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *TransactionStore) MarkCompleted(_ *gorm.DB, id uint, confirmations uint64, feeAmount, feeAsset string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, txn := range s.st.transactions {
		if txn.ID == id {
			txn.Status = model.TransactionStatusCompleted
			txn.Confirmations = confirmations
			txn.FeeAmount = feeAmount
			txn.FeeAsset = feeAsset
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *TransactionStore) MarkFailed(_ *gorm.DB, id uint) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, txn := range s.st.transactions {
		if txn.ID == id {
			txn.Status = model.TransactionStatusFailed
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *TransactionStore) FindBySwapID(_ *gorm.DB, swapID uint) ([]model.Transaction, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return s.st.transactionsFor(swapID), nil
}

type ReservedNonceStore struct {
	st *State
}

func (s *ReservedNonceStore) Create(_ *gorm.DB, nonce *model.ReservedNonce) (*model.ReservedNonce, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	key := nonceKey(nonce.Network, nonce.ReferenceID)
	if _, exists := s.st.nonces[key]; exists {
		return nil, gorm.ErrDuplicatedKey
	}
	clone := *nonce
	s.st.nonces[key] = &clone
	return nonce, nil
}

func (s *ReservedNonceStore) GetByReference(_ *gorm.DB, network, referenceID string) (*model.ReservedNonce, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	stored, ok := s.st.nonces[nonceKey(network, referenceID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *stored
	return &clone, nil
}

type NetworkStore struct {
	st *State
}

func (s *NetworkStore) All(_ *gorm.DB) ([]model.Network, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	var out []model.Network
	for _, n := range s.st.networks {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *NetworkStore) GetByName(_ *gorm.DB, name string) (*model.Network, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	n, ok := s.st.networks[name]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *n
	return &clone, nil
}

func (s *NetworkStore) UpdateLastProcessedBlock(_ *gorm.DB, name string, block uint64) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	n, ok := s.st.networks[name]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	n.LastProcessedBlock = block
	return nil
}

func (s *NetworkStore) GetRoute(_ *gorm.DB, sourceNetwork, sourceAsset, destinationNetwork, destinationAsset string) (*model.Route, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	for _, r := range s.st.routes {
		if r.SourceNetwork == sourceNetwork && r.SourceAsset == sourceAsset &&
			r.DestinationNetwork == destinationNetwork && r.DestinationAsset == destinationAsset {
			clone := *r
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *NetworkStore) ListTokens(_ *gorm.DB, networkName string) ([]model.Token, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	var out []model.Token
	for _, t := range s.st.tokens {
		if t.NetworkName == networkName {
			out = append(out, *t)
		}
	}
	return out, nil
}
