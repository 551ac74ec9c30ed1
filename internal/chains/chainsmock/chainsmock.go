package chainsmock

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/model"
)

// MockAdapter is an in-memory chain used by tests. Every RPC surface the
// real adapters expose can be scripted: per-block events, receipt outcomes,
// and error injection for individual steps.
type MockAdapter struct {
	mu sync.Mutex

	NetworkName string
	NetworkType model.NetworkType

	Head       uint64
	nonces     map[string]uint64
	receipts   map[string]*chains.Receipt
	eventsAt   map[uint64]*chains.EventBatch
	published  []string
	publishSeq int

	// error injection, consumed once per call when set
	EstimateFeeErr error
	SimulateErr    error
	PublishErr     error
	ReceiptErr     error

	// getEventsErr fails every event fetch until cleared, emulating a
	// degraded RPC node rather than a one-off blip
	getEventsErr error
	eventFetches int

	// ConfirmAfterPolls delays confirmation: the receipt reports
	// unconfirmed until GetReceipt has been called this many times.
	ConfirmAfterPolls int
	receiptPolls      map[string]int
}

func New(name string) *MockAdapter {
	return &MockAdapter{
		NetworkName:  name,
		NetworkType:  model.NetworkTypeEVM,
		nonces:       make(map[string]uint64),
		receipts:     make(map[string]*chains.Receipt),
		eventsAt:     make(map[uint64]*chains.EventBatch),
		receiptPolls: make(map[string]int),
	}
}

func (m *MockAdapter) Network() string {
	return m.NetworkName
}

func (m *MockAdapter) Type() model.NetworkType {
	return m.NetworkType
}

// SetNextNonce seeds the chain-side pending nonce for an address.
func (m *MockAdapter) SetNextNonce(address string, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces[address] = nonce
}

// AddCommitEvent registers a commit event observed at the given block.
func (m *MockAdapter) AddCommitEvent(block uint64, ev model.HTLCCommitEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := m.eventsAt[block]
	if batch == nil {
		batch = &chains.EventBatch{}
		m.eventsAt[block] = batch
	}
	batch.Commits = append(batch.Commits, ev)
}

// AddLockEvent registers a lock event observed at the given block.
func (m *MockAdapter) AddLockEvent(block uint64, ev model.HTLCLockEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := m.eventsAt[block]
	if batch == nil {
		batch = &chains.EventBatch{}
		m.eventsAt[block] = batch
	}
	batch.Locks = append(batch.Locks, ev)
}

// Published returns the tx ids published so far, in order.
func (m *MockAdapter) Published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.published))
	copy(out, m.published)
	return out
}

// SeedReceipt installs a receipt for a tx id without publishing, emulating
// a transaction that landed before a crash.
func (m *MockAdapter) SeedReceipt(txID string, receipt *chains.Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[txID] = receipt
}

func (m *MockAdapter) EstimateFee(ctx context.Context, req *chains.TransactionRequest) (*chains.Fee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.EstimateFeeErr; err != nil {
		m.EstimateFeeErr = nil
		return nil, err
	}
	return &chains.Fee{
		Asset:    "ETH",
		Amount:   decimal.RequireFromString("0.0001"),
		GasLimit: 21000,
	}, nil
}

func (m *MockAdapter) NextNonce(ctx context.Context, address string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nonce := m.nonces[address]
	m.nonces[address] = nonce + 1
	return nonce, nil
}

func (m *MockAdapter) BuildTransaction(ctx context.Context, req *chains.TransactionRequest, nonce uint64, fee *chains.Fee) (*chains.UnsignedTx, error) {
	return &chains.UnsignedTx{
		Network: m.NetworkName,
		From:    req.FromAddress,
		Nonce:   nonce,
		Fee:     fee,
		Payload: []byte(fmt.Sprintf("%s:%s:%d", req.CommitID, req.Type, nonce)),
	}, nil
}

func (m *MockAdapter) Simulate(ctx context.Context, tx *chains.SignedTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.SimulateErr; err != nil {
		m.SimulateErr = nil
		return err
	}
	return nil
}

func (m *MockAdapter) Publish(ctx context.Context, tx *chains.SignedTx) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.PublishErr; err != nil {
		m.PublishErr = nil
		return "", err
	}

	m.publishSeq++
	txID := fmt.Sprintf("0xmock%04d", m.publishSeq)
	m.published = append(m.published, txID)
	m.receipts[txID] = &chains.Receipt{
		TxID:          txID,
		Confirmed:     true,
		Success:       true,
		BlockNumber:   m.Head,
		Confirmations: 1,
		FeePaid:       decimal.RequireFromString("0.0001"),
		FeeAsset:      "ETH",
	}
	return txID, nil
}

func (m *MockAdapter) GetReceipt(ctx context.Context, txID string) (*chains.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ReceiptErr; err != nil {
		m.ReceiptErr = nil
		return nil, err
	}

	receipt, ok := m.receipts[txID]
	if !ok {
		return nil, chains.ErrTxNotFound
	}

	if m.ConfirmAfterPolls > 0 {
		m.receiptPolls[txID]++
		if m.receiptPolls[txID] < m.ConfirmAfterPolls {
			pending := *receipt
			pending.Confirmed = false
			return &pending, nil
		}
	}
	return receipt, nil
}

func (m *MockAdapter) LastConfirmedBlock(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Head, nil
}

// SetGetEventsErr scripts persistent event fetch failures; pass nil to heal
// the node.
func (m *MockAdapter) SetGetEventsErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getEventsErr = err
}

// EventFetches reports how many GetEvents calls were made.
func (m *MockAdapter) EventFetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventFetches
}

func (m *MockAdapter) GetEvents(ctx context.Context, fromBlock, toBlock uint64) (*chains.EventBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventFetches++
	if m.getEventsErr != nil {
		return nil, m.getEventsErr
	}

	out := &chains.EventBatch{}
	for block := fromBlock; block <= toBlock; block++ {
		if batch, ok := m.eventsAt[block]; ok {
			out.Commits = append(out.Commits, batch.Commits...)
			out.Locks = append(out.Locks, batch.Locks...)
		}
	}
	return out, nil
}
