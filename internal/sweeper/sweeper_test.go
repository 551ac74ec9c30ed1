package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/chains/chainsmock"
	"github.com/atomport/solver/internal/coordinator"
	"github.com/atomport/solver/internal/engine"
	"github.com/atomport/solver/internal/executor"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/monitoring"
	"github.com/atomport/solver/internal/quoting"
	"github.com/atomport/solver/internal/saga"
	"github.com/atomport/solver/internal/store"
	"github.com/atomport/solver/internal/store/storemock"
	"github.com/atomport/solver/internal/types/environments"
	"github.com/atomport/solver/internal/utils/config"
	"github.com/atomport/solver/internal/utils/logger"
)

type stubSigner struct{}

func (stubSigner) Sign(_ context.Context, _, _ string, payload []byte) ([]byte, error) {
	return append([]byte("sig:"), payload...), nil
}

func (stubSigner) Generate(_ context.Context, _ string) (string, error) {
	return "0xgenerated", nil
}

type sweeperRig struct {
	state   *storemock.State
	stores  *store.Store
	dest    *chainsmock.MockAdapter
	engine  *engine.Engine
	sweeper *Sweeper
}

func newSweeperRig(t *testing.T) *sweeperRig {
	t.Helper()

	state, stores := storemock.New()
	source := chainsmock.New("eth")
	dest := chainsmock.New("base")
	registry := chains.NewRegistry()
	registry.Register(source)
	registry.Register(dest)

	state.AddNetwork(model.Network{Name: "eth", Type: model.NetworkTypeEVM, SolverAddress: "0xsolver-eth"})
	state.AddNetwork(model.Network{Name: "base", Type: model.NetworkTypeEVM, SolverAddress: "0xsolver-base"})

	log := logger.New(environments.Test)
	metrics := monitoring.NewSolverMetrics()
	appConfig := &config.AppConfig{
		Executor: config.ExecutorConfig{
			MaxAttempts:    5,
			ReceiptTimeout: 2 * time.Second,
			PollInterval:   10 * time.Millisecond,
			LockTTL:        time.Second,
		},
	}

	coord := coordinator.New(nil, stores.ReservedNonce, coordinator.NewMemoryLocker(), registry, time.Second, log)
	exec := executor.New(nil, stores.Transaction, registry, stubSigner{}, coord, metrics, appConfig, log)
	eng := engine.New(metrics, log)
	t.Cleanup(eng.Shutdown)

	sagaDeps := saga.Deps{
		Swaps:    stores.Swap,
		Networks: stores.Network,
		Quoter:   quoting.New(),
		Executor: exec,
		Metrics:  metrics,
		Logger:   log,
	}

	return &sweeperRig{
		state:   state,
		stores:  stores,
		dest:    dest,
		engine:  eng,
		sweeper: New(eng, sagaDeps),
	}
}

func expiredSwap(t *testing.T, rig *sweeperRig, commitID string) *model.Swap {
	t.Helper()

	swap, err := rig.stores.Swap.Create(nil, &model.Swap{
		CommitID:           commitID,
		SourceNetwork:      "eth",
		SourceAsset:        "ETH",
		SourceAddress:      "0xalice",
		DestinationNetwork: "base",
		DestinationAsset:   "ETH",
		DestinationAddress: "0xalice-base",
		SourceAmount:       "2",
		DestinationAmount:  "1.994",
		Hashlock:           "0xhashlock",
		Timelock:           time.Now().Add(-time.Minute).Unix(),
		Status:             model.SwapStatusAwaitingLockConfirmation,
	})
	require.NoError(t, err)
	return swap
}

func TestSweepStartsRefundSagaForOrphanedSwap(t *testing.T) {
	rig := newSweeperRig(t)
	swap := expiredSwap(t, rig, "orphan-1")

	// the destination lock landed before the previous process died
	txn, err := rig.stores.Transaction.Create(nil, &model.Transaction{
		SwapID:  swap.ID,
		Type:    model.TransactionTypeLock,
		Network: "base",
		Status:  model.TransactionStatusCompleted,
	})
	require.NoError(t, err)
	require.NoError(t, rig.stores.Transaction.UpdateOnPublish(nil, txn.ID, "0xoldlock", 0))

	rig.sweeper.Run()

	require.Eventually(t, func() bool {
		stored, err := rig.stores.Swap.GetByCommitID(nil, "orphan-1")
		return err == nil && stored.Status == model.SwapStatusRefunded
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := rig.stores.Swap.GetByCommitID(nil, "orphan-1")
	require.NoError(t, err)

	var refunded bool
	for _, txn := range stored.Transactions {
		if txn.Type == model.TransactionTypeRefund && txn.Network == "base" {
			refunded = txn.Status == model.TransactionStatusCompleted
		}
	}
	assert.True(t, refunded)
}

func TestSweepRefundsWithoutTxWhenNothingLocked(t *testing.T) {
	rig := newSweeperRig(t)
	expiredSwap(t, rig, "orphan-2")

	rig.sweeper.Run()

	require.Eventually(t, func() bool {
		stored, err := rig.stores.Swap.GetByCommitID(nil, "orphan-2")
		return err == nil && stored.Status == model.SwapStatusRefunded
	}, 5*time.Second, 20*time.Millisecond)

	assert.Empty(t, rig.dest.Published())
}

func TestSweepSignalsRunningSaga(t *testing.T) {
	rig := newSweeperRig(t)

	// a live saga waiting on its lock confirmation; the sweeper must signal
	// it instead of racing a second refund process
	event := &model.HTLCCommitEvent{
		TxHash:             "0xcommit",
		CommitID:           "live-1",
		SourceNetwork:      "eth",
		SourceAsset:        "ETH",
		SourceAddress:      "0xalice",
		DestinationNetwork: "base",
		DestinationAsset:   "ETH",
		DestinationAddress: "0xalice-base",
		Amount:             decimal.RequireFromString("2"),
		Hashlock:           "0xhashlock",
		Timelock:           time.Now().Add(time.Hour).Unix(),
	}
	rig.state.AddRoute(model.Route{
		SourceNetwork: "eth", SourceAsset: "ETH",
		DestinationNetwork: "base", DestinationAsset: "ETH",
		FeeBps: 30, Enabled: true,
	})

	require.NoError(t, rig.engine.StartUnique(saga.NewFromCommit(rig.sweeper.sagaDeps, event)))
	require.Eventually(t, func() bool {
		stored, err := rig.stores.Swap.GetByCommitID(nil, "live-1")
		return err == nil && stored.Status == model.SwapStatusAwaitingLockConfirmation
	}, 5*time.Second, 20*time.Millisecond)

	// force the timelock into the past so the sweep picks the swap up; the
	// running saga still holds its original timer but acts on the signal
	rig.state.ExpireSwap("live-1", time.Now().Add(-time.Minute).Unix())

	rig.sweeper.Run()

	require.Eventually(t, func() bool {
		stored, err := rig.stores.Swap.GetByCommitID(nil, "live-1")
		return err == nil && stored.Status == model.SwapStatusRefunded
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSweepSkipsTerminalSwaps(t *testing.T) {
	rig := newSweeperRig(t)
	swap := expiredSwap(t, rig, "done-1")
	require.NoError(t, rig.stores.Swap.MarkCompleted(nil, swap.CommitID))

	rig.sweeper.Run()

	time.Sleep(100 * time.Millisecond)
	stored, err := rig.stores.Swap.GetByCommitID(nil, "done-1")
	require.NoError(t, err)
	assert.Equal(t, model.SwapStatusCompleted, stored.Status)
}
