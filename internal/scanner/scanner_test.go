package scanner

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
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

type scannerRig struct {
	state    *storemock.State
	stores   *store.Store
	source   *chainsmock.MockAdapter
	dest     *chainsmock.MockAdapter
	engine   *engine.Engine
	sagaDeps saga.Deps
	scanCfg  config.ScannerConfig
}

func newScannerRig(t *testing.T) *scannerRig {
	t.Helper()

	state, stores := storemock.New()
	source := chainsmock.New("eth")
	dest := chainsmock.New("base")
	registry := chains.NewRegistry()
	registry.Register(source)
	registry.Register(dest)

	state.AddNetwork(model.Network{Name: "eth", Type: model.NetworkTypeEVM, SolverAddress: "0xsolver-eth"})
	state.AddNetwork(model.Network{Name: "base", Type: model.NetworkTypeEVM, SolverAddress: "0xsolver-base"})
	state.AddRoute(model.Route{
		SourceNetwork: "eth", SourceAsset: "ETH",
		DestinationNetwork: "base", DestinationAsset: "ETH",
		FeeBps: 30, Enabled: true,
	})

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

	return &scannerRig{
		state:  state,
		stores: stores,
		source: source,
		dest:   dest,
		engine: eng,
		sagaDeps: saga.Deps{
			Swaps:    stores.Swap,
			Networks: stores.Network,
			Quoter:   quoting.New(),
			Executor: exec,
			Metrics:  metrics,
			Logger:   log,
		},
		scanCfg: config.ScannerConfig{
			BlockBatchSize:  10,
			WaitInterval:    20 * time.Millisecond,
			ReorgOverlap:    15,
			GroupSize:       4,
			RebaseAfter:     1000,
			DedupWindowSize: 10000,
		},
	}
}

func commitAt(block uint64) model.HTLCCommitEvent {
	return model.HTLCCommitEvent{
		TxHash:             fmt.Sprintf("0xtx%d", block),
		CommitID:           fmt.Sprintf("commit-%d", block),
		SourceNetwork:      "eth",
		SourceAsset:        "ETH",
		SourceAddress:      "0xalice",
		DestinationNetwork: "base",
		DestinationAsset:   "ETH",
		DestinationAddress: "0xalice-base",
		Amount:             decimal.RequireFromString("1"),
		Hashlock:           "0xhashlock",
		Timelock:           time.Now().Add(time.Hour).Unix(),
	}
}

func TestScannerObservesEveryCommitExactlyOnce(t *testing.T) {
	rig := newScannerRig(t)

	// resume from a checkpoint behind a burst of events: one commit per
	// block in (100..130], head at 130, checkpoint at 95. Batch size 10
	// and overlap 15 mean most blocks are fetched more than once.
	rig.source.Head = 130
	for block := uint64(100); block <= 130; block++ {
		rig.source.AddCommitEvent(block, commitAt(block))
	}

	network := model.Network{Name: "eth", Type: model.NetworkTypeEVM, SolverAddress: "0xsolver-eth", LastProcessedBlock: 95}
	rig.state.AddNetwork(network)

	require.NoError(t, rig.engine.StartUnique(New(network, rig.source, rig.engine, rig.sagaDeps, rig.scanCfg)))

	require.Eventually(t, func() bool {
		swaps, err := rig.stores.Swap.FindActive(nil)
		if err != nil || len(swaps) != 31 {
			return false
		}
		for _, swap := range swaps {
			if swap.Status != model.SwapStatusAwaitingLockConfirmation {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)

	// one row per commit despite the overlap re-scans
	for block := uint64(100); block <= 130; block++ {
		_, err := rig.stores.Swap.GetByCommitID(nil, fmt.Sprintf("commit-%d", block))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		stored, err := rig.stores.Network.GetByName(nil, "eth")
		return err == nil && stored.LastProcessedBlock >= 130
	}, 5*time.Second, 20*time.Millisecond)
}

func TestScannerDrivesSwapToCompletion(t *testing.T) {
	rig := newScannerRig(t)

	event := commitAt(100)
	rig.source.Head = 130
	rig.source.AddCommitEvent(100, event)
	rig.source.AddLockEvent(120, model.HTLCLockEvent{
		TxHash:   "0xlocktx",
		CommitID: event.CommitID,
		Network:  "base",
		Hashlock: event.Hashlock,
		Timelock: event.Timelock,
		Amount:   event.Amount,
	})

	network := model.Network{Name: "eth", Type: model.NetworkTypeEVM, SolverAddress: "0xsolver-eth", LastProcessedBlock: 95}
	rig.state.AddNetwork(network)

	require.NoError(t, rig.engine.StartUnique(New(network, rig.source, rig.engine, rig.sagaDeps, rig.scanCfg)))

	require.Eventually(t, func() bool {
		swap, err := rig.stores.Swap.GetByCommitID(nil, event.CommitID)
		return err == nil && swap.Status == model.SwapStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	swap, err := rig.stores.Swap.GetByCommitID(nil, event.CommitID)
	require.NoError(t, err)

	byType := map[string]int{}
	for _, txn := range swap.Transactions {
		byType[string(txn.Type)+":"+txn.Network]++
		assert.Equal(t, model.TransactionStatusCompleted, txn.Status)
	}
	assert.Equal(t, 1, byType["lock:base"])
	assert.Equal(t, 1, byType["redeem:eth"])
	assert.Equal(t, 1, byType["redeem:base"])
}

func TestScannerBacksOffWhileFetchesFail(t *testing.T) {
	rig := newScannerRig(t)

	rig.source.Head = 130
	rig.source.AddCommitEvent(100, commitAt(100))
	rig.source.SetGetEventsErr(errors.New("502 bad gateway"))

	network := model.Network{Name: "eth", Type: model.NetworkTypeEVM, SolverAddress: "0xsolver-eth", LastProcessedBlock: 95}
	rig.state.AddNetwork(network)

	require.NoError(t, rig.engine.StartUnique(New(network, rig.source, rig.engine, rig.sagaDeps, rig.scanCfg)))

	// a failing node gets one group of fetches per wait interval, not a
	// tight retry loop
	time.Sleep(300 * time.Millisecond)
	fetches := rig.source.EventFetches()
	assert.Greater(t, fetches, 0)
	assert.Less(t, fetches, 200)

	// the cursor never moved past the unread ranges
	stored, err := rig.stores.Network.GetByName(nil, "eth")
	require.NoError(t, err)
	assert.Equal(t, uint64(95), stored.LastProcessedBlock)

	// once the node heals the scanner picks up where it left off
	rig.source.SetGetEventsErr(nil)
	require.Eventually(t, func() bool {
		_, err := rig.stores.Swap.GetByCommitID(nil, "commit-100")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestScannerStatusCall(t *testing.T) {
	rig := newScannerRig(t)
	rig.source.Head = 50

	network := model.Network{Name: "eth", Type: model.NetworkTypeEVM, LastProcessedBlock: 40}
	rig.state.AddNetwork(network)

	require.NoError(t, rig.engine.StartUnique(New(network, rig.source, rig.engine, rig.sagaDeps, rig.scanCfg)))

	require.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		value, err := rig.engine.Call(ctx, ProcessID("eth"), CallStatus, nil)
		if err != nil {
			return false
		}
		reply, ok := value.(*StatusReply)
		return ok && reply.Network == "eth" && reply.LastScannedBlock >= 50
	}, 5*time.Second, 20*time.Millisecond)
}

func TestPlanRangesCoversOverlapAndHead(t *testing.T) {
	s := New(model.Network{Name: "eth"}, chainsmock.New("eth"), nil, saga.Deps{}, config.ScannerConfig{
		BlockBatchSize:  10,
		ReorgOverlap:    15,
		DedupWindowSize: 100,
	})
	s.cursor = 95

	ranges := s.planRanges(130)

	require.NotEmpty(t, ranges)
	assert.Equal(t, uint64(81), ranges[0].from)
	assert.Equal(t, uint64(130), ranges[len(ranges)-1].to)
	for i := 1; i < len(ranges); i++ {
		assert.Equal(t, ranges[i-1].to+1, ranges[i].from)
		assert.LessOrEqual(t, ranges[i].to-ranges[i].from+1, uint64(10))
	}
}

func TestPlanRangesNearGenesis(t *testing.T) {
	s := New(model.Network{Name: "eth"}, chainsmock.New("eth"), nil, saga.Deps{}, config.ScannerConfig{
		BlockBatchSize:  10,
		ReorgOverlap:    15,
		DedupWindowSize: 100,
	})
	s.cursor = 5

	ranges := s.planRanges(12)

	require.NotEmpty(t, ranges)
	assert.Equal(t, uint64(1), ranges[0].from)
	assert.Equal(t, uint64(12), ranges[len(ranges)-1].to)
}

func TestInitCursorStartsBehindHeadOnFreshNetwork(t *testing.T) {
	adapter := chainsmock.New("eth")
	adapter.Head = 500

	s := New(model.Network{Name: "eth"}, adapter, nil, saga.Deps{}, config.ScannerConfig{
		BlockBatchSize:  10,
		DedupWindowSize: 100,
	})

	require.NoError(t, s.initCursor(context.Background()))
	assert.Equal(t, uint64(490), s.cursor)
}
