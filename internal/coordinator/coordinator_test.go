package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/chains/chainsmock"
	"github.com/atomport/solver/internal/store/storemock"
	"github.com/atomport/solver/internal/types/environments"
	"github.com/atomport/solver/internal/utils/logger"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *chainsmock.MockAdapter, *storemock.State) {
	t.Helper()

	state, stores := storemock.New()
	adapter := chainsmock.New("eth")
	registry := chains.NewRegistry()
	registry.Register(adapter)

	coord := New(
		nil,
		stores.ReservedNonce,
		NewMemoryLocker(),
		registry,
		time.Second,
		logger.New(environments.Test),
	)
	return coord, adapter, state
}

func TestReserveAssignsSequentialNonces(t *testing.T) {
	coord, adapter, _ := newTestCoordinator(t)
	adapter.SetNextNonce("0xsolver", 7)

	first, err := coord.Reserve(context.Background(), "eth", "0xsolver", "abc:lock")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), first)

	second, err := coord.Reserve(context.Background(), "eth", "0xsolver", "abc:redeem")
	require.NoError(t, err)
	assert.Equal(t, uint64(8), second)
}

func TestReserveIsIdempotentPerReference(t *testing.T) {
	coord, adapter, state := newTestCoordinator(t)
	adapter.SetNextNonce("0xsolver", 3)

	first, err := coord.Reserve(context.Background(), "eth", "0xsolver", "abc:lock")
	require.NoError(t, err)

	second, err := coord.Reserve(context.Background(), "eth", "0xsolver", "abc:lock")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, state.NonceCount())
}

func TestReserveConcurrentSameReference(t *testing.T) {
	coord, _, state := newTestCoordinator(t)

	const workers = 16
	results := make([]uint64, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			nonce, err := coord.Reserve(context.Background(), "eth", "0xsolver", "abc:lock")
			assert.NoError(t, err)
			results[i] = nonce
		}()
	}
	wg.Wait()

	for _, nonce := range results {
		assert.Equal(t, results[0], nonce)
	}
	assert.Equal(t, 1, state.NonceCount())
}

func TestReserveUnknownNetwork(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	_, err := coord.Reserve(context.Background(), "mars", "0xsolver", "abc:lock")
	assert.ErrorIs(t, err, chains.ErrUnknownNetwork)
}

func TestMemoryLockerMutualExclusion(t *testing.T) {
	locker := NewMemoryLocker()

	release, err := locker.Acquire(context.Background(), "k", 50*time.Millisecond)
	require.NoError(t, err)

	_, err = locker.Acquire(context.Background(), "k", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()

	release2, err := locker.Acquire(context.Background(), "k", 50*time.Millisecond)
	require.NoError(t, err)
	release2()
}

func TestMemoryLockerReleaseIsIdempotent(t *testing.T) {
	locker := NewMemoryLocker()

	release, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)

	release()
	release()

	release2, err := locker.Acquire(context.Background(), "k", time.Second)
	require.NoError(t, err)
	release2()
}
