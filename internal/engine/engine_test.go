package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomport/solver/internal/monitoring"
	"github.com/atomport/solver/internal/types/environments"
	"github.com/atomport/solver/internal/utils/logger"
)

// echoProcess answers every call with its own payload and stops when told.
type echoProcess struct {
	id      string
	kind    string
	signals chan Signal
	started chan struct{}
}

func newEchoProcess(id, kind string) *echoProcess {
	return &echoProcess{
		id:      id,
		kind:    kind,
		signals: make(chan Signal, 16),
		started: make(chan struct{}),
	}
}

func (p *echoProcess) ID() string   { return p.id }
func (p *echoProcess) Kind() string { return p.kind }

func (p *echoProcess) Run(ctx context.Context, mailbox *Mailbox) error {
	close(p.started)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-mailbox.Signals():
			if sig.Name == "stop" {
				return nil
			}
			p.signals <- sig
		case call := <-mailbox.Calls():
			call.Reply(call.Payload, nil)
		}
	}
}

func newTestEngine() *Engine {
	return New(monitoring.NewSolverMetrics(), logger.New(environments.Test))
}

func TestStartUniqueRejectsDuplicate(t *testing.T) {
	eng := newTestEngine()
	defer eng.Shutdown()

	proc := newEchoProcess("p1", "worker")
	require.NoError(t, eng.StartUnique(proc))
	<-proc.started

	err := eng.StartUnique(newEchoProcess("p1", "worker"))
	assert.ErrorIs(t, err, ErrProcessAlreadyRunning)
	assert.True(t, eng.IsRunning("p1"))
}

func TestSignalDelivery(t *testing.T) {
	eng := newTestEngine()
	defer eng.Shutdown()

	proc := newEchoProcess("p1", "worker")
	require.NoError(t, eng.StartUnique(proc))
	<-proc.started

	require.NoError(t, eng.Signal("p1", "ping", 42))

	select {
	case sig := <-proc.signals:
		assert.Equal(t, "ping", sig.Name)
		assert.Equal(t, 42, sig.Payload)
	case <-time.After(time.Second):
		t.Fatal("signal not delivered")
	}
}

func TestSignalUnknownProcess(t *testing.T) {
	eng := newTestEngine()
	defer eng.Shutdown()

	err := eng.Signal("missing", "ping", nil)
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

func TestCallRoundtrip(t *testing.T) {
	eng := newTestEngine()
	defer eng.Shutdown()

	proc := newEchoProcess("p1", "worker")
	require.NoError(t, eng.StartUnique(proc))
	<-proc.started

	value, err := eng.Call(context.Background(), "p1", "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestCallTimesOutWhenProcessIgnoresMailbox(t *testing.T) {
	eng := newTestEngine()
	defer eng.Shutdown()

	started := make(chan struct{})
	proc := &funcProcess{id: "deaf", kind: "worker", run: func(ctx context.Context, _ *Mailbox) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	require.NoError(t, eng.StartUnique(proc))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := eng.Call(ctx, "deaf", "echo", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type funcProcess struct {
	id   string
	kind string
	run  func(ctx context.Context, mailbox *Mailbox) error
}

func (p *funcProcess) ID() string   { return p.id }
func (p *funcProcess) Kind() string { return p.kind }
func (p *funcProcess) Run(ctx context.Context, mailbox *Mailbox) error {
	return p.run(ctx, mailbox)
}

func TestIDReusableAfterExit(t *testing.T) {
	eng := newTestEngine()
	defer eng.Shutdown()

	proc := newEchoProcess("p1", "worker")
	require.NoError(t, eng.StartUnique(proc))
	<-proc.started

	require.NoError(t, eng.Signal("p1", "stop", nil))

	require.Eventually(t, func() bool {
		return !eng.IsRunning("p1")
	}, time.Second, 10*time.Millisecond)

	assert.NoError(t, eng.StartUnique(newEchoProcess("p1", "worker")))
}

func TestRunningFiltersByKind(t *testing.T) {
	eng := newTestEngine()
	defer eng.Shutdown()

	for _, p := range []*echoProcess{
		newEchoProcess("saga:b", "saga"),
		newEchoProcess("saga:a", "saga"),
		newEchoProcess("scanner:eth", "scanner"),
	} {
		require.NoError(t, eng.StartUnique(p))
		<-p.started
	}

	assert.Equal(t, []string{"saga:a", "saga:b"}, eng.Running("saga"))
	assert.Equal(t, []string{"scanner:eth"}, eng.Running("scanner"))
	assert.Equal(t, []string{"saga:a", "saga:b", "scanner:eth"}, eng.Running(""))
	assert.Empty(t, eng.Running("sweeper"))
}

func TestTerminateWaitsForExit(t *testing.T) {
	eng := newTestEngine()
	defer eng.Shutdown()

	proc := newEchoProcess("p1", "worker")
	require.NoError(t, eng.StartUnique(proc))
	<-proc.started

	require.NoError(t, eng.Terminate("p1"))
	assert.False(t, eng.IsRunning("p1"))

	err := eng.Terminate("p1")
	assert.ErrorIs(t, err, ErrProcessNotFound)
}

func TestShutdownStopsEverything(t *testing.T) {
	eng := newTestEngine()

	procs := []*echoProcess{
		newEchoProcess("p1", "worker"),
		newEchoProcess("p2", "worker"),
	}
	for _, p := range procs {
		require.NoError(t, eng.StartUnique(p))
		<-p.started
	}

	eng.Shutdown()

	assert.Empty(t, eng.Running(""))
	assert.ErrorIs(t, eng.StartUnique(newEchoProcess("p3", "worker")), ErrEngineStopped)
}
