package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/atomport/solver/internal/monitoring"
	"github.com/atomport/solver/internal/utils/logger"
)

var (
	ErrProcessNotFound       = errors.New("engine: process not found")
	ErrProcessAlreadyRunning = errors.New("engine: process already running")
	ErrEngineStopped         = errors.New("engine: stopped")
)

// Process is a long-lived unit of work addressable by id. Run blocks until
// the process finishes or its context is cancelled; signals and calls
// arrive through the mailbox.
type Process interface {
	ID() string
	Kind() string
	Run(ctx context.Context, mailbox *Mailbox) error
}

type running struct {
	process Process
	runID   string
	mailbox *Mailbox
	cancel  context.CancelFunc
	done    chan struct{}
}

// Engine keeps exactly one running instance per process id. Sagas and
// scanners register here so event delivery and the admin surface can reach
// them by id.
type Engine struct {
	mu        sync.Mutex
	processes map[string]*running
	stopped   bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	metrics *monitoring.SolverMetrics
	logger  *logger.Logger
}

func New(metrics *monitoring.SolverMetrics, logger *logger.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		processes: make(map[string]*running),
		baseCtx:   ctx,
		cancel:    cancel,
		metrics:   metrics,
		logger:    logger,
	}
}

// StartUnique starts the process unless one with the same id is already
// running. The duplicate start is reported, not silently merged, so the
// caller can tell a fresh swap from a replayed event.
func (e *Engine) StartUnique(process Process) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	if _, exists := e.processes[process.ID()]; exists {
		e.mu.Unlock()
		return errors.Wrap(ErrProcessAlreadyRunning, process.ID())
	}

	ctx, cancel := context.WithCancel(e.baseCtx)
	run := &running{
		process: process,
		runID:   uuid.NewString(),
		mailbox: newMailbox(),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	e.processes[process.ID()] = run
	e.updateGauge(process.Kind())
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()

		e.logger.Info("process started", map[string]string{
			"process_id": process.ID(),
			"kind":       process.Kind(),
			"run_id":     run.runID,
		})

		err := process.Run(ctx, run.mailbox)

		e.mu.Lock()
		delete(e.processes, process.ID())
		e.updateGauge(process.Kind())
		e.mu.Unlock()
		close(run.done)

		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Error("process exited with error", map[string]string{
				"process_id": process.ID(),
				"kind":       process.Kind(),
				"run_id":     run.runID,
				"error":      err.Error(),
			})
			return
		}
		e.logger.Info("process finished", map[string]string{
			"process_id": process.ID(),
			"kind":       process.Kind(),
			"run_id":     run.runID,
		})
	}()

	return nil
}

// Signal delivers a fire-and-forget message. Delivery is ordered per
// process; a process that exits before picking it up drops it.
func (e *Engine) Signal(id string, name string, payload interface{}) error {
	run, err := e.lookup(id)
	if err != nil {
		return err
	}

	select {
	case run.mailbox.signals <- Signal{Name: name, Payload: payload}:
		return nil
	case <-run.done:
		return errors.Wrap(ErrProcessNotFound, id)
	}
}

// Call delivers a message and waits for the process to answer.
func (e *Engine) Call(ctx context.Context, id string, name string, payload interface{}) (interface{}, error) {
	run, err := e.lookup(id)
	if err != nil {
		return nil, err
	}

	call := &Call{
		Name:    name,
		Payload: payload,
		reply:   make(chan callResult, 1),
	}

	select {
	case run.mailbox.calls <- call:
	case <-run.done:
		return nil, errors.Wrap(ErrProcessNotFound, id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-call.reply:
		return res.value, res.err
	case <-run.done:
		return nil, errors.Wrap(ErrProcessNotFound, id)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Running lists ids of live processes of the given kind, every kind when
// empty.
func (e *Engine) Running(kind string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := []string{}
	for id, run := range e.processes {
		if kind == "" || run.process.Kind() == kind {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) IsRunning(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.processes[id]
	return ok
}

// Terminate cancels the process context and waits for Run to return.
func (e *Engine) Terminate(id string) error {
	run, err := e.lookup(id)
	if err != nil {
		return err
	}
	run.cancel()
	<-run.done
	return nil
}

// Shutdown cancels every process and waits for all of them to return.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Engine) lookup(id string) (*running, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, ok := e.processes[id]
	if !ok {
		return nil, errors.Wrap(ErrProcessNotFound, id)
	}
	return run, nil
}

// updateGauge is called with e.mu held.
func (e *Engine) updateGauge(kind string) {
	count := 0
	for _, run := range e.processes {
		if run.process.Kind() == kind {
			count++
		}
	}
	e.metrics.SetActiveProcesses(kind, float64(count))
}
