package sweeper

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/atomport/solver/internal/engine"
	"github.com/atomport/solver/internal/saga"
)

// Sweeper finds swaps stuck past their timelock and pushes them down the
// refund branch. Runs are stateless and safe to overlap: a refund that
// already happened is classified idempotently by the executor.
type Sweeper struct {
	engine   *engine.Engine
	sagaDeps saga.Deps
}

func New(eng *engine.Engine, sagaDeps saga.Deps) *Sweeper {
	return &Sweeper{
		engine:   eng,
		sagaDeps: sagaDeps,
	}
}

// Run is the cron entrypoint.
func (s *Sweeper) Run() {
	log := s.sagaDeps.Logger

	candidates, err := s.sagaDeps.Swaps.FindRefundCandidates(s.sagaDeps.DB, time.Now().Unix())
	if err != nil {
		log.Error("refund sweep query failed", map[string]string{
			"error": err.Error(),
		})
		s.sagaDeps.Metrics.RecordSweeperRun("error")
		return
	}

	swept := 0
	for i := range candidates {
		swap := candidates[i]
		processID := saga.ProcessID(swap.CommitID)

		// a live saga handles its own refund once told
		if s.engine.IsRunning(processID) {
			err := s.engine.Signal(processID, saga.SignalRefundRequested, nil)
			if err == nil {
				swept++
				continue
			}
			if !errors.Is(err, engine.ErrProcessNotFound) {
				log.Error("refund signal failed", map[string]string{
					"commit_id": swap.CommitID,
					"error":     err.Error(),
				})
				continue
			}
			// fell through: the saga exited between the check and the signal
		}

		err = s.engine.StartUnique(saga.NewForRefund(s.sagaDeps, &swap))
		if err != nil && !errors.Is(err, engine.ErrProcessAlreadyRunning) {
			log.Error("failed to start refund saga", map[string]string{
				"commit_id": swap.CommitID,
				"error":     err.Error(),
			})
			continue
		}
		swept++
	}

	if swept > 0 {
		log.Info("refund sweep finished", map[string]string{
			"candidates": strconv.Itoa(len(candidates)),
			"swept":      strconv.Itoa(swept),
		})
	}
	s.sagaDeps.Metrics.RecordSweeperRun("success")
}
