package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/engine"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/saga"
	"github.com/atomport/solver/internal/utils/config"
)

const (
	Kind = "event_scanner"

	CallStatus = "status"
)

func ProcessID(network string) string {
	return "scanner:" + network
}

// StatusReply answers the scanner's observability query.
type StatusReply struct {
	Network          string   `json:"network"`
	LastScannedBlock uint64   `json:"last_scanned_block"`
	Iterations       int      `json:"iterations"`
	ProcessedHashes  []string `json:"processed_hashes"`
}

type blockRange struct {
	from uint64
	to   uint64
}

// Scanner is the per-network durable process that discovers HTLC events
// and feeds them to swap sagas. One instance per network owns the cursor
// and the dedup window.
type Scanner struct {
	network  model.Network
	adapter  chains.Adapter
	engine   *engine.Engine
	sagaDeps saga.Deps
	scanCfg  config.ScannerConfig

	cursor     uint64
	seen       *dedupSet
	iterations int
}

// New takes the network row as a read-only snapshot; configuration changes
// require a scanner restart.
func New(network model.Network, adapter chains.Adapter, eng *engine.Engine, sagaDeps saga.Deps, scanCfg config.ScannerConfig) *Scanner {
	return &Scanner{
		network:  network,
		adapter:  adapter,
		engine:   eng,
		sagaDeps: sagaDeps,
		scanCfg:  scanCfg,
		seen:     newDedupSet(scanCfg.DedupWindowSize),
	}
}

func (s *Scanner) ID() string {
	return ProcessID(s.network.Name)
}

func (s *Scanner) Kind() string {
	return Kind
}

func (s *Scanner) Run(ctx context.Context, mailbox *engine.Mailbox) error {
	if err := s.initCursor(ctx); err != nil {
		return err
	}

	log := s.sagaDeps.Logger
	log.Info("scanner running", map[string]string{
		"network": s.network.Name,
		"cursor":  fmt.Sprintf("%d", s.cursor),
	})

	for {
		s.drainMailbox(mailbox)

		head, err := s.adapter.LastConfirmedBlock(ctx)
		if err != nil {
			log.Error("failed to read confirmed head", map[string]string{
				"network": s.network.Name,
				"error":   err.Error(),
			})
			if err := s.sleep(ctx, mailbox); err != nil {
				return err
			}
			continue
		}

		if s.cursor >= head {
			if err := s.sleep(ctx, mailbox); err != nil {
				return err
			}
			continue
		}

		ranges := s.planRanges(head)
		for start := 0; start < len(ranges); start += s.scanCfg.GroupSize {
			end := start + s.scanCfg.GroupSize
			if end > len(ranges) {
				end = len(ranges)
			}
			group := ranges[start:end]

			batches, err := s.fetchGroup(ctx, group)
			if err != nil {
				log.Error("event fetch failed, rewinding group", map[string]string{
					"network": s.network.Name,
					"from":    fmt.Sprintf("%d", group[0].from),
					"to":      fmt.Sprintf("%d", group[len(group)-1].to),
					"error":   err.Error(),
				})
				// back off before re-planning so a degraded RPC is not
				// hammered in a tight loop
				if serr := s.sleep(ctx, mailbox); serr != nil {
					return serr
				}
				break
			}

			// events dispatch only after the whole group fetched, so the
			// cursor never moves past an unread range
			for _, batch := range batches {
				s.dispatch(batch)
			}

			s.cursor = group[len(group)-1].to
			if err := s.checkpoint(); err != nil {
				return err
			}
			blocks := float64(group[len(group)-1].to - group[0].from + 1)
			s.sagaDeps.Metrics.RecordBlocksScanned(s.network.Name, blocks)
		}

		s.iterations++
		if s.iterations >= s.scanCfg.RebaseAfter {
			s.rebase()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// initCursor resumes from the persisted checkpoint, or starts one batch
// behind head on a brand new network.
func (s *Scanner) initCursor(ctx context.Context) error {
	if s.network.LastProcessedBlock > 0 {
		s.cursor = s.network.LastProcessedBlock
		return nil
	}

	head, err := s.adapter.LastConfirmedBlock(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to initialize scan cursor")
	}
	if head > s.scanCfg.BlockBatchSize {
		s.cursor = head - s.scanCfg.BlockBatchSize
	}
	return nil
}

// planRanges covers (cursor-overlap, head] in batch-sized chunks. The
// overlap re-scans recent blocks to tolerate reorgs and confirmation lag;
// the dedup window absorbs the duplicates this produces.
func (s *Scanner) planRanges(head uint64) []blockRange {
	from := s.cursor + 1
	if from > s.scanCfg.ReorgOverlap {
		from -= s.scanCfg.ReorgOverlap
	} else {
		from = 1
	}

	var ranges []blockRange
	for from <= head {
		to := from + s.scanCfg.BlockBatchSize - 1
		if to > head {
			to = head
		}
		ranges = append(ranges, blockRange{from: from, to: to})
		from = to + 1
	}
	return ranges
}

func (s *Scanner) fetchGroup(ctx context.Context, group []blockRange) ([]*chains.EventBatch, error) {
	batches := make([]*chains.EventBatch, len(group))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range group {
		i, r := i, r
		g.Go(func() error {
			batch, err := s.adapter.GetEvents(gctx, r.from, r.to)
			if err != nil {
				return errors.Wrapf(err, "blocks %d-%d", r.from, r.to)
			}
			batches[i] = batch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (s *Scanner) dispatch(batch *chains.EventBatch) {
	log := s.sagaDeps.Logger

	for i := range batch.Commits {
		event := batch.Commits[i]
		if !s.seen.Add(event.TxHash + ":" + event.CommitID) {
			continue
		}
		s.sagaDeps.Metrics.RecordEvent(s.network.Name, "commit")

		err := s.engine.StartUnique(saga.NewFromCommit(s.sagaDeps, &event))
		if err != nil {
			// redelivery of a known commit is the expected no-op
			if errors.Is(err, engine.ErrProcessAlreadyRunning) {
				continue
			}
			log.Error("failed to start swap saga", map[string]string{
				"network":   s.network.Name,
				"commit_id": event.CommitID,
				"error":     err.Error(),
			})
			continue
		}
		log.Info("commit event observed", map[string]string{
			"network":   s.network.Name,
			"commit_id": event.CommitID,
			"tx_hash":   event.TxHash,
		})
	}

	for i := range batch.Locks {
		event := batch.Locks[i]
		if !s.seen.Add(event.TxHash + ":" + event.CommitID) {
			continue
		}
		s.sagaDeps.Metrics.RecordEvent(s.network.Name, "lock")

		err := s.engine.Signal(saga.ProcessID(event.CommitID), saga.SignalLockCommitted, &event)
		if err != nil {
			// the saga may not exist yet or may already be done
			if errors.Is(err, engine.ErrProcessNotFound) {
				continue
			}
			log.Error("failed to signal swap saga", map[string]string{
				"network":   s.network.Name,
				"commit_id": event.CommitID,
				"error":     err.Error(),
			})
		}
	}
}

func (s *Scanner) checkpoint() error {
	return s.sagaDeps.Networks.UpdateLastProcessedBlock(s.sagaDeps.DB, s.network.Name, s.cursor)
}

// rebase drops the accumulated dedup window and iteration history, keeping
// only the numeric cursor. Bounds memory for a process that otherwise runs
// forever.
func (s *Scanner) rebase() {
	s.sagaDeps.Logger.Info("scanner rebasing", map[string]string{
		"network": s.network.Name,
		"cursor":  fmt.Sprintf("%d", s.cursor),
	})
	s.seen.Reset()
	s.iterations = 0
	s.sagaDeps.Metrics.RecordRebase(s.network.Name)
}

func (s *Scanner) sleep(ctx context.Context, mailbox *engine.Mailbox) error {
	timer := time.NewTimer(s.scanCfg.WaitInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case call := <-mailbox.Calls():
			s.handleCall(call)
		case <-mailbox.Signals():
			// scanners take no signals
		}
	}
}

func (s *Scanner) drainMailbox(mailbox *engine.Mailbox) {
	for {
		select {
		case call := <-mailbox.Calls():
			s.handleCall(call)
		case <-mailbox.Signals():
		default:
			return
		}
	}
}

func (s *Scanner) handleCall(call *engine.Call) {
	switch call.Name {
	case CallStatus:
		call.Reply(&StatusReply{
			Network:          s.network.Name,
			LastScannedBlock: s.cursor,
			Iterations:       s.iterations,
			ProcessedHashes:  s.seen.Keys(),
		}, nil)
	default:
		call.Reply(nil, errors.Errorf("scanner: unknown call %s", call.Name))
	}
}
