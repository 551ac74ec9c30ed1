package saga

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/engine"
	"github.com/atomport/solver/internal/executor"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/monitoring"
	"github.com/atomport/solver/internal/quoting"
	networkstore "github.com/atomport/solver/internal/store/network"
	swapstore "github.com/atomport/solver/internal/store/swap"
	"github.com/atomport/solver/internal/utils/logger"
)

var (
	ErrSwapNotFound = errors.New("saga: swap not found")
	ErrNoRoute      = errors.New("saga: no enabled route for pair")
)

// Deps bundles the collaborators every saga instance shares.
type Deps struct {
	DB       *gorm.DB
	Swaps    swapstore.IStore
	Networks networkstore.IStore
	Quoter   quoting.IQuote
	Executor *executor.Executor
	Metrics  *monitoring.SolverMetrics
	Logger   *logger.Logger
}

// SwapSaga drives one swap from commit to completion or refund. The swap
// row is the durable state: every transition is persisted before the next
// step runs, so a restarted process resumes from the recorded status.
type SwapSaga struct {
	deps  Deps
	event *model.HTLCCommitEvent

	swap       *model.Swap
	sourceNet  *model.Network
	destNet    *model.Network
	lockSig    []byte
	secret     string
	refundOnly bool
}

// NewFromCommit builds the saga for a freshly observed commit event.
func NewFromCommit(deps Deps, event *model.HTLCCommitEvent) *SwapSaga {
	return &SwapSaga{deps: deps, event: event}
}

// NewFromSwap rebuilds the saga for an existing swap row, used on process
// recovery after a restart.
func NewFromSwap(deps Deps, swap *model.Swap) *SwapSaga {
	return &SwapSaga{deps: deps, swap: swap}
}

// NewForRefund builds a saga that goes straight to the refund branch. The
// sweeper uses this for swaps whose own saga is no longer running.
func NewForRefund(deps Deps, swap *model.Swap) *SwapSaga {
	return &SwapSaga{deps: deps, swap: swap, refundOnly: true}
}

func (s *SwapSaga) ID() string {
	if s.swap != nil {
		return ProcessID(s.swap.CommitID)
	}
	return ProcessID(s.event.CommitID)
}

func (s *SwapSaga) Kind() string {
	return Kind
}

func (s *SwapSaga) Run(ctx context.Context, mailbox *engine.Mailbox) error {
	if err := s.load(); err != nil {
		return err
	}
	if s.swap.Status.Terminal() {
		return nil
	}
	if err := s.loadNetworks(); err != nil {
		return err
	}

	if s.refundOnly && s.swap.Status != model.SwapStatusRefunding {
		if err := s.transition(model.SwapStatusRefunding); err != nil {
			return err
		}
	}

	for !s.swap.Status.Terminal() {
		var err error

		switch s.swap.Status {
		case model.SwapStatusAwaitingLock:
			err = s.stepLock(ctx)
		case model.SwapStatusAwaitingLockConfirmation:
			err = s.stepAwaitLockConfirmation(ctx, mailbox)
		case model.SwapStatusAwaitingSecret:
			err = s.stepAwaitSecretOrSignature(ctx, mailbox)
		case model.SwapStatusRedeeming:
			err = s.stepRedeem(ctx)
		case model.SwapStatusRefunding:
			err = s.stepRefund(ctx)
		default:
			err = errors.Errorf("saga: unhandled status %s", s.swap.Status)
		}

		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SwapSaga) load() error {
	commitID := ""
	if s.swap != nil {
		commitID = s.swap.CommitID
	} else {
		commitID = s.event.CommitID
	}

	existing, err := s.deps.Swaps.GetByCommitID(s.deps.DB, commitID)
	if err == nil {
		s.swap = existing
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if s.event == nil {
		return errors.Wrap(ErrSwapNotFound, commitID)
	}

	created, err := s.deps.Swaps.Create(s.deps.DB, &model.Swap{
		CommitID:           s.event.CommitID,
		SourceNetwork:      s.event.SourceNetwork,
		SourceAsset:        s.event.SourceAsset,
		SourceAddress:      s.event.SourceAddress,
		DestinationNetwork: s.event.DestinationNetwork,
		DestinationAsset:   s.event.DestinationAsset,
		DestinationAddress: s.event.DestinationAddress,
		SourceAmount:       s.event.Amount.String(),
		Hashlock:           s.event.Hashlock,
		Timelock:           s.event.Timelock,
		Status:             model.SwapStatusAwaitingLock,
	})
	if err != nil {
		// a concurrent start already created the row
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			s.swap, err = s.deps.Swaps.GetByCommitID(s.deps.DB, commitID)
			return err
		}
		return err
	}
	s.swap = created
	return nil
}

func (s *SwapSaga) loadNetworks() error {
	src, err := s.deps.Networks.GetByName(s.deps.DB, s.swap.SourceNetwork)
	if err != nil {
		return errors.Wrapf(err, "source network %s", s.swap.SourceNetwork)
	}
	dst, err := s.deps.Networks.GetByName(s.deps.DB, s.swap.DestinationNetwork)
	if err != nil {
		return errors.Wrapf(err, "destination network %s", s.swap.DestinationNetwork)
	}
	s.sourceNet = src
	s.destNet = dst
	return nil
}

// stepLock quotes the swap and commits solver liquidity on the destination
// chain under the source hashlock and timelock.
func (s *SwapSaga) stepLock(ctx context.Context) error {
	if s.swap.TimelockExpired(time.Now()) {
		return s.transition(model.SwapStatusRefunding)
	}

	if s.swap.DestinationAmount == "" {
		if err := s.quote(); err != nil {
			s.deps.Logger.Error("quoting failed", map[string]string{
				"commit_id": s.swap.CommitID,
				"error":     err.Error(),
			})
			return s.transition(model.SwapStatusFailed)
		}
	}

	amount, err := decimal.NewFromString(s.swap.DestinationAmount)
	if err != nil {
		return err
	}

	_, err = s.deps.Executor.ExecuteWithRetry(ctx, s.swap.ID, &chains.TransactionRequest{
		Type:        model.TransactionTypeLock,
		Network:     s.swap.DestinationNetwork,
		CommitID:    s.swap.CommitID,
		FromAddress: s.destNet.SolverAddress,
		ToAddress:   s.swap.DestinationAddress,
		Asset:       s.swap.DestinationAsset,
		Amount:      amount,
		Hashlock:    s.swap.Hashlock,
		Timelock:    s.swap.Timelock,
	})
	if err != nil {
		// no liquidity was committed, there is nothing to compensate
		s.deps.Logger.Error("destination lock failed", map[string]string{
			"commit_id": s.swap.CommitID,
			"error":     err.Error(),
		})
		return s.transition(model.SwapStatusFailed)
	}

	return s.transition(model.SwapStatusAwaitingLockConfirmation)
}

func (s *SwapSaga) quote() error {
	route, err := s.deps.Networks.GetRoute(
		s.deps.DB,
		s.swap.SourceNetwork, s.swap.SourceAsset,
		s.swap.DestinationNetwork, s.swap.DestinationAsset,
	)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrapf(ErrNoRoute, "%s/%s -> %s/%s",
				s.swap.SourceNetwork, s.swap.SourceAsset,
				s.swap.DestinationNetwork, s.swap.DestinationAsset)
		}
		return err
	}
	if !route.Enabled {
		return errors.Wrap(ErrNoRoute, "route disabled")
	}

	sourceAmount, err := decimal.NewFromString(s.swap.SourceAmount)
	if err != nil {
		return err
	}
	q, err := s.deps.Quoter.Quote(route, sourceAmount)
	if err != nil {
		return err
	}

	if err := s.deps.Swaps.SetQuote(s.deps.DB, s.swap.CommitID, q.DestinationAmount.String(), q.FeeAmount.String()); err != nil {
		return err
	}
	s.swap.DestinationAmount = q.DestinationAmount.String()
	s.swap.FeeAmount = q.FeeAmount.String()
	return nil
}

// stepAwaitLockConfirmation suspends until the destination scanner reports
// the lock as confirmed, the timelock expires, or a refund is requested.
func (s *SwapSaga) stepAwaitLockConfirmation(ctx context.Context, mailbox *engine.Mailbox) error {
	expiry := s.timelockTimer()
	defer expiry.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-expiry.C:
			return s.transition(model.SwapStatusRefunding)

		case sig := <-mailbox.Signals():
			switch sig.Name {
			case SignalLockCommitted:
				event, ok := sig.Payload.(*model.HTLCLockEvent)
				if !ok || event.CommitID != s.swap.CommitID {
					continue
				}
				if !strings.EqualFold(event.Hashlock, s.swap.Hashlock) {
					s.deps.Logger.Error("lock event hashlock mismatch", map[string]string{
						"commit_id": s.swap.CommitID,
						"expected":  s.swap.Hashlock,
						"got":       event.Hashlock,
					})
					continue
				}
				return s.transition(model.SwapStatusAwaitingSecret)

			case SignalRefundRequested:
				return s.transition(model.SwapStatusRefunding)
			}

		case call := <-mailbox.Calls():
			s.handleCall(call)
		}
	}
}

// stepAwaitSecretOrSignature gates the redeem step. Chains that require a
// pre-authorized unlock signature suspend here until the update arrives and
// its add-lock-sig transaction confirms; everyone else falls through.
func (s *SwapSaga) stepAwaitSecretOrSignature(ctx context.Context, mailbox *engine.Mailbox) error {
	if !s.destNet.RequiresLockSignature || s.signatureApplied() {
		return s.transition(model.SwapStatusRedeeming)
	}

	if s.lockSig == nil {
		if err := s.waitForSignature(ctx, mailbox); err != nil {
			return err
		}
		if s.swap.Status != model.SwapStatusAwaitingSecret {
			return nil
		}
	}

	_, err := s.deps.Executor.ExecuteWithRetry(ctx, s.swap.ID, &chains.TransactionRequest{
		Type:        model.TransactionTypeAddLockSig,
		Network:     s.swap.DestinationNetwork,
		CommitID:    s.swap.CommitID,
		FromAddress: s.destNet.SolverAddress,
		Hashlock:    s.swap.Hashlock,
		Timelock:    s.swap.Timelock,
		Signature:   s.lockSig,
	})
	if err != nil {
		s.deps.Logger.Error("add lock signature failed", map[string]string{
			"commit_id": s.swap.CommitID,
			"error":     err.Error(),
		})
		return s.transition(model.SwapStatusRefunding)
	}

	return s.transition(model.SwapStatusRedeeming)
}

func (s *SwapSaga) waitForSignature(ctx context.Context, mailbox *engine.Mailbox) error {
	expiry := s.timelockTimer()
	defer expiry.Stop()

	for s.lockSig == nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-expiry.C:
			return s.transition(model.SwapStatusRefunding)
		case sig := <-mailbox.Signals():
			if sig.Name == SignalRefundRequested {
				return s.transition(model.SwapStatusRefunding)
			}
		case call := <-mailbox.Calls():
			s.handleCall(call)
		}
	}
	return nil
}

// signatureApplied reports whether the add-lock-sig leg already confirmed
// in a previous run.
func (s *SwapSaga) signatureApplied() bool {
	for _, txn := range s.swap.Transactions {
		if txn.Type == model.TransactionTypeAddLockSig && txn.Status == model.TransactionStatusCompleted {
			return true
		}
	}
	return false
}

// stepRedeem issues both redeem legs concurrently and waits for both. A
// restart mid-step re-enters here and replays both legs idempotently.
func (s *SwapSaga) stepRedeem(ctx context.Context) error {
	destAmount, err := decimal.NewFromString(s.swap.DestinationAmount)
	if err != nil {
		return err
	}
	sourceAmount, err := decimal.NewFromString(s.swap.SourceAmount)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// source redeem pays the solver
	g.Go(func() error {
		_, err := s.deps.Executor.ExecuteWithRetry(gctx, s.swap.ID, &chains.TransactionRequest{
			Type:        model.TransactionTypeRedeem,
			Network:     s.swap.SourceNetwork,
			CommitID:    s.swap.CommitID,
			FromAddress: s.sourceNet.SolverAddress,
			ToAddress:   s.sourceNet.SolverAddress,
			Asset:       s.swap.SourceAsset,
			Amount:      sourceAmount,
			Hashlock:    s.swap.Hashlock,
			Timelock:    s.swap.Timelock,
			Secret:      s.secret,
		})
		return errors.Wrap(err, "source redeem")
	})

	// destination redeem pays the user
	g.Go(func() error {
		_, err := s.deps.Executor.ExecuteWithRetry(gctx, s.swap.ID, &chains.TransactionRequest{
			Type:        model.TransactionTypeRedeem,
			Network:     s.swap.DestinationNetwork,
			CommitID:    s.swap.CommitID,
			FromAddress: s.destNet.SolverAddress,
			ToAddress:   s.swap.DestinationAddress,
			Asset:       s.swap.DestinationAsset,
			Amount:      destAmount,
			Hashlock:    s.swap.Hashlock,
			Timelock:    s.swap.Timelock,
			Secret:      s.secret,
		})
		return errors.Wrap(err, "destination redeem")
	})

	if err := g.Wait(); err != nil {
		s.deps.Logger.Error("redeem failed", map[string]string{
			"commit_id": s.swap.CommitID,
			"error":     err.Error(),
		})
		return s.transition(model.SwapStatusRefunding)
	}

	if err := s.deps.Swaps.MarkCompleted(s.deps.DB, s.swap.CommitID); err != nil {
		return err
	}
	s.swap.Status = model.SwapStatusCompleted
	s.deps.Metrics.RecordSagaTransition(string(model.SwapStatusCompleted))
	s.deps.Logger.Info("swap completed", map[string]string{
		"commit_id": s.swap.CommitID,
	})
	return nil
}

// stepRefund compensates the destination lock, the only leg holding solver
// funds. A lock that never happened leaves nothing to claw back.
func (s *SwapSaga) stepRefund(ctx context.Context) error {
	if s.lockedOnDestination() {
		amount, err := decimal.NewFromString(s.swap.DestinationAmount)
		if err != nil {
			amount = decimal.Zero
		}

		_, err = s.deps.Executor.ExecuteWithRetry(ctx, s.swap.ID, &chains.TransactionRequest{
			Type:        model.TransactionTypeRefund,
			Network:     s.swap.DestinationNetwork,
			CommitID:    s.swap.CommitID,
			FromAddress: s.destNet.SolverAddress,
			ToAddress:   s.destNet.SolverAddress,
			Asset:       s.swap.DestinationAsset,
			Amount:      amount,
			Hashlock:    s.swap.Hashlock,
			Timelock:    s.swap.Timelock,
		})
		if err != nil {
			// "already claimed" lands here: the HTLC was redeemed, there
			// is nothing left to refund and nothing more this saga can do
			s.deps.Logger.Error("refund failed", map[string]string{
				"commit_id": s.swap.CommitID,
				"error":     err.Error(),
			})
			return s.transition(model.SwapStatusFailed)
		}
	}

	return s.transition(model.SwapStatusRefunded)
}

func (s *SwapSaga) lockedOnDestination() bool {
	for _, txn := range s.swap.Transactions {
		if txn.Type == model.TransactionTypeLock && txn.Network == s.swap.DestinationNetwork {
			return txn.Status == model.TransactionStatusCompleted || txn.Hash != ""
		}
	}
	return false
}

func (s *SwapSaga) handleCall(call *engine.Call) {
	switch call.Name {
	case CallStatus:
		call.Reply(s.statusReply(), nil)

	case CallAddLockSignature:
		req, ok := call.Payload.(*AddLockSignatureRequest)
		if !ok {
			call.Reply(nil, errors.New("saga: malformed add lock signature payload"))
			return
		}
		sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
		if err != nil || len(sig) == 0 {
			call.Reply(nil, errors.New("saga: signature is not valid hex"))
			return
		}
		s.lockSig = sig
		if req.Secret != "" {
			s.secret = req.Secret
		}
		call.Reply(true, nil)

	default:
		call.Reply(nil, errors.Errorf("saga: unknown call %s", call.Name))
	}
}

func (s *SwapSaga) statusReply() *StatusReply {
	reply := &StatusReply{
		CommitID:           s.swap.CommitID,
		Status:             s.swap.Status,
		SourceNetwork:      s.swap.SourceNetwork,
		DestinationNetwork: s.swap.DestinationNetwork,
		SourceAmount:       s.swap.SourceAmount,
		DestinationAmount:  s.swap.DestinationAmount,
		Timelock:           s.swap.Timelock,
	}
	for _, txn := range s.swap.Transactions {
		reply.Transactions = append(reply.Transactions, TransactionStatusItem{
			Type:    txn.Type,
			Network: txn.Network,
			Hash:    txn.Hash,
			Status:  txn.Status,
		})
	}
	return reply
}

func (s *SwapSaga) transition(status model.SwapStatus) error {
	if err := s.deps.Swaps.UpdateStatus(s.deps.DB, s.swap.CommitID, status); err != nil {
		return err
	}
	s.deps.Logger.Info("swap status transition", map[string]string{
		"commit_id": s.swap.CommitID,
		"from":      string(s.swap.Status),
		"to":        string(status),
	})
	s.swap.Status = status
	s.deps.Metrics.RecordSagaTransition(string(status))

	// transaction rows may have changed during the step that just ended
	if fresh, err := s.deps.Swaps.GetByCommitID(s.deps.DB, s.swap.CommitID); err == nil {
		s.swap = fresh
	}
	return nil
}

func (s *SwapSaga) timelockTimer() *time.Timer {
	until := time.Until(time.Unix(s.swap.Timelock, 0))
	if until < 0 {
		until = 0
	}
	return time.NewTimer(until)
}
