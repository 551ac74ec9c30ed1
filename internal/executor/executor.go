package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/coordinator"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/monitoring"
	"github.com/atomport/solver/internal/signer"
	"github.com/atomport/solver/internal/store/transaction"
	"github.com/atomport/solver/internal/utils/config"
	"github.com/atomport/solver/internal/utils/logger"
)

const transientRetries = 3

// ErrReverted reports a mined transaction whose execution failed on chain.
var ErrReverted = errors.New("executor: transaction reverted")

type Result struct {
	TxID    string
	Receipt *chains.Receipt
}

// Executor runs one HTLC transaction from request to confirmed receipt.
// Every step is safe to replay: published tx ids are checked before
// anything new is built, and nonces come back idempotently from the
// coordinator.
type Executor struct {
	db           *gorm.DB
	transactions transaction.IStore
	adapters     *chains.Registry
	signer       signer.ISigner
	coordinator  *coordinator.Coordinator
	metrics      *monitoring.SolverMetrics
	appConfig    *config.AppConfig
	logger       *logger.Logger
}

func New(
	db *gorm.DB,
	transactions transaction.IStore,
	adapters *chains.Registry,
	signer signer.ISigner,
	coordinator *coordinator.Coordinator,
	metrics *monitoring.SolverMetrics,
	appConfig *config.AppConfig,
	logger *logger.Logger,
) *Executor {
	return &Executor{
		db:           db,
		transactions: transactions,
		adapters:     adapters,
		signer:       signer,
		coordinator:  coordinator,
		metrics:      metrics,
		appConfig:    appConfig,
		logger:       logger,
	}
}

// ExecuteWithRetry owns the restart loop. Each restart re-enters Execute
// with the carried context; the attempt budget bounds the loop.
func (e *Executor) ExecuteWithRetry(ctx context.Context, swapID uint, req *chains.TransactionRequest) (*Result, error) {
	ec := &Context{}

	for {
		res, err := e.Execute(ctx, swapID, req, ec)
		if err == nil {
			e.metrics.RecordExecutorAttempt(req.Network, string(req.Type), "success")
			return res, nil
		}

		var restart *RestartError
		if errors.As(err, &restart) {
			e.metrics.RecordExecutorAttempt(req.Network, string(req.Type), "restart")
			if restart.Ctx.Attempts >= e.appConfig.Executor.MaxAttempts {
				return nil, errors.Wrapf(restart.Cause, "gave up after %d attempts", restart.Ctx.Attempts)
			}
			e.logger.Info("restarting transaction attempt", map[string]string{
				"commit_id": req.CommitID,
				"type":      string(req.Type),
				"attempt":   fmt.Sprintf("%d", restart.Ctx.Attempts),
				"cause":     restart.Cause.Error(),
			})
			ec = restart.Ctx
			continue
		}

		e.metrics.RecordExecutorAttempt(req.Network, string(req.Type), Classify(req.Type, err).String())
		return nil, err
	}
}

// Execute runs a single attempt. It returns a *RestartError when the chain
// state moved underneath the attempt, a plain error for fatal failures, and
// a Result when the transaction is confirmed (or its effect already exists).
func (e *Executor) Execute(ctx context.Context, swapID uint, req *chains.TransactionRequest, ec *Context) (*Result, error) {
	adapter, err := e.adapters.Get(req.Network)
	if err != nil {
		return nil, err
	}

	txn, err := e.ensureRow(swapID, req)
	if err != nil {
		return nil, err
	}
	if txn.Hash != "" {
		ec.recordPublished(txn.Hash)
	}

	// crash recovery: a previous run may have published before dying
	if res, done, err := e.checkPublished(ctx, adapter, txn, ec); done {
		return res, err
	}

	if ec.Fee == nil {
		var fee *chains.Fee
		err = e.retryActivity(ctx, req.Type, "estimate_fee", func() error {
			var ferr error
			fee, ferr = adapter.EstimateFee(ctx, req)
			return ferr
		})
		if err != nil {
			return e.dispose(err, ec, txn)
		}
		ec.Fee = fee
	}

	var nonce uint64
	err = e.retryActivity(ctx, req.Type, "reserve_nonce", func() error {
		var nerr error
		nonce, nerr = e.coordinator.Reserve(ctx, req.Network, req.FromAddress, referenceID(req, ec))
		return nerr
	})
	if err != nil {
		return e.dispose(err, ec, txn)
	}

	unsigned, err := adapter.BuildTransaction(ctx, req, nonce, ec.Fee)
	if err != nil {
		return e.dispose(err, ec, txn)
	}

	var sig []byte
	err = e.retryActivity(ctx, req.Type, "sign", func() error {
		var serr error
		sig, serr = e.signer.Sign(ctx, req.Network, req.FromAddress, unsigned.Payload)
		return serr
	})
	if err != nil {
		return e.dispose(err, ec, txn)
	}

	signed := &chains.SignedTx{
		Network:   unsigned.Network,
		From:      unsigned.From,
		Payload:   unsigned.Payload,
		Signature: sig,
		Native:    unsigned.Native,
	}

	err = e.retryActivity(ctx, req.Type, "simulate", func() error {
		return adapter.Simulate(ctx, signed)
	})
	if err != nil {
		return e.dispose(err, ec, txn)
	}

	var txID string
	err = e.retryActivity(ctx, req.Type, "publish", func() error {
		var perr error
		txID, perr = adapter.Publish(ctx, signed)
		return perr
	})
	if err != nil {
		return e.dispose(err, ec, txn)
	}

	ec.recordPublished(txID)
	if err := e.transactions.UpdateOnPublish(e.db, txn.ID, txID, nonce); err != nil {
		return nil, err
	}
	e.logger.Info("transaction published", map[string]string{
		"commit_id": req.CommitID,
		"type":      string(req.Type),
		"network":   req.Network,
		"tx_id":     txID,
		"nonce":     fmt.Sprintf("%d", nonce),
	})

	return e.awaitReceipt(ctx, adapter, txn, txID, ec)
}

func (e *Executor) ensureRow(swapID uint, req *chains.TransactionRequest) (*model.Transaction, error) {
	txn, err := e.transactions.Get(e.db, swapID, req.Type, req.Network)
	if err == nil {
		return txn, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return e.transactions.Create(e.db, &model.Transaction{
		SwapID:  swapID,
		Type:    req.Type,
		Network: req.Network,
		Status:  model.TransactionStatusInitiated,
	})
}

// checkPublished looks for a prior publish that already settled. A pending
// tx is waited on instead of replaced.
func (e *Executor) checkPublished(ctx context.Context, adapter chains.Adapter, txn *model.Transaction, ec *Context) (*Result, bool, error) {
	for _, txID := range ec.PublishedTxIDs {
		receipt, err := adapter.GetReceipt(ctx, txID)
		if err != nil {
			if errors.Is(err, chains.ErrTxNotFound) {
				// dropped from the mempool, build a replacement
				continue
			}
			res, derr := e.dispose(err, ec, txn)
			return res, true, derr
		}

		if receipt.Confirmed {
			if !receipt.Success {
				if merr := e.transactions.MarkFailed(e.db, txn.ID); merr != nil {
					return nil, true, merr
				}
				return nil, true, errors.Wrap(ErrReverted, txID)
			}
			if cerr := e.complete(txn, receipt); cerr != nil {
				return nil, true, cerr
			}
			return &Result{TxID: txID, Receipt: receipt}, true, nil
		}

		// still in flight from a previous run
		res, err := e.awaitReceipt(ctx, adapter, txn, txID, ec)
		return res, true, err
	}
	return nil, false, nil
}

func (e *Executor) awaitReceipt(ctx context.Context, adapter chains.Adapter, txn *model.Transaction, txID string, ec *Context) (*Result, error) {
	deadline := time.Now().Add(e.appConfig.Executor.ReceiptTimeout)

	for {
		receipt, err := adapter.GetReceipt(ctx, txID)
		if err != nil && !errors.Is(err, chains.ErrTxNotFound) {
			if class := Classify(txn.Type, err); class == ClassAlreadyDone || class == ClassFatal || class == ClassChainState {
				return e.dispose(err, ec, txn)
			}
			// transient read failures never abort a published tx
			e.logger.Debug("receipt poll failed", map[string]string{
				"tx_id": txID,
				"error": err.Error(),
			})
		}

		if err == nil && receipt.Confirmed {
			if !receipt.Success {
				if merr := e.transactions.MarkFailed(e.db, txn.ID); merr != nil {
					return nil, merr
				}
				return nil, errors.Wrap(ErrReverted, txID)
			}
			if cerr := e.complete(txn, receipt); cerr != nil {
				return nil, cerr
			}
			return &Result{TxID: txID, Receipt: receipt}, nil
		}

		if time.Now().After(deadline) {
			return e.dispose(chains.ErrNotConfirmed, ec, txn)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.appConfig.Executor.PollInterval):
		}
	}
}

func (e *Executor) complete(txn *model.Transaction, receipt *chains.Receipt) error {
	return e.transactions.MarkCompleted(
		e.db,
		txn.ID,
		receipt.Confirmations,
		receipt.FeePaid.String(),
		receipt.FeeAsset,
	)
}

// dispose turns a step failure into the attempt's outcome: an already-done
// effect succeeds, chain-state drift restarts, everything else propagates.
func (e *Executor) dispose(err error, ec *Context, txn *model.Transaction) (*Result, error) {
	switch Classify(txn.Type, err) {
	case ClassAlreadyDone:
		// the intended effect exists, possibly via someone else's tx
		if merr := e.transactions.MarkCompleted(e.db, txn.ID, 0, "0", ""); merr != nil {
			return nil, merr
		}
		res := &Result{}
		if n := len(ec.PublishedTxIDs); n > 0 {
			res.TxID = ec.PublishedTxIDs[n-1]
		}
		return res, nil

	case ClassChainState:
		restart := ec.next(err)
		if errors.Is(err, chains.ErrUnderpriced) || errors.Is(err, chains.ErrNotConfirmed) {
			// re-price on the next attempt
			restart.Ctx.Fee = nil
		}
		if errors.Is(err, chains.ErrNonceTooLow) {
			restart.Ctx.NonceEpoch++
		}
		return nil, restart

	default:
		return nil, err
	}
}

// retryActivity retries transient infrastructure failures in place with a
// short backoff. Classified outcomes (already done, chain state, fatal)
// return to the caller immediately.
func (e *Executor) retryActivity(ctx context.Context, txType model.TransactionType, name string, fn func() error) error {
	var err error
	for i := 0; i < transientRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if class := Classify(txType, err); class != ClassTransient && class != ClassUnknown {
			return err
		}
		if i == transientRetries-1 {
			break
		}

		e.logger.Debug("retrying activity", map[string]string{
			"activity": name,
			"error":    err.Error(),
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
		}
	}
	return errors.Wrapf(err, "activity %s failed after %d tries", name, transientRetries)
}

func referenceID(req *chains.TransactionRequest, ec *Context) string {
	ref := req.CommitID + ":" + string(req.Type)
	if ec.NonceEpoch > 0 {
		ref = fmt.Sprintf("%s:r%d", ref, ec.NonceEpoch)
	}
	return ref
}
