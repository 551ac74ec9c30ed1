package solana

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/utils/logger"
)

// instruction tags of the HTLC program
const (
	insLock   = byte(1)
	insRedeem = byte(2)
	insRefund = byte(3)
)

// HTLC state account layout: state byte, commit id, hashlock, timelock,
// amount in lamports.
const (
	stateLocked      = byte(2)
	htlcAccountSize  = 81
	lamportsPerSol   = 1_000_000_000
	feePerSignature  = 5000
	slotFinalityLag  = 32
)

// SolanaAdapter implements chains.Adapter for networks running the solver's
// HTLC program. Solana has no account nonce; NextNonce always reports zero
// and the reservation only serves idempotency. Commit discovery is not
// supported here: Solana routes are destination-side only, so GetEvents
// surfaces lock state accounts and never commits.
type SolanaAdapter struct {
	network model.Network
	client  *rpc.Client
	program solana.PublicKey
	logger  *logger.Logger
}

func New(network model.Network, logger *logger.Logger) (*SolanaAdapter, error) {
	program, err := solana.PublicKeyFromBase58(network.HTLCContractAddress)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid htlc program id for network %s", network.Name)
	}

	return &SolanaAdapter{
		network: network,
		client:  rpc.New(network.RPCEndpoint),
		program: program,
		logger:  logger,
	}, nil
}

func (a *SolanaAdapter) Network() string {
	return a.network.Name
}

func (a *SolanaAdapter) Type() model.NetworkType {
	return model.NetworkTypeSolana
}

func (a *SolanaAdapter) instructionData(req *chains.TransactionRequest) ([]byte, error) {
	commitID, err := decodeHash(req.CommitID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid commit id")
	}

	switch req.Type {
	case model.TransactionTypeLock:
		hashlock, err := decodeHash(req.Hashlock)
		if err != nil {
			return nil, errors.Wrap(err, "invalid hashlock")
		}
		data := make([]byte, 0, 1+32+32+8+8)
		data = append(data, insLock)
		data = append(data, commitID[:]...)
		data = append(data, hashlock[:]...)
		data = binary.LittleEndian.AppendUint64(data, uint64(req.Timelock))
		data = binary.LittleEndian.AppendUint64(data, uint64(req.Amount.Shift(9).IntPart()))
		return data, nil

	case model.TransactionTypeRedeem:
		secret, err := decodeHash(req.Secret)
		if err != nil {
			return nil, errors.Wrap(err, "invalid secret")
		}
		data := make([]byte, 0, 1+32+32)
		data = append(data, insRedeem)
		data = append(data, commitID[:]...)
		data = append(data, secret[:]...)
		return data, nil

	case model.TransactionTypeRefund:
		data := make([]byte, 0, 1+32)
		data = append(data, insRefund)
		data = append(data, commitID[:]...)
		return data, nil
	}

	return nil, errors.Errorf("unsupported transaction type %s on solana", req.Type)
}

func (a *SolanaAdapter) EstimateFee(ctx context.Context, req *chains.TransactionRequest) (*chains.Fee, error) {
	// flat per-signature fee; no gas market
	return &chains.Fee{
		Asset:  a.network.NativeAsset,
		Amount: decimal.New(feePerSignature, -9),
	}, nil
}

func (a *SolanaAdapter) NextNonce(ctx context.Context, address string) (uint64, error) {
	return 0, nil
}

func (a *SolanaAdapter) BuildTransaction(ctx context.Context, req *chains.TransactionRequest, nonce uint64, fee *chains.Fee) (*chains.UnsignedTx, error) {
	data, err := a.instructionData(req)
	if err != nil {
		return nil, err
	}

	payer, err := solana.PublicKeyFromBase58(req.FromAddress)
	if err != nil {
		return nil, errors.Wrap(err, "invalid solver address")
	}

	accounts := solana.AccountMetaSlice{
		&solana.AccountMeta{PublicKey: payer, IsSigner: true, IsWritable: true},
	}
	if req.ToAddress != "" {
		receiver, err := solana.PublicKeyFromBase58(req.ToAddress)
		if err != nil {
			return nil, errors.Wrap(err, "invalid receiver address")
		}
		accounts = append(accounts, &solana.AccountMeta{PublicKey: receiver, IsWritable: true})
	}

	recent, err := a.client.GetRecentBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, chains.MapNodeError(err)
	}

	builder := solana.NewTransactionBuilder()
	builder.AddInstruction(solana.NewInstruction(a.program, accounts, data))
	builder.SetRecentBlockHash(recent.Value.Blockhash)
	builder.SetFeePayer(payer)

	trx, err := builder.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build solana transaction")
	}

	payload, err := trx.Message.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize message")
	}

	return &chains.UnsignedTx{
		Network: a.network.Name,
		From:    req.FromAddress,
		Nonce:   nonce,
		Fee:     fee,
		Payload: payload,
		Native:  trx,
	}, nil
}

func (a *SolanaAdapter) withSignature(tx *chains.SignedTx) (*solana.Transaction, error) {
	trx, ok := tx.Native.(*solana.Transaction)
	if !ok {
		return nil, errors.New("solana: signed payload is not a solana transaction")
	}
	if len(tx.Signature) != 64 {
		return nil, errors.Errorf("solana: expected 64-byte signature, got %d", len(tx.Signature))
	}

	var sig solana.Signature
	copy(sig[:], tx.Signature)
	trx.Signatures = []solana.Signature{sig}
	return trx, nil
}

func (a *SolanaAdapter) Simulate(ctx context.Context, tx *chains.SignedTx) error {
	trx, err := a.withSignature(tx)
	if err != nil {
		return err
	}

	response, err := a.client.SimulateTransactionWithOpts(ctx, trx, &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return chains.MapNodeError(err)
	}
	if response.Err != nil {
		return chains.MapNodeError(fmt.Errorf("simulation failed: %v", response.Err))
	}
	return nil
}

func (a *SolanaAdapter) Publish(ctx context.Context, tx *chains.SignedTx) (string, error) {
	trx, err := a.withSignature(tx)
	if err != nil {
		return "", err
	}

	signature, err := a.client.SendTransactionWithOpts(ctx, trx, false, rpc.CommitmentFinalized)
	if err != nil {
		return "", chains.MapNodeError(err)
	}
	return signature.String(), nil
}

func (a *SolanaAdapter) GetReceipt(ctx context.Context, txID string) (*chains.Receipt, error) {
	signature, err := solana.SignatureFromBase58(txID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid transaction signature")
	}

	out, err := a.client.GetTransaction(ctx, signature, &rpc.GetTransactionOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return nil, chains.ErrTxNotFound
	}

	head, err := a.client.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, chains.MapNodeError(err)
	}

	confirmations := uint64(0)
	if head >= out.Slot {
		confirmations = head - out.Slot + 1
	}

	success := out.Meta == nil || out.Meta.Err == nil
	fee := uint64(feePerSignature)
	if out.Meta != nil {
		fee = out.Meta.Fee
	}

	return &chains.Receipt{
		TxID:          txID,
		Confirmed:     true, // finalized commitment implies finality
		Success:       success,
		BlockNumber:   out.Slot,
		Confirmations: confirmations,
		FeePaid:       decimal.New(int64(fee), -9),
		FeeAsset:      a.network.NativeAsset,
	}, nil
}

func (a *SolanaAdapter) LastConfirmedBlock(ctx context.Context) (uint64, error) {
	slot, err := a.client.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, chains.MapNodeError(err)
	}
	if slot < slotFinalityLag {
		return 0, nil
	}
	return slot - slotFinalityLag, nil
}

func (a *SolanaAdapter) GetEvents(ctx context.Context, fromBlock, toBlock uint64) (*chains.EventBatch, error) {
	results, err := a.client.GetProgramAccountsWithOpts(ctx, a.program, &rpc.GetProgramAccountsOpts{
		Encoding: solana.EncodingBase64,
		Filters: []rpc.RPCFilter{
			{DataSize: htlcAccountSize},
		},
	})
	if err != nil {
		return nil, chains.MapNodeError(err)
	}

	batch := &chains.EventBatch{}
	for _, account := range results {
		data := accountData(account.Account)
		if len(data) < htlcAccountSize || data[0] != stateLocked {
			continue
		}

		commitID := encodeHash(data[1:33])
		hashlock := encodeHash(data[33:65])
		timelock := binary.LittleEndian.Uint64(data[65:73])
		lamports := binary.LittleEndian.Uint64(data[73:81])

		batch.Locks = append(batch.Locks, model.HTLCLockEvent{
			TxHash:   account.Pubkey.String(),
			CommitID: commitID,
			Network:  a.network.Name,
			Hashlock: hashlock,
			Timelock: int64(timelock),
			Amount:   decimal.New(int64(lamports), -9),
		})
	}

	return batch, nil
}
