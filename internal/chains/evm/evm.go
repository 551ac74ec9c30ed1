package evm

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/atomport/solver/internal/chains"
	"github.com/atomport/solver/internal/model"
	"github.com/atomport/solver/internal/utils/logger"
)

const htlcABI = `[
{"type":"function","name":"lock","inputs":[{"name":"id","type":"bytes32"},{"name":"hashlock","type":"bytes32"},{"name":"timelock","type":"uint256"},{"name":"receiver","type":"address"},{"name":"token","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[],"stateMutability":"payable"},
{"type":"function","name":"redeem","inputs":[{"name":"id","type":"bytes32"},{"name":"secret","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"refund","inputs":[{"name":"id","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"function","name":"addLockSig","inputs":[{"name":"id","type":"bytes32"},{"name":"signature","type":"bytes"},{"name":"timelock","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
{"type":"event","name":"TokenCommitted","inputs":[{"name":"id","type":"bytes32","indexed":true},{"name":"sender","type":"address","indexed":true},{"name":"srcAsset","type":"string","indexed":false},{"name":"amount","type":"uint256","indexed":false},{"name":"hashlock","type":"bytes32","indexed":false},{"name":"timelock","type":"uint256","indexed":false},{"name":"dstNetwork","type":"string","indexed":false},{"name":"dstAsset","type":"string","indexed":false},{"name":"dstAddress","type":"string","indexed":false}],"anonymous":false},
{"type":"event","name":"TokenLocked","inputs":[{"name":"id","type":"bytes32","indexed":true},{"name":"hashlock","type":"bytes32","indexed":false},{"name":"timelock","type":"uint256","indexed":false},{"name":"amount","type":"uint256","indexed":false}],"anonymous":false}
]`

type tokenCommittedEvent struct {
	Id         [32]byte
	Sender     common.Address
	SrcAsset   string
	Amount     *big.Int
	Hashlock   [32]byte
	Timelock   *big.Int
	DstNetwork string
	DstAsset   string
	DstAddress string
}

type tokenLockedEvent struct {
	Id       [32]byte
	Hashlock [32]byte
	Timelock *big.Int
	Amount   *big.Int
}

// EVMAdapter implements chains.Adapter against any EVM network running the
// solver's HTLC contract.
type EVMAdapter struct {
	network  model.Network
	tokens   map[string]model.Token
	client   *ethclient.Client
	chainID  *big.Int
	abi      abi.ABI
	contract *bind.BoundContract
	logger   *logger.Logger
}

func New(network model.Network, tokens []model.Token, logger *logger.Logger) (*EVMAdapter, error) {
	client, err := ethclient.Dial(network.RPCEndpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s rpc", network.Name)
	}

	chainID, ok := new(big.Int).SetString(network.ChainID, 10)
	if !ok {
		return nil, errors.Errorf("invalid chain id %q for network %s", network.ChainID, network.Name)
	}

	parsed, err := abi.JSON(strings.NewReader(htlcABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse htlc abi")
	}

	tokenMap := make(map[string]model.Token, len(tokens))
	for _, t := range tokens {
		tokenMap[t.Symbol] = t
	}

	contractAddr := common.HexToAddress(network.HTLCContractAddress)
	return &EVMAdapter{
		network:  network,
		tokens:   tokenMap,
		client:   client,
		chainID:  chainID,
		abi:      parsed,
		contract: bind.NewBoundContract(contractAddr, parsed, client, client, client),
		logger:   logger,
	}, nil
}

func (a *EVMAdapter) Network() string {
	return a.network.Name
}

func (a *EVMAdapter) Type() model.NetworkType {
	return model.NetworkTypeEVM
}

func (a *EVMAdapter) buildCalldata(req *chains.TransactionRequest) ([]byte, *big.Int, error) {
	id := common.HexToHash(req.CommitID)
	value := big.NewInt(0)

	switch req.Type {
	case model.TransactionTypeLock:
		tokenAddr, amountUnits, err := a.assetToUnits(req.Asset, req.Amount)
		if err != nil {
			return nil, nil, err
		}
		if tokenAddr == (common.Address{}) {
			value = amountUnits
		}
		hashlock := common.HexToHash(req.Hashlock)
		data, err := a.abi.Pack("lock", id, hashlock, big.NewInt(req.Timelock),
			common.HexToAddress(req.ToAddress), tokenAddr, amountUnits)
		return data, value, err

	case model.TransactionTypeRedeem:
		secret := common.HexToHash(req.Secret)
		data, err := a.abi.Pack("redeem", id, secret)
		return data, value, err

	case model.TransactionTypeRefund:
		data, err := a.abi.Pack("refund", id)
		return data, value, err

	case model.TransactionTypeAddLockSig:
		data, err := a.abi.Pack("addLockSig", id, req.Signature, big.NewInt(req.Timelock))
		return data, value, err
	}

	return nil, nil, errors.Errorf("unsupported transaction type %s", req.Type)
}

func (a *EVMAdapter) assetToUnits(asset string, amount decimal.Decimal) (common.Address, *big.Int, error) {
	if asset == a.network.NativeAsset {
		return common.Address{}, amount.Shift(18).BigInt(), nil
	}

	token, ok := a.tokens[asset]
	if !ok {
		return common.Address{}, nil, errors.Errorf("unknown asset %s on network %s", asset, a.network.Name)
	}
	return common.HexToAddress(token.ContractAddress), amount.Shift(int32(token.Decimals)).BigInt(), nil
}

func (a *EVMAdapter) EstimateFee(ctx context.Context, req *chains.TransactionRequest) (*chains.Fee, error) {
	data, value, err := a.buildCalldata(req)
	if err != nil {
		return nil, err
	}

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, chains.MapNodeError(err)
	}

	contractAddr := common.HexToAddress(a.network.HTLCContractAddress)
	gasLimit, err := a.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  common.HexToAddress(req.FromAddress),
		To:    &contractAddr,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, chains.MapNodeError(err)
	}

	feeWei := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(gasLimit))
	return &chains.Fee{
		Asset:    a.network.NativeAsset,
		Amount:   decimal.NewFromBigInt(feeWei, -18),
		GasLimit: gasLimit,
		GasPrice: gasPrice,
	}, nil
}

func (a *EVMAdapter) NextNonce(ctx context.Context, address string) (uint64, error) {
	nonce, err := a.client.PendingNonceAt(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, chains.MapNodeError(err)
	}
	return nonce, nil
}

func (a *EVMAdapter) BuildTransaction(ctx context.Context, req *chains.TransactionRequest, nonce uint64, fee *chains.Fee) (*chains.UnsignedTx, error) {
	data, value, err := a.buildCalldata(req)
	if err != nil {
		return nil, err
	}

	contractAddr := common.HexToAddress(a.network.HTLCContractAddress)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: fee.GasPrice,
		Gas:      fee.GasLimit,
		To:       &contractAddr,
		Value:    value,
		Data:     data,
	})

	digest := types.LatestSignerForChainID(a.chainID).Hash(tx)
	return &chains.UnsignedTx{
		Network: a.network.Name,
		From:    req.FromAddress,
		Nonce:   nonce,
		Fee:     fee,
		Payload: digest.Bytes(),
		Native:  tx,
	}, nil
}

func (a *EVMAdapter) Simulate(ctx context.Context, tx *chains.SignedTx) error {
	native, ok := tx.Native.(*types.Transaction)
	if !ok {
		return errors.New("evm: signed payload is not an evm transaction")
	}

	_, err := a.client.CallContract(ctx, ethereum.CallMsg{
		From:     common.HexToAddress(tx.From),
		To:       native.To(),
		Gas:      native.Gas(),
		GasPrice: native.GasPrice(),
		Value:    native.Value(),
		Data:     native.Data(),
	}, nil)
	return chains.MapNodeError(err)
}

func (a *EVMAdapter) Publish(ctx context.Context, tx *chains.SignedTx) (string, error) {
	native, ok := tx.Native.(*types.Transaction)
	if !ok {
		return "", errors.New("evm: signed payload is not an evm transaction")
	}

	signed, err := native.WithSignature(types.LatestSignerForChainID(a.chainID), tx.Signature)
	if err != nil {
		return "", errors.Wrap(err, "evm: failed to attach signature")
	}

	if err := a.client.SendTransaction(ctx, signed); err != nil {
		mapped := chains.MapNodeError(err)
		// "already known" means a previous attempt landed in the pool;
		// the hash is still the tracking handle
		if errors.Is(mapped, chains.ErrAlreadyKnown) {
			return signed.Hash().Hex(), nil
		}
		return "", mapped
	}
	return signed.Hash().Hex(), nil
}

func (a *EVMAdapter) GetReceipt(ctx context.Context, txID string) (*chains.Receipt, error) {
	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(txID))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, chains.ErrTxNotFound
		}
		return nil, chains.MapNodeError(err)
	}

	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return nil, chains.MapNodeError(err)
	}

	blockNumber := receipt.BlockNumber.Uint64()
	confirmations := uint64(0)
	if head >= blockNumber {
		confirmations = head - blockNumber + 1
	}

	feeWei := new(big.Int).Mul(receipt.EffectiveGasPrice, new(big.Int).SetUint64(receipt.GasUsed))
	return &chains.Receipt{
		TxID:          txID,
		Confirmed:     confirmations >= a.network.FinalityConfirmations,
		Success:       receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber:   blockNumber,
		Confirmations: confirmations,
		FeePaid:       decimal.NewFromBigInt(feeWei, -18),
		FeeAsset:      a.network.NativeAsset,
	}, nil
}

func (a *EVMAdapter) LastConfirmedBlock(ctx context.Context) (uint64, error) {
	head, err := a.client.BlockNumber(ctx)
	if err != nil {
		return 0, chains.MapNodeError(err)
	}
	if head < a.network.FinalityConfirmations {
		return 0, nil
	}
	return head - a.network.FinalityConfirmations, nil
}

func (a *EVMAdapter) GetEvents(ctx context.Context, fromBlock, toBlock uint64) (*chains.EventBatch, error) {
	logs, err := a.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(a.network.HTLCContractAddress)},
	})
	if err != nil {
		return nil, chains.MapNodeError(err)
	}

	batch := &chains.EventBatch{}
	committedTopic := a.abi.Events["TokenCommitted"].ID
	lockedTopic := a.abi.Events["TokenLocked"].ID

	for _, lg := range logs {
		if len(lg.Topics) == 0 {
			continue
		}

		switch lg.Topics[0] {
		case committedTopic:
			var ev tokenCommittedEvent
			if err := a.contract.UnpackLog(&ev, "TokenCommitted", lg); err != nil {
				a.logger.Error("failed to unpack TokenCommitted log", map[string]string{
					"network": a.network.Name,
					"tx_hash": lg.TxHash.Hex(),
					"error":   err.Error(),
				})
				continue
			}
			batch.Commits = append(batch.Commits, model.HTLCCommitEvent{
				TxHash:             lg.TxHash.Hex(),
				CommitID:           common.BytesToHash(ev.Id[:]).Hex(),
				SourceNetwork:      a.network.Name,
				SourceAsset:        ev.SrcAsset,
				SourceAddress:      ev.Sender.Hex(),
				DestinationNetwork: ev.DstNetwork,
				DestinationAsset:   ev.DstAsset,
				DestinationAddress: ev.DstAddress,
				Amount:             a.unitsToAmount(ev.SrcAsset, ev.Amount),
				Hashlock:           common.BytesToHash(ev.Hashlock[:]).Hex(),
				Timelock:           ev.Timelock.Int64(),
			})

		case lockedTopic:
			var ev tokenLockedEvent
			if err := a.contract.UnpackLog(&ev, "TokenLocked", lg); err != nil {
				a.logger.Error("failed to unpack TokenLocked log", map[string]string{
					"network": a.network.Name,
					"tx_hash": lg.TxHash.Hex(),
					"error":   err.Error(),
				})
				continue
			}
			batch.Locks = append(batch.Locks, model.HTLCLockEvent{
				TxHash:   lg.TxHash.Hex(),
				CommitID: common.BytesToHash(ev.Id[:]).Hex(),
				Network:  a.network.Name,
				Hashlock: common.BytesToHash(ev.Hashlock[:]).Hex(),
				Timelock: ev.Timelock.Int64(),
				Amount:   decimal.NewFromBigInt(ev.Amount, -18),
			})
		}
	}

	return batch, nil
}

func (a *EVMAdapter) unitsToAmount(asset string, units *big.Int) decimal.Decimal {
	if token, ok := a.tokens[asset]; ok {
		return decimal.NewFromBigInt(units, -int32(token.Decimals))
	}
	return decimal.NewFromBigInt(units, -18)
}

// Close releases the underlying RPC connection.
func (a *EVMAdapter) Close() {
	a.client.Close()
}
