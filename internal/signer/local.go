package signer

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"

	"github.com/atomport/solver/internal/model"
)

// LocalSigner keeps raw keys in memory. Development and tests only.
type LocalSigner struct {
	// keys maps "network:address" to key material: hex secp256k1 for EVM
	// networks, base58 ed25519 for Solana.
	keys  map[string]string
	types map[string]model.NetworkType
}

func NewLocal(keys map[string]string, networkTypes map[string]model.NetworkType) *LocalSigner {
	if keys == nil {
		keys = make(map[string]string)
	}
	return &LocalSigner{keys: keys, types: networkTypes}
}

func (s *LocalSigner) Sign(ctx context.Context, network, address string, payload []byte) ([]byte, error) {
	raw, ok := s.keys[network+":"+address]
	if !ok {
		return nil, errors.Wrapf(ErrPermanent, "no key for %s on %s", address, network)
	}

	switch s.types[network] {
	case model.NetworkTypeEVM:
		key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return nil, errors.Wrap(ErrPermanent, err.Error())
		}
		return crypto.Sign(payload, key)

	case model.NetworkTypeSolana:
		key, err := solana.PrivateKeyFromBase58(raw)
		if err != nil {
			return nil, errors.Wrap(ErrPermanent, err.Error())
		}
		sig, err := key.Sign(payload)
		if err != nil {
			return nil, err
		}
		return sig[:], nil
	}

	return nil, errors.Wrapf(ErrPermanent, "unsupported network type for %s", network)
}

func (s *LocalSigner) Generate(ctx context.Context, network string) (string, error) {
	return "", errors.Wrap(ErrPermanent, "local signer cannot generate addresses")
}
