package signer

import (
	"context"

	"github.com/pkg/errors"
)

// ErrPermanent marks signer failures that no retry can fix (revoked key,
// unauthorized address). Everything else is treated as transient.
var ErrPermanent = errors.New("signer: permanent failure")

// ISigner is the custody boundary. Sign receives the chain-specific signable
// payload (an EVM signer digest, a Solana message) and returns the raw
// signature; it never sees private key material handling on this side.
type ISigner interface {
	Sign(ctx context.Context, network, address string, payload []byte) ([]byte, error)
	Generate(ctx context.Context, network string) (string, error)
}
