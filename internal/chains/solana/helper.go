package solana

import (
	"encoding/hex"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

func decodeHash(s string) ([32]byte, error) {
	var out [32]byte

	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, errors.Errorf("expected 32 bytes, got %d", len(raw))
	}

	copy(out[:], raw)
	return out, nil
}

func encodeHash(raw []byte) string {
	return "0x" + hex.EncodeToString(raw)
}

func accountData(account *rpc.Account) []byte {
	if account == nil {
		return nil
	}
	return account.Data.GetBinary()
}
