package wallet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Generate creates n fresh records from independent secp256k1 keys.
// Addresses are checksum-cased, keys are 0x-prefixed hex.
func Generate(n int) ([]Record, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: wallet count %d", ErrInvalidArgument, n)
	}
	out := make([]Record, 0, n)
	seen := make(map[common.Address]struct{}, n)
	for len(out) < n {
		prv, err := gethcrypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate key %d: %w", len(out), err)
		}
		addr := gethcrypto.PubkeyToAddress(prv.PublicKey)
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, Record{
			Address:    addr.Hex(),
			PrivateKey: hexutil.Encode(gethcrypto.FromECDSA(prv)),
		})
	}
	return out, nil
}
