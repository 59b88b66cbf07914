package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Record is one (address, private key) pair of a wallet generation.
type Record struct {
	Address    string
	PrivateKey string
}

// Addr returns the record address as a go-ethereum address.
func (r Record) Addr() common.Address { return common.HexToAddress(r.Address) }

// Key parses the record private key (with or without 0x).
func (r Record) Key() (*ecdsa.PrivateKey, error) {
	h := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(r.PrivateKey), "0x"))
	if h == "" {
		return nil, errors.New("empty private key")
	}
	return gethcrypto.HexToECDSA(h)
}

// Verify checks that the private key derives the stored address.
func (r Record) Verify() error {
	if !common.IsHexAddress(r.Address) {
		return fmt.Errorf("%w: bad address %q", ErrInvalidArgument, r.Address)
	}
	prv, err := r.Key()
	if err != nil {
		return fmt.Errorf("%s: %w", r.Address, err)
	}
	if gethcrypto.PubkeyToAddress(prv.PublicKey) != r.Addr() {
		return fmt.Errorf("%w: %s", ErrKeyMismatch, r.Address)
	}
	return nil
}

// Validate rejects an empty generation and duplicate or malformed addresses.
func Validate(records []Record) error {
	if len(records) == 0 {
		return fmt.Errorf("%w: empty wallet set", ErrInvalidArgument)
	}
	seen := make(map[common.Address]int, len(records))
	for i, r := range records {
		if !common.IsHexAddress(r.Address) {
			return fmt.Errorf("%w: row %d bad address %q", ErrInvalidArgument, i, r.Address)
		}
		if j, dup := seen[r.Addr()]; dup {
			return fmt.Errorf("%w: rows %d and %d share address %s", ErrInvalidArgument, j, i, r.Addr().Hex())
		}
		seen[r.Addr()] = i
	}
	return nil
}

// Addresses returns the addresses of records in order.
func Addresses(records []Record) []common.Address {
	out := make([]common.Address, 0, len(records))
	for _, r := range records {
		out = append(out, r.Addr())
	}
	return out
}
