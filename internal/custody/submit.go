package custody

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/wallet-rotator/internal/chain"
)

// submit fills nonce, gas and chain id into tx and broadcasts it. The nonce is
// read right before signing, so callers must have waited for the sender's
// previous transaction.
func submit(ctx context.Context, gw chain.Gateway, tx chain.TxParams, gas uint64, gasPrice *big.Int, key string) (common.Hash, error) {
	nonce, err := gw.TransactionCount(ctx, tx.From)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	price := gasPrice
	if price == nil {
		if price, err = gw.GasPrice(ctx); err != nil {
			return common.Hash{}, fmt.Errorf("gas price: %w", err)
		}
	}
	id, err := gw.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain id: %w", err)
	}
	tx.Nonce = nonce
	tx.Gas = gas
	tx.GasPrice = new(big.Int).Set(price)
	tx.ChainID = id
	return gw.SignAndSend(ctx, tx, key)
}
