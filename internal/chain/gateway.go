// Package chain is the narrow boundary between the custody engine and an
// EVM JSON-RPC node: balances, nonces, fees, signing, broadcast, receipts and
// the router/pair/token calls the engine needs.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrSubmission is returned when the node rejects a broadcast.
	ErrSubmission = errors.New("transaction submission rejected")

	// ErrConfirmationTimeout is returned when no receipt appears in time.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")

	// ErrReverted is returned when a transaction was mined with failure status.
	ErrReverted = errors.New("transaction reverted")

	// ErrBadKey is returned when a private key cannot be parsed or does not own the sender.
	ErrBadKey = errors.New("bad private key")
)

// TxParams is an unsigned legacy transaction plus its sender.
type TxParams struct {
	From     common.Address
	To       common.Address
	Value    *big.Int
	Data     []byte
	Gas      uint64
	GasPrice *big.Int
	Nonce    uint64
	ChainID  *big.Int
}

// SwapParams are the arguments of
// swapExactTokensForTokensSupportingFeeOnTransferTokens on a V2 router.
type SwapParams struct {
	Router       common.Address
	AmountIn     *big.Int
	AmountOutMin *big.Int
	Path         []common.Address
	To           common.Address
	Deadline     *big.Int
}

// Reserves is the getReserves() result of a V2 pair with its token0.
type Reserves struct {
	Reserve0  *big.Int
	Reserve1  *big.Int
	Timestamp uint32
	Token0    common.Address
	KLast     *big.Int
}

// Gateway is everything the orchestrators need from the chain.
type Gateway interface {
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	TransactionCount(ctx context.Context, addr common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SignAndSend(ctx context.Context, tx TxParams, privateKeyHex string) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	QuoteAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
	BuildSwapTransaction(p SwapParams) (TxParams, error)
	PairReserves(ctx context.Context, pair common.Address) (Reserves, error)
}
