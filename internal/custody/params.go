package custody

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// TransferConfig configures drains and funding.
type TransferConfig struct {
	// Token is the ERC20 moved alongside the native coin. Zero disables token legs.
	Token common.Address
	// Reserve stays behind on a drained wallet to pay for its token leg.
	Reserve *big.Int
	// GasPrice overrides the node suggestion when set.
	GasPrice       *big.Int
	NativeGasLimit uint64
	TokenGasLimit  uint64
	// Parallelism > 1 drains that many distinct senders at once.
	Parallelism int
	Logger      zerolog.Logger
}

// SwapConfig configures the router swaps.
type SwapConfig struct {
	Router common.Address
	// SlippageBps is subtracted from the quote; 0 takes the raw quote as minimum.
	SlippageBps int64
	// Deadline is added to the current time for the swap deadline.
	Deadline        time.Duration
	GasPrice        *big.Int
	SwapGasLimit    uint64
	ApproveGasLimit uint64
	Logger          zerolog.Logger
	Now             func() time.Time
}

const (
	defaultNativeGas  = 21_000
	defaultTokenGas   = 100_000
	defaultSwapGas    = 300_000
	defaultApproveGas = 100_000
	defaultDeadline   = 10 * time.Second
)

func (c TransferConfig) withDefaults() TransferConfig {
	if c.Reserve == nil {
		c.Reserve = big.NewInt(0)
	}
	if c.NativeGasLimit == 0 {
		c.NativeGasLimit = defaultNativeGas
	}
	if c.TokenGasLimit == 0 {
		c.TokenGasLimit = defaultTokenGas
	}
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	return c
}

func (c SwapConfig) withDefaults() SwapConfig {
	if c.Deadline <= 0 {
		c.Deadline = defaultDeadline
	}
	if c.SwapGasLimit == 0 {
		c.SwapGasLimit = defaultSwapGas
	}
	if c.ApproveGasLimit == 0 {
		c.ApproveGasLimit = defaultApproveGas
	}
	if c.SlippageBps < 0 {
		c.SlippageBps = 0
	}
	if c.SlippageBps > 10_000 {
		c.SlippageBps = 10_000
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
