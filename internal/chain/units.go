package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// EtherDecimals is the unit scale of native coins and most BEP20/ERC20 tokens.
const EtherDecimals = 18

// ToWei scales a decimal amount to integer base units.
func ToWei(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).BigInt()
}

// FromWei converts integer base units to a decimal amount.
func FromWei(x *big.Int, decimals int32) decimal.Decimal {
	if x == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x, -decimals)
}

// FormatEther renders wei as ether with six decimals.
func FormatEther(x *big.Int) string {
	return FromWei(x, EtherDecimals).StringFixed(6)
}

// FormatGwei renders wei as gwei with two decimals.
func FormatGwei(x *big.Int) string {
	return FromWei(x, 9).StringFixed(2)
}
