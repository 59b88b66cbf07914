package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// routerABI keeps only the router functions we call.
const routerABI = `[
  {"type":"function","stateMutability":"view","name":"getAmountsOut",
   "inputs":[{"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}],
   "outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"type":"function","stateMutability":"nonpayable","name":"swapExactTokensForTokensSupportingFeeOnTransferTokens",
   "inputs":[
     {"name":"amountIn","type":"uint256"},
     {"name":"amountOutMin","type":"uint256"},
     {"name":"path","type":"address[]"},
     {"name":"to","type":"address"},
     {"name":"deadline","type":"uint256"}
   ],"outputs":[]}
]`

const pairABI = `[
  {"type":"function","stateMutability":"view","name":"getReserves","inputs":[],
   "outputs":[{"name":"_reserve0","type":"uint112"},{"name":"_reserve1","type":"uint112"},{"name":"_blockTimestampLast","type":"uint32"}]},
  {"type":"function","stateMutability":"view","name":"token0","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","stateMutability":"view","name":"kLast","inputs":[],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	routerContract abi.ABI
	pairContract   abi.ABI
)

func init() {
	routerContract = mustABI(routerABI)
	pairContract = mustABI(pairABI)
}

func mustABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

// MaxUint256 is the allowance granted to the router by Approve.
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// EncodeERC20Transfer encodes transfer(to, amount).
func EncodeERC20Transfer(to common.Address, amount *big.Int) []byte {
	selector := common.FromHex("0xa9059cbb")
	arg1 := common.LeftPadBytes(to.Bytes(), 32)
	arg2 := common.LeftPadBytes(amount.Bytes(), 32)
	return append(selector, append(arg1, arg2...)...)
}

// EncodeERC20Approve encodes approve(spender, amount).
func EncodeERC20Approve(spender common.Address, amount *big.Int) []byte {
	selector := common.FromHex("0x095ea7b3")
	arg1 := common.LeftPadBytes(spender.Bytes(), 32)
	arg2 := common.LeftPadBytes(amount.Bytes(), 32)
	return append(selector, append(arg1, arg2...)...)
}

func encodeBalanceOf(owner common.Address) []byte {
	return append(common.FromHex("0x70a08231"), common.LeftPadBytes(owner.Bytes(), 32)...)
}

func encodeAllowance(owner, spender common.Address) []byte {
	data := common.FromHex("0xdd62ed3e")
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	return append(data, common.LeftPadBytes(spender.Bytes(), 32)...)
}

// TokenTransferTx returns the call part of an ERC20 transfer; the caller
// fills sender, nonce and fees.
func TokenTransferTx(token, to common.Address, amount *big.Int) TxParams {
	return TxParams{To: token, Value: big.NewInt(0), Data: EncodeERC20Transfer(to, amount)}
}

// ApproveTx returns the call part of an ERC20 approve.
func ApproveTx(token, spender common.Address, amount *big.Int) TxParams {
	return TxParams{To: token, Value: big.NewInt(0), Data: EncodeERC20Approve(spender, amount)}
}

// PackSwap builds the router call for a fee-on-transfer token swap.
func PackSwap(p SwapParams) (TxParams, error) {
	if len(p.Path) < 2 {
		return TxParams{}, errors.New("swap path needs at least two tokens")
	}
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return TxParams{}, errors.New("swap amountIn must be > 0")
	}
	minOut := p.AmountOutMin
	if minOut == nil {
		minOut = big.NewInt(0)
	}
	data, err := routerContract.Pack("swapExactTokensForTokensSupportingFeeOnTransferTokens",
		p.AmountIn, minOut, p.Path, p.To, p.Deadline)
	if err != nil {
		return TxParams{}, fmt.Errorf("router pack: %w", err)
	}
	return TxParams{To: p.Router, Value: big.NewInt(0), Data: data}, nil
}

func packAmountsOut(amountIn *big.Int, path []common.Address) ([]byte, error) {
	return routerContract.Pack("getAmountsOut", amountIn, path)
}

func unpackAmountsOut(ret []byte) ([]*big.Int, error) {
	out, err := routerContract.Unpack("getAmountsOut", ret)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getAmountsOut: %d outputs", len(out))
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getAmountsOut: unexpected type %T", out[0])
	}
	return amounts, nil
}

// uint256 return value, empty data reads as zero.
func decodeUint(ret []byte) *big.Int {
	if len(ret) == 0 {
		return big.NewInt(0)
	}
	if len(ret) > 32 {
		ret = ret[:32]
	}
	return new(big.Int).SetBytes(ret)
}
