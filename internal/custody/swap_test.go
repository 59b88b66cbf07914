package custody

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/wallet-rotator/internal/chain"
)

var (
	testRouter = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	tokenA     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB     = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func swapConfig() SwapConfig {
	return SwapConfig{
		Router: testRouter,
		Now:    func() time.Time { return time.Unix(1_700_000_000, 0) },
	}
}

func indexOf(calls []string, name string, from int) int {
	for i := from; i < len(calls); i++ {
		if calls[i] == name {
			return i
		}
	}
	return -1
}

func TestMinOutSlippage(t *testing.T) {
	tests := []struct {
		bps  int64
		want string
	}{
		{0, "1000"},
		{50, "995"},
		{10_000, "0"},
		{-5, "1000"},
		{20_000, "0"},
	}
	for _, tt := range tests {
		cfg := swapConfig()
		cfg.SlippageBps = tt.bps
		got := NewSwaps(newFakeGateway(), cfg).MinOut(big.NewInt(1000))
		assert.Equal(t, tt.want, got.String(), "bps=%d", tt.bps)
	}
}

func TestQuoteMinOut(t *testing.T) {
	s := NewSwaps(newFakeGateway(), swapConfig())
	q, err := s.QuoteMinOut(context.Background(), big.NewInt(21), tokenA, tokenB)
	require.NoError(t, err)
	assert.Equal(t, "42", q.String())
}

func TestSwapApprovesWhenAllowanceShort(t *testing.T) {
	f := newFakeGateway()
	w := genWallets(t, 1)[0]
	f.setToken(tokenA, w.Addr(), big.NewInt(500))

	out := NewSwaps(f, swapConfig()).Swap(context.Background(), 0, w, big.NewInt(100), tokenA, tokenB)
	require.Equal(t, StatusSent, out.Status, out.Error)
	assert.NotEmpty(t, out.ApproveTxHash)
	assert.NotEmpty(t, out.TxHash)
	assert.Equal(t, "200", out.MinOut.String())

	calls := f.callLog()
	quote := indexOf(calls, "QuoteAmountsOut", 0)
	approveSend := indexOf(calls, "SignAndSend", 0)
	approveWait := indexOf(calls, "WaitForReceipt", approveSend)
	swapSend := indexOf(calls, "SignAndSend", approveSend+1)
	require.NotEqual(t, -1, approveWait)
	require.NotEqual(t, -1, swapSend)
	assert.Less(t, quote, indexOf(calls, "TokenAllowance", 0))
	assert.Less(t, indexOf(calls, "TokenAllowance", 0), approveSend)
	assert.Less(t, approveWait, swapSend)

	sent := f.sentTxs()
	require.Len(t, sent, 2)
	assert.Equal(t, uint64(0), sent[0].Nonce)
	assert.Equal(t, uint64(1), sent[1].Nonce)
	assert.Equal(t, testRouter, sent[1].To)
	assert.Equal(t, uint64(defaultSwapGas), sent[1].Gas)
	assert.Equal(t, "200", f.tokenOf(tokenB, w.Addr()).String())
}

func TestSwapSkipsApproveWhenAllowed(t *testing.T) {
	f := newFakeGateway()
	w := genWallets(t, 1)[0]
	f.setToken(tokenA, w.Addr(), big.NewInt(500))
	f.allowance[w.Addr()] = big.NewInt(100)

	out := NewSwaps(f, swapConfig()).Swap(context.Background(), 0, w, big.NewInt(100), tokenA, tokenB)
	require.Equal(t, StatusSent, out.Status, out.Error)
	assert.Empty(t, out.ApproveTxHash)
	assert.Len(t, f.sentTxs(), 1)
}

func TestSwapQuoteFailure(t *testing.T) {
	tests := []struct {
		name      string
		allowance *big.Int
	}{
		{"allowed", chain.MaxUint256},
		{"no allowance", big.NewInt(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeGateway()
			w := genWallets(t, 1)[0]
			f.setToken(tokenA, w.Addr(), big.NewInt(500))
			f.allowance[w.Addr()] = tt.allowance
			f.quoteErr = errors.New("execution reverted: INSUFFICIENT_LIQUIDITY")

			out := NewSwaps(f, swapConfig()).Swap(context.Background(), 3, w, big.NewInt(100), tokenA, tokenB)
			assert.Equal(t, StatusFailed, out.Status)
			assert.Equal(t, 3, out.WalletIndex)
			assert.Contains(t, out.Error, "INSUFFICIENT_LIQUIDITY")
			assert.Empty(t, out.ApproveTxHash)
			assert.Empty(t, f.sentTxs())
			assert.NotContains(t, f.callLog(), "TokenAllowance")
		})
	}
}

func TestSwapRejectsZeroAmount(t *testing.T) {
	f := newFakeGateway()
	out := NewSwaps(f, swapConfig()).Swap(context.Background(), 0, genWallets(t, 1)[0], big.NewInt(0), tokenA, tokenB)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Empty(t, f.callLog())
}

func TestRebalance(t *testing.T) {
	f := newFakeGateway()
	wallets := genWallets(t, 3)
	for _, w := range wallets {
		f.setToken(tokenA, w.Addr(), big.NewInt(1_000))
	}

	out, err := NewSwaps(f, swapConfig()).Rebalance(context.Background(), wallets, tokenA, tokenB, big.NewInt(100))
	require.NoError(t, err)
	require.Len(t, out, 6)

	for i, o := range out[:3] {
		assert.Equal(t, Buy, o.Direction)
		assert.Equal(t, i, o.WalletIndex)
		assert.Equal(t, StatusConfirmed, o.Status, o.Error)
		assert.Equal(t, "100", o.AmountIn.String())
	}
	for i, o := range out[3:] {
		assert.Equal(t, Sell, o.Direction)
		assert.Equal(t, i, o.WalletIndex)
		assert.Equal(t, StatusConfirmed, o.Status, o.Error)
		assert.Equal(t, tokenB, o.TokenIn)
		assert.Equal(t, "200", o.AmountIn.String())
	}

	// every buy is mined before the first sell balance is read;
	// the first three reads are the pre-buy holdings
	calls := f.callLog()
	firstSellRead := -1
	for i, n := 0, 0; i < len(calls); i++ {
		if calls[i] == "TokenBalance" {
			if n++; n == len(wallets)+1 {
				firstSellRead = i
				break
			}
		}
	}
	require.NotEqual(t, -1, firstSellRead)
	waits := 0
	for _, c := range calls[:firstSellRead] {
		if c == "WaitForReceipt" {
			waits++
		}
	}
	assert.Equal(t, 6, waits) // approve + buy per wallet

	for _, w := range wallets {
		assert.Equal(t, "0", f.tokenOf(tokenB, w.Addr()).String())
		assert.Equal(t, "1300", f.tokenOf(tokenA, w.Addr()).String())
	}
}

func TestRebalanceFailedBuySkipsSell(t *testing.T) {
	f := newFakeGateway()
	wallets := genWallets(t, 2)
	for _, w := range wallets {
		f.setToken(tokenA, w.Addr(), big.NewInt(1_000))
	}
	f.sendErr[wallets[0].Addr()] = errors.New("insufficient funds for gas")

	out, err := NewSwaps(f, swapConfig()).Rebalance(context.Background(), wallets, tokenA, tokenB, big.NewInt(100))
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, StatusFailed, out[0].Status)
	assert.Equal(t, StatusConfirmed, out[1].Status)
	assert.Equal(t, StatusSkipped, out[2].Status)
	assert.Equal(t, StatusConfirmed, out[3].Status)
	assert.Equal(t, Summary{Confirmed: 2, Skipped: 1, Failed: 1}, SummarizeSwaps(out))
}

func TestRebalanceSellsOnlyWhatTheBuyGained(t *testing.T) {
	f := newFakeGateway()
	wallets := genWallets(t, 2)
	// wallet 0 cannot cover the buy; both already hold tokenB
	f.setToken(tokenA, wallets[0].Addr(), big.NewInt(50))
	f.setToken(tokenA, wallets[1].Addr(), big.NewInt(1_000))
	for _, w := range wallets {
		f.setToken(tokenB, w.Addr(), big.NewInt(500))
	}

	out, err := NewSwaps(f, swapConfig()).Rebalance(context.Background(), wallets, tokenA, tokenB, big.NewInt(100))
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, StatusFailed, out[0].Status)
	assert.Contains(t, out[0].Error, "exceeds balance")
	assert.Equal(t, StatusSkipped, out[2].Status)
	assert.Equal(t, "0", out[2].AmountIn.String())
	assert.Equal(t, "500", f.tokenOf(tokenB, wallets[0].Addr()).String())
	assert.Equal(t, "50", f.tokenOf(tokenA, wallets[0].Addr()).String())

	assert.Equal(t, StatusConfirmed, out[1].Status, out[1].Error)
	require.Equal(t, StatusConfirmed, out[3].Status, out[3].Error)
	assert.Equal(t, "200", out[3].AmountIn.String())
	assert.Equal(t, "500", f.tokenOf(tokenB, wallets[1].Addr()).String())
	assert.Equal(t, "1300", f.tokenOf(tokenA, wallets[1].Addr()).String())
}

func TestRebalanceRejectsBadInput(t *testing.T) {
	s := NewSwaps(newFakeGateway(), swapConfig())
	_, err := s.Rebalance(context.Background(), genWallets(t, 1), tokenA, tokenB, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
	_, err = s.Rebalance(context.Background(), genWallets(t, 1), tokenA, tokenA, big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidArgument)
}
