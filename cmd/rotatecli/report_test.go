package main

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/wallet-rotator/internal/custody"
)

func TestPrintTransfers(t *testing.T) {
	from := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	to := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	out := []custody.TransferOutcome{
		{WalletIndex: 0, Kind: custody.NativeTransfer, Status: custody.StatusConfirmed, From: from, To: to,
			Amount: big.NewInt(15_000_000_000_000_000), TxHash: "0xabc"},
		{WalletIndex: 0, Kind: custody.TokenTransfer, Status: custody.StatusFailed, From: from, To: to,
			Amount: big.NewInt(7), Error: "transaction submission rejected"},
	}
	var buf bytes.Buffer
	printTransfers(&buf, out)

	s := buf.String()
	assert.Contains(t, s, "0.015000")
	assert.Contains(t, s, "confirmed")
	assert.Contains(t, s, "transaction submission rejected")
	assert.Contains(t, s, "confirmed=1 skipped=0 failed=1")
}

func TestPrintSwapsHandlesMissingAmounts(t *testing.T) {
	var buf bytes.Buffer
	printSwaps(&buf, []custody.SwapOutcome{{Direction: custody.Sell, Status: custody.StatusFailed, Error: "balance: boom"}})
	assert.Contains(t, buf.String(), "sell")
	assert.Contains(t, buf.String(), "failed=1")
}

func TestFailuresErr(t *testing.T) {
	require.NoError(t, failuresErr(custody.Summary{Confirmed: 3}))
	err := failuresErr(custody.Summary{Failed: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errFailures))
}

func TestAddressHelpers(t *testing.T) {
	_, err := requireAddr("contract.router", "")
	require.Error(t, err)
	a, err := requireAddr("contract.router", "0x10ED43C718714eb63d5aA57B78B54704E256024E")
	require.NoError(t, err)
	assert.Equal(t, "0x10ED43C718714eb63d5aA57B78B54704E256024E", a.Hex())
	assert.Equal(t, common.Address{}, addrOrZero("nope"))
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd(&app{})
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"generate", "rotate", "drain", "fund", "trade", "price", "run"}, names)
}
