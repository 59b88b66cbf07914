// Package custody drives wallet rotation on chain: it drains retiring wallets
// into their successors, funds a generation from a funding account and runs
// buy/sell rebalancing through a V2 router.
package custody

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidArgument is returned before any chain call when inputs are inconsistent.
var ErrInvalidArgument = errors.New("invalid argument")

// LegKind names one on-chain movement.
type LegKind int

const (
	NativeTransfer LegKind = iota
	TokenTransfer
)

func (k LegKind) String() string {
	switch k {
	case NativeTransfer:
		return "native"
	case TokenTransfer:
		return "token"
	}
	return "unknown"
}

// Status of a leg or swap.
type Status int

const (
	StatusSkipped Status = iota
	StatusSent
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusSent:
		return "sent"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// TransferOutcome records one attempted leg. TxHash is empty when nothing
// was broadcast; Error is empty unless Status is StatusFailed.
type TransferOutcome struct {
	WalletIndex int
	Kind        LegKind
	Status      Status
	From        common.Address
	To          common.Address
	Amount      *big.Int
	TxHash      string
	Error       string
}

// Failed reports whether the leg ended in StatusFailed.
func (o TransferOutcome) Failed() bool { return o.Status == StatusFailed }

// SwapDirection tells the buy pass from the sell pass of a rebalance.
type SwapDirection int

const (
	Buy SwapDirection = iota
	Sell
)

func (d SwapDirection) String() string {
	if d == Sell {
		return "sell"
	}
	return "buy"
}

// SwapOutcome records one attempted swap.
type SwapOutcome struct {
	WalletIndex   int
	Direction     SwapDirection
	Wallet        common.Address
	TokenIn       common.Address
	TokenOut      common.Address
	AmountIn      *big.Int
	MinOut        *big.Int
	ApproveTxHash string
	Status        Status
	TxHash        string
	Error         string
}

// Failed reports whether the swap ended in StatusFailed.
func (o SwapOutcome) Failed() bool { return o.Status == StatusFailed }

// Summary counts outcomes per status.
type Summary struct {
	Confirmed, Sent, Skipped, Failed int
}

func summarize(statuses []Status) Summary {
	var s Summary
	for _, st := range statuses {
		switch st {
		case StatusConfirmed:
			s.Confirmed++
		case StatusSent:
			s.Sent++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// SummarizeTransfers counts transfer outcomes per status.
func SummarizeTransfers(out []TransferOutcome) Summary {
	st := make([]Status, 0, len(out))
	for _, o := range out {
		st = append(st, o.Status)
	}
	return summarize(st)
}

// SummarizeSwaps counts swap outcomes per status.
func SummarizeSwaps(out []SwapOutcome) Summary {
	st := make([]Status, 0, len(out))
	for _, o := range out {
		st = append(st, o.Status)
	}
	return summarize(st)
}
