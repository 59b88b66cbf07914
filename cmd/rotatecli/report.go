package main

import (
	"fmt"
	"io"
	"math/big"
	"text/tabwriter"

	"github.com/ligun0805/wallet-rotator/internal/chain"
	"github.com/ligun0805/wallet-rotator/internal/custody"
)

func printTransfers(w io.Writer, out []custody.TransferOutcome) {
	if len(out) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tLEG\tSTATUS\tFROM\tTO\tAMOUNT\tTX\tERROR")
	for _, o := range out {
		amount := o.Amount.String()
		if o.Kind == custody.NativeTransfer {
			amount = chain.FormatEther(o.Amount)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.WalletIndex, o.Kind, o.Status, o.From.Hex(), o.To.Hex(), amount, dash(o.TxHash), o.Error)
	}
	_ = tw.Flush()
	s := custody.SummarizeTransfers(out)
	fmt.Fprintf(w, "confirmed=%d skipped=%d failed=%d\n", s.Confirmed, s.Skipped, s.Failed)
}

func printSwaps(w io.Writer, out []custody.SwapOutcome) {
	if len(out) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSIDE\tSTATUS\tWALLET\tAMOUNT IN\tMIN OUT\tTX\tERROR")
	for _, o := range out {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.WalletIndex, o.Direction, o.Status, o.Wallet.Hex(), num(o.AmountIn), num(o.MinOut), dash(o.TxHash), o.Error)
	}
	_ = tw.Flush()
	s := custody.SummarizeSwaps(out)
	fmt.Fprintf(w, "confirmed=%d skipped=%d failed=%d\n", s.Confirmed, s.Skipped, s.Failed)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func num(x *big.Int) string {
	if x == nil {
		return "-"
	}
	return x.String()
}
