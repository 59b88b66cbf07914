package custody

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/wallet-rotator/internal/chain"
	"github.com/ligun0805/wallet-rotator/internal/wallet"
)

// Transfers moves native coin and the configured token between wallets.
type Transfers struct {
	gw  chain.Gateway
	cfg TransferConfig
	log zerolog.Logger
}

// NewTransfers returns a transfer orchestrator over gw.
func NewTransfers(gw chain.Gateway, cfg TransferConfig) *Transfers {
	cfg = cfg.withDefaults()
	return &Transfers{gw: gw, cfg: cfg, log: cfg.Logger.With().Str("component", "transfers").Logger()}
}

// DrainAll empties retiring[i] into successors[i] for every i: native balance
// above the reserve first, then the full token balance. Each wallet yields two
// outcomes (native, token) in index order. A failed leg never stops the run;
// only a length mismatch or a cancelled ctx produce an error.
func (t *Transfers) DrainAll(ctx context.Context, retiring, successors []wallet.Record) ([]TransferOutcome, error) {
	if len(retiring) != len(successors) {
		return nil, fmt.Errorf("%w: %d retiring wallets but %d successors", ErrInvalidArgument, len(retiring), len(successors))
	}
	results := make([][]TransferOutcome, len(retiring))

	par := t.cfg.Parallelism
	if par > 1 && !distinctSenders(retiring) {
		t.log.Warn().Msg("duplicate retiring addresses, draining sequentially")
		par = 1
	}

	if par == 1 {
		for i := range retiring {
			if err := ctx.Err(); err != nil {
				return flatten(results), err
			}
			results[i] = t.drainPair(ctx, i, retiring[i], successors[i])
		}
		return flatten(results), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(par)
	for i := range retiring {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = t.drainPair(gctx, i, retiring[i], successors[i])
			return nil
		})
	}
	err := g.Wait()
	return flatten(results), err
}

func (t *Transfers) drainPair(ctx context.Context, i int, from, to wallet.Record) []TransferOutcome {
	native := t.drainNative(ctx, i, from, to.Addr())
	// the native leg is confirmed (or failed) before the token leg reads its nonce
	token := t.drainToken(ctx, i, from, to.Addr())
	return []TransferOutcome{native, token}
}

func (t *Transfers) drainNative(ctx context.Context, i int, from wallet.Record, to common.Address) TransferOutcome {
	out := TransferOutcome{WalletIndex: i, Kind: NativeTransfer, From: from.Addr(), To: to, Amount: big.NewInt(0)}
	bal, err := t.gw.NativeBalance(ctx, out.From)
	if err != nil {
		return t.fail(out, err)
	}
	if bal.Cmp(t.cfg.Reserve) <= 0 {
		t.log.Debug().Int("wallet", i).Str("from", out.From.Hex()).Str("balance", chain.FormatEther(bal)).Msg("native balance within reserve, skip")
		return out
	}
	out.Amount = new(big.Int).Sub(bal, t.cfg.Reserve)
	tx := chain.TxParams{From: out.From, To: to, Value: out.Amount}
	return t.send(ctx, out, tx, t.cfg.NativeGasLimit, from.PrivateKey)
}

func (t *Transfers) drainToken(ctx context.Context, i int, from wallet.Record, to common.Address) TransferOutcome {
	out := TransferOutcome{WalletIndex: i, Kind: TokenTransfer, From: from.Addr(), To: to, Amount: big.NewInt(0)}
	if t.cfg.Token == (common.Address{}) {
		return out
	}
	bal, err := t.gw.TokenBalance(ctx, t.cfg.Token, out.From)
	if err != nil {
		return t.fail(out, err)
	}
	if bal.Sign() == 0 {
		t.log.Debug().Int("wallet", i).Str("from", out.From.Hex()).Msg("token balance=0, skip")
		return out
	}
	out.Amount = bal
	tx := chain.TokenTransferTx(t.cfg.Token, to, bal)
	tx.From = out.From
	return t.send(ctx, out, tx, t.cfg.TokenGasLimit, from.PrivateKey)
}

// FundAll sends nativeAmount and tokenAmount from funder to every wallet.
// All legs share one sender, so they run strictly in order and each waits
// for its receipt. A nil or zero amount disables that leg.
func (t *Transfers) FundAll(ctx context.Context, funder wallet.Record, wallets []wallet.Record, nativeAmount, tokenAmount *big.Int) ([]TransferOutcome, error) {
	if err := funder.Verify(); err != nil {
		return nil, fmt.Errorf("%w: funder: %v", ErrInvalidArgument, err)
	}
	out := make([]TransferOutcome, 0, 2*len(wallets))
	for i, w := range wallets {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		to := w.Addr()

		native := TransferOutcome{WalletIndex: i, Kind: NativeTransfer, From: funder.Addr(), To: to, Amount: big.NewInt(0)}
		if nativeAmount != nil && nativeAmount.Sign() > 0 {
			native.Amount = new(big.Int).Set(nativeAmount)
			tx := chain.TxParams{From: native.From, To: to, Value: native.Amount}
			native = t.send(ctx, native, tx, t.cfg.NativeGasLimit, funder.PrivateKey)
		}
		out = append(out, native)

		token := TransferOutcome{WalletIndex: i, Kind: TokenTransfer, From: funder.Addr(), To: to, Amount: big.NewInt(0)}
		if tokenAmount != nil && tokenAmount.Sign() > 0 && t.cfg.Token != (common.Address{}) {
			token.Amount = new(big.Int).Set(tokenAmount)
			tx := chain.TokenTransferTx(t.cfg.Token, to, token.Amount)
			tx.From = token.From
			token = t.send(ctx, token, tx, t.cfg.TokenGasLimit, funder.PrivateKey)
		}
		out = append(out, token)
	}
	return out, nil
}

// send broadcasts tx and waits for its receipt.
func (t *Transfers) send(ctx context.Context, out TransferOutcome, tx chain.TxParams, gas uint64, key string) TransferOutcome {
	hash, err := submit(ctx, t.gw, tx, gas, t.cfg.GasPrice, key)
	if err != nil {
		return t.fail(out, err)
	}
	out.Status = StatusSent
	out.TxHash = hash.Hex()
	if _, err := t.gw.WaitForReceipt(ctx, hash); err != nil {
		return t.fail(out, err)
	}
	out.Status = StatusConfirmed
	t.log.Info().
		Int("wallet", out.WalletIndex).
		Stringer("leg", out.Kind).
		Str("from", out.From.Hex()).
		Str("to", out.To.Hex()).
		Str("amount", out.Amount.String()).
		Str("tx", out.TxHash).
		Msg("transfer confirmed")
	return out
}

func (t *Transfers) fail(out TransferOutcome, err error) TransferOutcome {
	out.Status = StatusFailed
	out.Error = err.Error()
	t.log.Error().
		Err(err).
		Int("wallet", out.WalletIndex).
		Stringer("leg", out.Kind).
		Str("from", out.From.Hex()).
		Str("tx", out.TxHash).
		Msg("transfer failed")
	return out
}

func distinctSenders(recs []wallet.Record) bool {
	seen := make(map[common.Address]struct{}, len(recs))
	for _, r := range recs {
		if _, dup := seen[r.Addr()]; dup {
			return false
		}
		seen[r.Addr()] = struct{}{}
	}
	return true
}

func flatten(results [][]TransferOutcome) []TransferOutcome {
	out := make([]TransferOutcome, 0, 2*len(results))
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}
