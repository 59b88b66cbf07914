package custody

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/ligun0805/wallet-rotator/internal/chain"
	"github.com/ligun0805/wallet-rotator/internal/wallet"
)

const bpsDenominator = 10_000

// Swaps trades tokens through a V2 router.
type Swaps struct {
	gw  chain.Gateway
	cfg SwapConfig
	log zerolog.Logger
}

// NewSwaps returns a swap orchestrator over gw.
func NewSwaps(gw chain.Gateway, cfg SwapConfig) *Swaps {
	cfg = cfg.withDefaults()
	return &Swaps{gw: gw, cfg: cfg, log: cfg.Logger.With().Str("component", "swaps").Logger()}
}

// QuoteMinOut returns the router's expected output for amountIn along
// tokenIn -> tokenOut. No slippage is applied.
func (s *Swaps) QuoteMinOut(ctx context.Context, amountIn *big.Int, tokenIn, tokenOut common.Address) (*big.Int, error) {
	amounts, err := s.gw.QuoteAmountsOut(ctx, s.cfg.Router, amountIn, []common.Address{tokenIn, tokenOut})
	if err != nil {
		return nil, err
	}
	if len(amounts) < 2 {
		return nil, fmt.Errorf("getAmountsOut returned %d amounts", len(amounts))
	}
	return amounts[1], nil
}

// MinOut applies the configured slippage to quote.
func (s *Swaps) MinOut(quote *big.Int) *big.Int {
	if s.cfg.SlippageBps == 0 {
		return new(big.Int).Set(quote)
	}
	out := new(big.Int).Mul(quote, big.NewInt(bpsDenominator-s.cfg.SlippageBps))
	return out.Quo(out, big.NewInt(bpsDenominator))
}

// Swap sells amountIn of tokenIn for tokenOut from w. The router is quoted
// first, then approved when its allowance is short. It returns once the swap is broadcast;
// the outcome is StatusSent or StatusFailed.
func (s *Swaps) Swap(ctx context.Context, index int, w wallet.Record, amountIn *big.Int, tokenIn, tokenOut common.Address) SwapOutcome {
	out := SwapOutcome{
		WalletIndex: index,
		Wallet:      w.Addr(),
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    amountIn,
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return s.fail(out, fmt.Errorf("%w: amountIn must be > 0", ErrInvalidArgument))
	}

	// a failed quote sends nothing, not even the approve
	quote, err := s.QuoteMinOut(ctx, amountIn, tokenIn, tokenOut)
	if err != nil {
		return s.fail(out, fmt.Errorf("quote: %w", err))
	}
	out.MinOut = s.MinOut(quote)

	approveHash, err := s.ensureAllowance(ctx, w, tokenIn, amountIn)
	if err != nil {
		return s.fail(out, fmt.Errorf("approve: %w", err))
	}
	out.ApproveTxHash = approveHash

	deadline := s.cfg.Now().Add(s.cfg.Deadline).Unix()
	tx, err := s.gw.BuildSwapTransaction(chain.SwapParams{
		Router:       s.cfg.Router,
		AmountIn:     amountIn,
		AmountOutMin: out.MinOut,
		Path:         []common.Address{tokenIn, tokenOut},
		To:           out.Wallet,
		Deadline:     big.NewInt(deadline),
	})
	if err != nil {
		return s.fail(out, fmt.Errorf("build swap: %w", err))
	}
	tx.From = out.Wallet

	hash, err := submit(ctx, s.gw, tx, s.cfg.SwapGasLimit, s.cfg.GasPrice, w.PrivateKey)
	if err != nil {
		return s.fail(out, err)
	}
	out.Status = StatusSent
	out.TxHash = hash.Hex()
	s.log.Info().
		Int("wallet", index).
		Str("from", out.Wallet.Hex()).
		Str("amountIn", amountIn.String()).
		Str("minOut", out.MinOut.String()).
		Str("tx", out.TxHash).
		Msg("swap sent")
	return out
}

// ensureAllowance approves the router for the maximum amount when the current
// allowance is below amount, and waits for that approval to be mined.
func (s *Swaps) ensureAllowance(ctx context.Context, w wallet.Record, token common.Address, amount *big.Int) (string, error) {
	allowance, err := s.gw.TokenAllowance(ctx, token, w.Addr(), s.cfg.Router)
	if err != nil {
		return "", err
	}
	if allowance.Cmp(amount) >= 0 {
		return "", nil
	}
	tx := chain.ApproveTx(token, s.cfg.Router, chain.MaxUint256)
	tx.From = w.Addr()
	hash, err := submit(ctx, s.gw, tx, s.cfg.ApproveGasLimit, s.cfg.GasPrice, w.PrivateKey)
	if err != nil {
		return "", err
	}
	if _, err := s.gw.WaitForReceipt(ctx, hash); err != nil {
		return hash.Hex(), err
	}
	s.log.Debug().Str("wallet", w.Address).Str("token", token.Hex()).Str("tx", hash.Hex()).Msg("router approved")
	return hash.Hex(), nil
}

// Rebalance buys tokenB with amountPerWallet of tokenA from every wallet,
// waits for all buys, then sells back what each confirmed buy gained.
// tokenB held before the buy stays put. Outcomes are the buys followed by
// the sells, both in wallet order.
func (s *Swaps) Rebalance(ctx context.Context, wallets []wallet.Record, tokenA, tokenB common.Address, amountPerWallet *big.Int) ([]SwapOutcome, error) {
	if amountPerWallet == nil || amountPerWallet.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount per wallet must be > 0", ErrInvalidArgument)
	}
	if tokenA == tokenB {
		return nil, fmt.Errorf("%w: tokenA equals tokenB", ErrInvalidArgument)
	}

	held := make([]*big.Int, len(wallets))
	buys := make([]SwapOutcome, 0, len(wallets))
	for i, w := range wallets {
		if err := ctx.Err(); err != nil {
			return buys, err
		}
		bal, err := s.gw.TokenBalance(ctx, tokenB, w.Addr())
		if err != nil {
			o := SwapOutcome{WalletIndex: i, Direction: Buy, Wallet: w.Addr(), TokenIn: tokenA, TokenOut: tokenB, AmountIn: amountPerWallet}
			buys = append(buys, s.fail(o, fmt.Errorf("balance before buy: %w", err)))
			continue
		}
		held[i] = bal
		o := s.Swap(ctx, i, w, amountPerWallet, tokenA, tokenB)
		o.Direction = Buy
		buys = append(buys, o)
	}
	s.confirm(ctx, buys)
	if err := ctx.Err(); err != nil {
		return buys, err
	}

	out := buys
	sells := make([]SwapOutcome, 0, len(wallets))
	for i, w := range wallets {
		if err := ctx.Err(); err != nil {
			return append(out, sells...), err
		}
		o := SwapOutcome{WalletIndex: i, Direction: Sell, Wallet: w.Addr(), TokenIn: tokenB, TokenOut: tokenA, AmountIn: big.NewInt(0)}
		if buys[i].Status != StatusConfirmed {
			s.log.Debug().Int("wallet", i).Stringer("buy", buys[i].Status).Msg("buy not confirmed, skip sell")
			sells = append(sells, o)
			continue
		}
		bal, err := s.gw.TokenBalance(ctx, tokenB, o.Wallet)
		if err != nil {
			sells = append(sells, s.fail(o, fmt.Errorf("balance: %w", err)))
			continue
		}
		gained := new(big.Int).Sub(bal, held[i])
		if gained.Sign() <= 0 {
			s.log.Debug().Int("wallet", i).Msg("nothing gained, skip sell")
			sells = append(sells, o)
			continue
		}
		o = s.Swap(ctx, i, w, gained, tokenB, tokenA)
		o.Direction = Sell
		sells = append(sells, o)
	}
	s.confirm(ctx, sells)
	return append(out, sells...), ctx.Err()
}

// confirm waits for every sent swap in place.
func (s *Swaps) confirm(ctx context.Context, outs []SwapOutcome) {
	for i := range outs {
		if outs[i].Status != StatusSent {
			continue
		}
		if _, err := s.gw.WaitForReceipt(ctx, common.HexToHash(outs[i].TxHash)); err != nil {
			outs[i] = s.fail(outs[i], err)
			continue
		}
		outs[i].Status = StatusConfirmed
	}
}

func (s *Swaps) fail(out SwapOutcome, err error) SwapOutcome {
	out.Status = StatusFailed
	out.Error = err.Error()
	s.log.Error().
		Err(err).
		Int("wallet", out.WalletIndex).
		Stringer("direction", out.Direction).
		Str("from", out.Wallet.Hex()).
		Str("tx", out.TxHash).
		Msg("swap failed")
	return out
}
