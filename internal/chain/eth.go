package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"
)

// Backend is the subset of ethclient.Client the gateway uses. The simulated
// backend client satisfies it too.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Options tune an EthGateway.
type Options struct {
	ReceiptTimeout time.Duration // per WaitForReceipt, default 2m
	PollInterval   time.Duration // receipt polling, default 2s
	RPCRate        int           // max RPC calls per second, 0 = unlimited
	Logger         zerolog.Logger
}

// EthGateway implements Gateway over a JSON-RPC backend.
type EthGateway struct {
	backend Backend
	opts    Options
	limiter ratelimit.Limiter
	log     zerolog.Logger

	mu      sync.Mutex
	chainID *big.Int
}

var _ Gateway = (*EthGateway)(nil)

// NewEthGateway wraps backend.
func NewEthGateway(backend Backend, opts Options) *EthGateway {
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 2 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	limiter := ratelimit.NewUnlimited()
	if opts.RPCRate > 0 {
		limiter = ratelimit.New(opts.RPCRate)
	}
	return &EthGateway{
		backend: backend,
		opts:    opts,
		limiter: limiter,
		log:     opts.Logger.With().Str("component", "chain").Logger(),
	}
}

// Dial connects to rpcURL with keep-alives and sane timeouts.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
	rc, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(rc), nil
}

func (g *EthGateway) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	g.limiter.Take()
	bal, err := g.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("balance %s: %w", addr.Hex(), err)
	}
	return bal, nil
}

func (g *EthGateway) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	ret, err := g.callWithRetry(ctx, ethereum.CallMsg{To: &token, Data: encodeBalanceOf(owner)})
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s on %s: %s", owner.Hex(), token.Hex(), revertReason(err))
	}
	return decodeUint(ret), nil
}

func (g *EthGateway) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	ret, err := g.callWithRetry(ctx, ethereum.CallMsg{To: &token, Data: encodeAllowance(owner, spender)})
	if err != nil {
		return nil, fmt.Errorf("allowance %s->%s on %s: %s", owner.Hex(), spender.Hex(), token.Hex(), revertReason(err))
	}
	return decodeUint(ret), nil
}

// TransactionCount returns the pending nonce so a just-broadcast tx is counted.
func (g *EthGateway) TransactionCount(ctx context.Context, addr common.Address) (uint64, error) {
	g.limiter.Take()
	n, err := g.backend.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("nonce %s: %w", addr.Hex(), err)
	}
	return n, nil
}

func (g *EthGateway) GasPrice(ctx context.Context) (*big.Int, error) {
	g.limiter.Take()
	p, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	return p, nil
}

// ChainID is fetched once and cached.
func (g *EthGateway) ChainID(ctx context.Context) (*big.Int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chainID != nil {
		return new(big.Int).Set(g.chainID), nil
	}
	g.limiter.Take()
	id, err := g.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	g.chainID = id
	return new(big.Int).Set(id), nil
}

func (g *EthGateway) SignAndSend(ctx context.Context, p TxParams, privateKeyHex string) (common.Hash, error) {
	prv, err := hexToECDSAPriv(privateKeyHex)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if signer := gethcrypto.PubkeyToAddress(prv.PublicKey); signer != p.From {
		return common.Hash{}, fmt.Errorf("%w: key belongs to %s, sender is %s", ErrBadKey, signer.Hex(), p.From.Hex())
	}
	if p.ChainID == nil || p.GasPrice == nil {
		return common.Hash{}, errors.New("chain id and gas price are required")
	}
	signed, err := signTx(buildLegacyTx(p), p.ChainID, prv)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	g.limiter.Take()
	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	g.log.Debug().
		Str("from", p.From.Hex()).
		Str("to", p.To.Hex()).
		Uint64("nonce", p.Nonce).
		Str("tx", signed.Hash().Hex()).
		Msg("broadcast")
	return signed.Hash(), nil
}

// WaitForReceipt polls until the transaction is mined, the receipt timeout
// elapses (ErrConfirmationTimeout) or ctx is cancelled.
func (g *EthGateway) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	wctx, cancel := context.WithTimeout(ctx, g.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(g.opts.PollInterval)
	defer ticker.Stop()
	var lastErr error
	for {
		g.limiter.Take()
		rc, err := g.backend.TransactionReceipt(wctx, hash)
		if err == nil && rc != nil {
			if rc.Status != types.ReceiptStatusSuccessful {
				return rc, fmt.Errorf("%w: %s in block %s", ErrReverted, hash.Hex(), rc.BlockNumber)
			}
			return rc, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			lastErr = err
		}
		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %s after %s (last error: %v)", ErrConfirmationTimeout, hash.Hex(), g.opts.ReceiptTimeout, lastErr)
			}
			return nil, fmt.Errorf("%w: %s after %s", ErrConfirmationTimeout, hash.Hex(), g.opts.ReceiptTimeout)
		case <-ticker.C:
		}
	}
}

func (g *EthGateway) QuoteAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	data, err := packAmountsOut(amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut pack: %w", err)
	}
	ret, err := g.callWithRetry(ctx, ethereum.CallMsg{To: &router, Data: data})
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut: %s", revertReason(err))
	}
	return unpackAmountsOut(ret)
}

func (g *EthGateway) BuildSwapTransaction(p SwapParams) (TxParams, error) {
	return PackSwap(p)
}

func (g *EthGateway) PairReserves(ctx context.Context, pair common.Address) (Reserves, error) {
	call := func(method string) ([]interface{}, error) {
		data, err := pairContract.Pack(method)
		if err != nil {
			return nil, err
		}
		ret, err := g.callWithRetry(ctx, ethereum.CallMsg{To: &pair, Data: data})
		if err != nil {
			return nil, fmt.Errorf("%s: %s", method, revertReason(err))
		}
		return pairContract.Unpack(method, ret)
	}

	var out Reserves
	res, err := call("getReserves")
	if err != nil {
		return out, err
	}
	if len(res) != 3 {
		return out, fmt.Errorf("getReserves: %d outputs", len(res))
	}
	out.Reserve0, _ = res[0].(*big.Int)
	out.Reserve1, _ = res[1].(*big.Int)
	out.Timestamp, _ = res[2].(uint32)
	if out.Reserve0 == nil || out.Reserve1 == nil {
		return out, errors.New("getReserves: unexpected output types")
	}

	res, err = call("token0")
	if err != nil {
		return out, err
	}
	if len(res) != 1 {
		return out, fmt.Errorf("token0: %d outputs", len(res))
	}
	out.Token0, _ = res[0].(common.Address)

	// kLast is absent on some forks; it is diagnostic only.
	if res, err := call("kLast"); err == nil && len(res) == 1 {
		out.KLast, _ = res[0].(*big.Int)
	}
	return out, nil
}
