package custody

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/wallet-rotator/internal/chain"
	"github.com/ligun0805/wallet-rotator/internal/wallet"
)

var (
	transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}
	approveSelector  = []byte{0x09, 0x5e, 0xa7, 0xb3}
)

// fakeGateway is an in-memory ledger. Sends apply immediately; receipts
// succeed unless waitErr names the sender.
type fakeGateway struct {
	mu sync.Mutex

	native    map[common.Address]*big.Int
	tokens    map[common.Address]map[common.Address]*big.Int
	allowance map[common.Address]*big.Int
	nonces    map[common.Address]uint64
	swaps     map[string]chain.SwapParams
	senders   map[common.Hash]common.Address
	reserves  map[common.Address]chain.Reserves

	balanceErr error
	sendErr    map[common.Address]error
	waitErr    map[common.Address]error
	quoteErr   error

	calls []string
	sent  []chain.TxParams
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		native:    map[common.Address]*big.Int{},
		tokens:    map[common.Address]map[common.Address]*big.Int{},
		allowance: map[common.Address]*big.Int{},
		nonces:    map[common.Address]uint64{},
		swaps:     map[string]chain.SwapParams{},
		senders:   map[common.Hash]common.Address{},
		reserves:  map[common.Address]chain.Reserves{},
		sendErr:   map[common.Address]error{},
		waitErr:   map[common.Address]error{},
	}
}

var _ chain.Gateway = (*fakeGateway)(nil)

func (f *fakeGateway) record(call string) { f.calls = append(f.calls, call) }

func get(m map[common.Address]*big.Int, a common.Address) *big.Int {
	if v, ok := m[a]; ok {
		return v
	}
	return new(big.Int)
}

func (f *fakeGateway) tokenBook(token common.Address) map[common.Address]*big.Int {
	b, ok := f.tokens[token]
	if !ok {
		b = map[common.Address]*big.Int{}
		f.tokens[token] = b
	}
	return b
}

func (f *fakeGateway) setNative(a common.Address, v *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.native[a] = new(big.Int).Set(v)
}

func (f *fakeGateway) setToken(token, a common.Address, v *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenBook(token)[a] = new(big.Int).Set(v)
}

func (f *fakeGateway) nativeOf(a common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(get(f.native, a))
}

func (f *fakeGateway) tokenOf(token, a common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(get(f.tokenBook(token), a))
}

func (f *fakeGateway) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeGateway) sentTxs() []chain.TxParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chain.TxParams(nil), f.sent...)
}

func (f *fakeGateway) NativeBalance(_ context.Context, addr common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("NativeBalance")
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return new(big.Int).Set(get(f.native, addr)), nil
}

func (f *fakeGateway) TokenBalance(_ context.Context, token, owner common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TokenBalance")
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return new(big.Int).Set(get(f.tokenBook(token), owner)), nil
}

func (f *fakeGateway) TokenAllowance(_ context.Context, _, owner, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TokenAllowance")
	return new(big.Int).Set(get(f.allowance, owner)), nil
}

func (f *fakeGateway) TransactionCount(_ context.Context, addr common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TransactionCount")
	return f.nonces[addr], nil
}

func (f *fakeGateway) GasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GasPrice")
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeGateway) ChainID(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ChainID")
	return big.NewInt(1337), nil
}

func (f *fakeGateway) SignAndSend(_ context.Context, tx chain.TxParams, key string) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SignAndSend")
	if err := f.sendErr[tx.From]; err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", chain.ErrSubmission, err)
	}
	prv, err := (wallet.Record{PrivateKey: key}).Key()
	if err != nil || gethcrypto.PubkeyToAddress(prv.PublicKey) != tx.From {
		return common.Hash{}, chain.ErrBadKey
	}
	if tx.Nonce != f.nonces[tx.From] {
		return common.Hash{}, fmt.Errorf("%w: nonce %d, want %d", chain.ErrSubmission, tx.Nonce, f.nonces[tx.From])
	}
	if tx.ChainID == nil || tx.GasPrice == nil || tx.Gas == 0 {
		return common.Hash{}, fmt.Errorf("%w: incomplete tx", chain.ErrSubmission)
	}
	if err := f.apply(tx); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", chain.ErrSubmission, err)
	}
	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], tx.Nonce)
	hash := gethcrypto.Keccak256Hash(tx.From.Bytes(), nb[:])
	f.nonces[tx.From]++
	f.senders[hash] = tx.From
	f.sent = append(f.sent, tx)
	return hash, nil
}

// apply moves balances the way the mined transaction would.
func (f *fakeGateway) apply(tx chain.TxParams) error {
	if tx.Value != nil && tx.Value.Sign() > 0 {
		bal := get(f.native, tx.From)
		if bal.Cmp(tx.Value) < 0 {
			return errors.New("insufficient funds")
		}
		f.native[tx.From] = new(big.Int).Sub(bal, tx.Value)
		f.native[tx.To] = new(big.Int).Add(get(f.native, tx.To), tx.Value)
	}
	if len(tx.Data) < 4 {
		return nil
	}
	switch {
	case bytes.Equal(tx.Data[:4], transferSelector):
		to := common.BytesToAddress(tx.Data[4:36])
		amount := new(big.Int).SetBytes(tx.Data[36:68])
		return f.moveToken(tx.To, tx.From, to, amount)
	case bytes.Equal(tx.Data[:4], approveSelector):
		f.allowance[tx.From] = new(big.Int).SetBytes(tx.Data[36:68])
	default:
		p, ok := f.swaps[string(tx.Data)]
		if !ok {
			return errors.New("unknown calldata")
		}
		if err := f.moveToken(p.Path[0], tx.From, p.Router, p.AmountIn); err != nil {
			return err
		}
		out := new(big.Int).Mul(p.AmountIn, big.NewInt(2))
		book := f.tokenBook(p.Path[1])
		book[p.To] = new(big.Int).Add(get(book, p.To), out)
	}
	return nil
}

func (f *fakeGateway) moveToken(token, from, to common.Address, amount *big.Int) error {
	book := f.tokenBook(token)
	bal := get(book, from)
	if bal.Cmp(amount) < 0 {
		return errors.New("transfer amount exceeds balance")
	}
	book[from] = new(big.Int).Sub(bal, amount)
	book[to] = new(big.Int).Add(get(book, to), amount)
	return nil
}

func (f *fakeGateway) WaitForReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("WaitForReceipt")
	from, ok := f.senders[hash]
	if !ok {
		return nil, errors.New("unknown tx")
	}
	if err := f.waitErr[from]; err != nil {
		return nil, err
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: hash}, nil
}

// QuoteAmountsOut quotes a fixed 1:2 rate.
func (f *fakeGateway) QuoteAmountsOut(_ context.Context, _ common.Address, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("QuoteAmountsOut")
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return []*big.Int{amountIn, new(big.Int).Mul(amountIn, big.NewInt(2))}, nil
}

func (f *fakeGateway) BuildSwapTransaction(p chain.SwapParams) (chain.TxParams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BuildSwapTransaction")
	tx, err := chain.PackSwap(p)
	if err != nil {
		return tx, err
	}
	f.swaps[string(tx.Data)] = p
	return tx, nil
}

func (f *fakeGateway) PairReserves(_ context.Context, pair common.Address) (chain.Reserves, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PairReserves")
	r, ok := f.reserves[pair]
	if !ok {
		return r, errors.New("no such pair")
	}
	return r, nil
}
