package custody

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/ligun0805/wallet-rotator/internal/chain"
)

// ErrEmptyPool is returned when the priced side of a pair has no reserve.
var ErrEmptyPool = errors.New("pair has no reserve for token")

// PairQuote is the spot price of Token inside a V2 pair.
type PairQuote struct {
	Pair         common.Address
	Token        common.Address
	ReserveToken *big.Int
	ReserveOther *big.Int
	// Price is ReserveOther / ReserveToken in raw units.
	Price decimal.Decimal
	KLast *big.Int
}

const pricePrecision = 18

// PairPrice reads the reserves of pair and prices token against the other side.
func PairPrice(ctx context.Context, gw chain.Gateway, pair, token common.Address) (PairQuote, error) {
	r, err := gw.PairReserves(ctx, pair)
	if err != nil {
		return PairQuote{}, fmt.Errorf("reserves %s: %w", pair.Hex(), err)
	}
	q := PairQuote{Pair: pair, Token: token, KLast: r.KLast}
	if r.Token0 == token {
		q.ReserveToken, q.ReserveOther = r.Reserve0, r.Reserve1
	} else {
		q.ReserveToken, q.ReserveOther = r.Reserve1, r.Reserve0
	}
	if q.ReserveToken == nil || q.ReserveToken.Sign() == 0 {
		return q, ErrEmptyPool
	}
	q.Price = decimal.NewFromBigInt(q.ReserveOther, 0).
		DivRound(decimal.NewFromBigInt(q.ReserveToken, 0), pricePrecision)
	return q, nil
}
