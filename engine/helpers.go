package engine

import (
	"github.com/equitylab/gocax/caerrors"
	"github.com/shopspring/decimal"
)

var one = decimal.New(1, 0)

func val(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func positive(d *decimal.Decimal) bool {
	return d != nil && d.GreaterThan(decimal.Zero)
}

// verifyMarketCap is the shared post-execution check: the mutated
// equity must satisfy market_cap = market_price * shares_outstanding
// within tolerance, and the price must not have gone negative.
func verifyMarketCap(ctx *Context) error {
	if ctx.Equity.MarketPrice.IsNegative() {
		return caerrors.PostConditionFailed.WithMsg("market price is negative after execution")
	}
	if !ctx.Equity.ConsistentMarketCap() {
		return caerrors.PostConditionFailed.WithMsg("market cap is inconsistent with price and shares outstanding")
	}
	return nil
}
