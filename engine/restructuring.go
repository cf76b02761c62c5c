package engine

import (
	"fmt"

	"github.com/equitylab/gocax/models/enum"
	"github.com/shopspring/decimal"
)

// restructuringExecutor handles mergers, acquisitions, exchange
// offers and tender offers against the target equity. Valuation is
// method-dependent; the exchange ratio is back-solved from the two
// market prices when the action does not supply one.
type restructuringExecutor struct {
	kind enum.ActionType
}

func (x *restructuringExecutor) stockBased(ctx *Context) bool {
	if x.kind == enum.ExchangeOffer {
		return true
	}
	return ctx.Action.Method == enum.StockMethod || ctx.Action.Method == enum.MixedMethod
}

func (x *restructuringExecutor) cashBased(ctx *Context) bool {
	if x.kind == enum.TenderOffer {
		return true
	}
	return ctx.Action.Method == enum.CashMethod || ctx.Action.Method == enum.MixedMethod
}

func (x *restructuringExecutor) ValidatePrerequisites(ctx *Context) error {
	a := ctx.Action
	e := ctx.Equity

	if !e.MarketPrice.GreaterThan(decimal.Zero) {
		ctx.Invalidate("target market price must be positive")
	}
	if !e.SharesOutstanding.GreaterThan(decimal.Zero) {
		ctx.Invalidate("target shares outstanding must be positive")
	}
	if !e.IsActive {
		ctx.Invalidate("target equity is inactive")
	}

	if x.kind == enum.Merger || x.kind == enum.Acquisition {
		if a.Method == "" {
			ctx.Invalidate("acquisition method is required")
			return nil
		}
	}

	if x.cashBased(ctx) && !positive(a.OfferPrice) {
		ctx.Invalidate("offer price must be positive")
	}

	if x.stockBased(ctx) {
		if ctx.Acquirer == nil {
			ctx.Invalidate("acquirer equity is required for stock consideration")
		} else if !ctx.Acquirer.MarketPrice.GreaterThan(decimal.Zero) {
			ctx.Invalidate("acquirer market price must be positive")
		}
		if a.ExchangeRatio != nil && !a.ExchangeRatio.GreaterThan(decimal.Zero) {
			ctx.Invalidate("exchange ratio must be positive")
		}
	}

	if x.kind == enum.TenderOffer {
		if a.SharesTendered != nil && a.SharesTendered.GreaterThan(e.SharesOutstanding) {
			ctx.Invalidate("shares tendered exceed shares outstanding")
		}
	}

	return nil
}

func (x *restructuringExecutor) CalculateImpacts(ctx *Context) (Impacts, error) {
	a := ctx.Action
	e := ctx.Equity

	targetShares := e.SharesOutstanding
	marketValue := e.MarketPrice.Mul(targetShares)

	impacts := Impacts{
		"target_shares": targetShares,
		"market_value":  marketValue,
	}

	perShare := decimal.Zero

	if x.cashBased(ctx) {
		perShare = perShare.Add(val(a.OfferPrice))
	}

	if x.stockBased(ctx) {
		ratio := val(a.ExchangeRatio)
		if a.ExchangeRatio == nil {
			// back-solve the implied ratio from the two prices
			ratio = e.MarketPrice.Div(ctx.Acquirer.MarketPrice)
			impacts["implied_exchange_ratio"] = ratio
		}
		perShare = perShare.Add(ctx.Acquirer.MarketPrice.Mul(ratio))
	}

	totalValue := perShare.Mul(targetShares)
	impacts["per_share_value"] = perShare
	impacts["total_value"] = totalValue

	if marketValue.GreaterThan(decimal.Zero) {
		impacts["implied_premium"] = totalValue.Sub(marketValue).Div(marketValue)
	}

	if x.kind == enum.TenderOffer {
		tendered := val(a.SharesTendered)
		accepted := tendered
		proration := one

		if a.MaximumSharesSought != nil &&
			tendered.GreaterThan(*a.MaximumSharesSought) {
			proration = a.MaximumSharesSought.Div(tendered)
			accepted = tendered.Mul(proration)
		}

		impacts["proration_factor"] = proration
		impacts["shares_accepted"] = accepted
	}

	return impacts, nil
}

func (x *restructuringExecutor) ExecuteAction(ctx *Context, impacts Impacts) (*Transition, error) {
	e := ctx.Equity
	before := e.Snapshot()

	if x.kind == enum.TenderOffer {
		// accepted shares are bought back and retired
		accepted := impacts["shares_accepted"]

		e.SharesOutstanding = e.SharesOutstanding.Sub(accepted)
		e.MarketCap = e.MarketPrice.Mul(e.SharesOutstanding)

		return &Transition{
			OriginalState: before,
			NewState:      e.Snapshot(),
			AdjustmentsApplied: []string{
				fmt.Sprintf("%s tendered shares accepted (proration %s)",
					accepted.String(), impacts["proration_factor"].String()),
			},
		}, nil
	}

	// the target converges on the per-share deal value
	e.MarketPrice = impacts["per_share_value"]
	e.MarketCap = e.MarketPrice.Mul(e.SharesOutstanding)

	if ctx.Action.SuspendTrading {
		e.IsTradingSuspended = true
	}

	return &Transition{
		OriginalState: before,
		NewState:      e.Snapshot(),
		AdjustmentsApplied: []string{
			fmt.Sprintf("market price set to deal value %s per share", impacts["per_share_value"].String()),
		},
	}, nil
}

func (x *restructuringExecutor) PostExecutionValidation(ctx *Context, impacts Impacts) error {
	return verifyMarketCap(ctx)
}
