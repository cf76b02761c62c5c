package engine

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/models/enum"
	"github.com/shopspring/decimal"
)

// allocationTolerance bounds how far the parent + spin-off cost
// basis allocations may drift from summing to exactly 1.
var allocationTolerance = decimal.New(1, -3)

// stockExecutor handles the multiplier-based share-change family:
// splits, reverse splits, stock dividends and spin-offs. Splits and
// stock dividends are value-preserving; spin-offs carve value out of
// the parent.
type stockExecutor struct {
	kind enum.ActionType
}

// multiplier derives the share multiplier for the action. A ratio
// a:b yields b/a, so a 2-for-1 forward split doubles the share count
// and a 1-for-10 reverse split divides it by ten.
func (x *stockExecutor) multiplier(ctx *Context) decimal.Decimal {
	a := ctx.Action

	switch x.kind {
	case enum.StockSplit, enum.ReverseSplit:
		from := val(a.SplitRatioFrom)
		to := val(a.SplitRatioTo)
		if from.Equal(decimal.Zero) {
			return decimal.Zero
		}
		return to.Div(from)
	case enum.StockDividend:
		return one.Add(val(a.DistributionRatio))
	}
	return one
}

func (x *stockExecutor) ValidatePrerequisites(ctx *Context) error {
	a := ctx.Action
	e := ctx.Equity

	if !e.MarketPrice.GreaterThan(decimal.Zero) {
		ctx.Invalidate("equity market price must be positive")
	}
	if !e.SharesOutstanding.GreaterThan(decimal.Zero) {
		ctx.Invalidate("equity shares outstanding must be positive")
	}
	if !e.IsActive {
		ctx.Invalidate("equity is inactive")
	}

	switch x.kind {
	case enum.StockSplit, enum.ReverseSplit:
		if !positive(a.SplitRatioFrom) || !positive(a.SplitRatioTo) {
			ctx.Invalidate("split ratio must have positive from and to terms")
			return nil
		}
		m := x.multiplier(ctx)
		if x.kind == enum.StockSplit && !m.GreaterThan(one) {
			ctx.Invalidate("forward split multiplier must be greater than 1")
		}
		if x.kind == enum.ReverseSplit && !(m.GreaterThan(decimal.Zero) && m.LessThan(one)) {
			ctx.Invalidate("reverse split multiplier must be between 0 and 1")
		}

	case enum.StockDividend:
		if !positive(a.DistributionRatio) {
			ctx.Invalidate("distribution ratio must be positive")
		}

	case enum.SpinOff:
		if !positive(a.DistributionRatio) {
			ctx.Invalidate("distribution ratio must be positive")
		}
		if !positive(a.SpinOffFairValue) {
			ctx.Invalidate("spin-off fair value must be positive")
		}
		if err := validation.Validate(a.ParentCostBasisAllocation, validation.Required); err != nil {
			ctx.Invalidate("parent cost basis allocation is required")
		}
		if err := validation.Validate(a.SpinOffCostBasisAllocation, validation.Required); err != nil {
			ctx.Invalidate("spin-off cost basis allocation is required")
		}
		if a.ParentCostBasisAllocation != nil && a.SpinOffCostBasisAllocation != nil {
			sum := a.ParentCostBasisAllocation.Add(*a.SpinOffCostBasisAllocation)
			if sum.Sub(one).Abs().GreaterThan(allocationTolerance) {
				ctx.Invalidate("cost basis allocations must sum to 1.0")
			}
		}
	}

	return nil
}

func (x *stockExecutor) CalculateImpacts(ctx *Context) (Impacts, error) {
	e := ctx.Equity

	if x.kind == enum.SpinOff {
		a := ctx.Action
		distributed := e.SharesOutstanding.Mul(val(a.DistributionRatio))
		reduction := val(a.SpinOffFairValue).Mul(val(a.DistributionRatio))

		newPrice := e.MarketPrice.Sub(reduction)
		if newPrice.LessThan(models.MinTick) {
			newPrice = models.MinTick
		}

		return Impacts{
			"shares_distributed": distributed,
			"value_reduction":    reduction,
			"new_price":          newPrice,
			"new_market_cap":     newPrice.Mul(e.SharesOutstanding),
		}, nil
	}

	m := x.multiplier(ctx)
	newShares := e.SharesOutstanding.Mul(m)
	newPrice := e.MarketPrice.Div(m)

	return Impacts{
		"multiplier":           m,
		"new_shares":           newShares,
		"new_price":            newPrice,
		"new_market_cap":       newPrice.Mul(newShares),
		"pre_event_market_cap": e.MarketPrice.Mul(e.SharesOutstanding),
	}, nil
}

func (x *stockExecutor) ExecuteAction(ctx *Context, impacts Impacts) (*Transition, error) {
	e := ctx.Equity
	before := e.Snapshot()

	if x.kind == enum.SpinOff {
		e.MarketPrice = impacts["new_price"]
		e.MarketCap = e.MarketPrice.Mul(e.SharesOutstanding)

		return &Transition{
			OriginalState: before,
			NewState:      e.Snapshot(),
			AdjustmentsApplied: []string{
				fmt.Sprintf("parent value reduced by %s per share", impacts["value_reduction"].String()),
				fmt.Sprintf("%s spin-off shares distributed", impacts["shares_distributed"].String()),
			},
		}, nil
	}

	m := impacts["multiplier"]

	e.SharesOutstanding = impacts["new_shares"]
	e.FloatShares = e.FloatShares.Mul(m)
	e.MarketPrice = impacts["new_price"]
	e.MarketCap = e.MarketPrice.Mul(e.SharesOutstanding)

	return &Transition{
		OriginalState: before,
		NewState:      e.Snapshot(),
		AdjustmentsApplied: []string{
			fmt.Sprintf("shares outstanding scaled by %s", m.String()),
			fmt.Sprintf("market price divided by %s", m.String()),
		},
	}, nil
}

func (x *stockExecutor) PostExecutionValidation(ctx *Context, impacts Impacts) error {
	if err := verifyMarketCap(ctx); err != nil {
		return err
	}

	if x.kind == enum.SpinOff {
		return nil
	}

	// splits and stock dividends must preserve value against the cap
	// captured before the mutation
	beforeCap := impacts["pre_event_market_cap"]
	afterCap := ctx.Equity.MarketPrice.Mul(ctx.Equity.SharesOutstanding)
	diff := afterCap.Sub(beforeCap).Abs()
	if beforeCap.GreaterThan(decimal.Zero) &&
		diff.Div(beforeCap).GreaterThan(models.CapTolerance) {
		return caerrors.PostConditionFailed.WithMsg("share change did not preserve market value")
	}

	return nil
}
