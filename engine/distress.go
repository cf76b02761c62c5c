package engine

import (
	"fmt"

	"github.com/equitylab/gocax/models/enum"
	"github.com/shopspring/decimal"
)

// distressExecutor handles terminal-value events: delistings,
// bankruptcies, liquidations and reorganizations.
type distressExecutor struct {
	kind enum.ActionType
}

func (x *distressExecutor) ValidatePrerequisites(ctx *Context) error {
	a := ctx.Action
	e := ctx.Equity

	if !e.SharesOutstanding.GreaterThan(decimal.Zero) {
		ctx.Invalidate("equity shares outstanding must be positive")
	}

	switch x.kind {
	case enum.Bankruptcy:
		if a.Chapter == "" {
			ctx.Invalidate("bankruptcy chapter is required")
		}
		if a.Chapter == enum.Chapter11 {
			if a.RecoveryRate == nil {
				ctx.Invalidate("recovery rate is required for chapter 11")
			} else if a.RecoveryRate.IsNegative() || a.RecoveryRate.GreaterThan(one) {
				ctx.Invalidate("recovery rate must be between 0 and 1")
			}
		}

	case enum.Liquidation:
		if a.ProceedsPerShare != nil && a.ProceedsPerShare.IsNegative() {
			ctx.Invalidate("proceeds per share must not be negative")
		}

	case enum.Reorganization:
		if a.ConversionRatio != nil && !a.ConversionRatio.GreaterThan(decimal.Zero) {
			ctx.Invalidate("conversion ratio must be positive")
		}
	}

	return nil
}

func (x *distressExecutor) CalculateImpacts(ctx *Context) (Impacts, error) {
	a := ctx.Action
	e := ctx.Equity

	preEventValue := e.MarketPrice.Mul(e.SharesOutstanding)

	impacts := Impacts{
		"pre_event_value": preEventValue,
	}

	switch x.kind {
	case enum.Bankruptcy:
		// chapter 7 wipes the equity regardless of any supplied
		// recovery rate
		if a.Chapter == enum.Chapter7 {
			impacts["recovery_value"] = decimal.Zero
			impacts["new_price"] = decimal.Zero
			break
		}

		recovery := preEventValue.Mul(val(a.RecoveryRate))
		impacts["recovery_value"] = recovery
		impacts["new_price"] = recovery.Div(e.SharesOutstanding)

	case enum.Liquidation:
		proceeds := val(a.ProceedsPerShare)
		impacts["proceeds_per_share"] = proceeds
		impacts["new_price"] = proceeds

	case enum.Reorganization:
		ratio := one
		if a.ConversionRatio != nil {
			ratio = *a.ConversionRatio
		}
		newShares := e.SharesOutstanding.Mul(ratio)
		impacts["conversion_ratio"] = ratio
		impacts["new_shares"] = newShares
		impacts["new_price"] = preEventValue.Div(newShares)

	case enum.Delisting:
		impacts["new_price"] = e.MarketPrice
	}

	return impacts, nil
}

func (x *distressExecutor) ExecuteAction(ctx *Context, impacts Impacts) (*Transition, error) {
	a := ctx.Action
	e := ctx.Equity
	before := e.Snapshot()

	applied := []string{}

	switch x.kind {
	case enum.Bankruptcy:
		e.MarketPrice = impacts["new_price"]
		e.MarketCap = e.MarketPrice.Mul(e.SharesOutstanding)
		e.IsTradingSuspended = true
		applied = append(applied, fmt.Sprintf("price set to %s under %s", e.MarketPrice.String(), a.Chapter))
		if a.Chapter == enum.Chapter7 {
			e.IsActive = false
			e.MarketCap = decimal.Zero
			applied = append(applied, "equity deactivated")
		}

	case enum.Liquidation:
		e.MarketPrice = impacts["new_price"]
		e.MarketCap = e.MarketPrice.Mul(e.SharesOutstanding)
		e.IsTradingSuspended = true
		e.IsActive = false
		applied = append(applied,
			fmt.Sprintf("price set to liquidation proceeds %s per share", e.MarketPrice.String()))

	case enum.Reorganization:
		e.SharesOutstanding = impacts["new_shares"]
		e.MarketPrice = impacts["new_price"]
		e.MarketCap = e.MarketPrice.Mul(e.SharesOutstanding)
		applied = append(applied,
			fmt.Sprintf("shares converted at ratio %s", impacts["conversion_ratio"].String()))
		if a.SuspendTrading {
			e.IsTradingSuspended = true
			applied = append(applied, "trading suspended")
		}

	case enum.Delisting:
		e.MarketCap = e.MarketPrice.Mul(e.SharesOutstanding)
		e.IsTradingSuspended = true
		e.IsActive = false
		applied = append(applied, "equity delisted; trading suspended")
	}

	return &Transition{
		OriginalState:      before,
		NewState:           e.Snapshot(),
		AdjustmentsApplied: applied,
	}, nil
}

func (x *distressExecutor) PostExecutionValidation(ctx *Context, impacts Impacts) error {
	return verifyMarketCap(ctx)
}
