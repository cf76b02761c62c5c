package engine

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/equitylab/gocax/models"
	"github.com/equitylab/gocax/models/enum"
	"github.com/shopspring/decimal"
)

// cashExecutor handles the cash-distribution family: dividends,
// special dividends, returns of capital and generic distributions.
// They all share one formula: the per-share net payout comes off the
// market price, floored at the minimum tick.
type cashExecutor struct {
	kind enum.ActionType
}

func (x *cashExecutor) ValidatePrerequisites(ctx *Context) error {
	a := ctx.Action
	e := ctx.Equity

	if err := validation.Validate(a.DividendAmount, validation.Required); err != nil {
		ctx.Invalidate("distribution amount is required")
	} else if !positive(a.DividendAmount) {
		ctx.Invalidate("distribution amount must be positive")
	}

	if err := validation.Validate(a.EligibleShares, validation.Required); err != nil {
		ctx.Invalidate("eligible shares are required")
	} else if !positive(a.EligibleShares) {
		ctx.Invalidate("eligible shares must be positive")
	}

	if a.IsTaxable && a.TaxRate != nil {
		if a.TaxRate.IsNegative() || a.TaxRate.GreaterThan(one) {
			ctx.Invalidate("tax rate must be between 0 and 1")
		}
	}

	if !e.MarketPrice.GreaterThan(decimal.Zero) {
		ctx.Invalidate("equity market price must be positive")
	}

	if !e.SharesOutstanding.GreaterThan(decimal.Zero) {
		ctx.Invalidate("equity shares outstanding must be positive")
	}

	if !e.IsActive {
		ctx.Invalidate("equity is inactive")
	}

	if a.Currency != e.Currency {
		ctx.Invalidate(fmt.Sprintf(
			"action currency %s does not match equity currency %s",
			a.Currency, e.Currency))
	}

	// chronology is enforced on the business-day-adjusted dates
	if a.ExDate != nil && a.RecordDate != nil && !a.ExDate.Before(*a.RecordDate) {
		ctx.Invalidate("ex-date must precede record date")
	}
	if a.RecordDate != nil && a.PaymentDate != nil && a.RecordDate.After(*a.PaymentDate) {
		ctx.Invalidate("record date must not be after payment date")
	}

	return nil
}

func (x *cashExecutor) CalculateImpacts(ctx *Context) (Impacts, error) {
	a := ctx.Action
	e := ctx.Equity

	gross := val(a.DividendAmount)

	taxRate := decimal.Zero
	if a.IsTaxable && a.TaxRate != nil {
		taxRate = *a.TaxRate
	}

	// the amount is only taxed down when it was quoted gross
	net := gross
	if a.GrossIndicator {
		net = gross.Mul(one.Sub(taxRate))
	}

	payout := net.Mul(val(a.EligibleShares))
	payoutLocal := payout.Mul(ctx.FXRate)

	adjustment := payoutLocal.Div(e.SharesOutstanding)

	newPrice := e.MarketPrice.Sub(adjustment)
	if newPrice.LessThan(models.MinTick) {
		newPrice = models.MinTick
	}

	return Impacts{
		"gross_amount":     gross,
		"tax_rate":         taxRate,
		"net_amount":       net,
		"total_payout":     payoutLocal,
		"price_adjustment": adjustment,
		"new_price":        newPrice,
		"new_market_cap":   newPrice.Mul(e.SharesOutstanding),
	}, nil
}

func (x *cashExecutor) ExecuteAction(ctx *Context, impacts Impacts) (*Transition, error) {
	e := ctx.Equity
	before := e.Snapshot()

	e.MarketPrice = impacts["new_price"]
	e.MarketCap = e.MarketPrice.Mul(e.SharesOutstanding)

	return &Transition{
		OriginalState: before,
		NewState:      e.Snapshot(),
		AdjustmentsApplied: []string{
			fmt.Sprintf("market_price reduced by %s per share", impacts["price_adjustment"].String()),
		},
	}, nil
}

func (x *cashExecutor) PostExecutionValidation(ctx *Context, impacts Impacts) error {
	return verifyMarketCap(ctx)
}
