package engine

import (
	"fmt"

	"github.com/equitylab/gocax/models/enum"
	"github.com/shopspring/decimal"
)

// rightsExecutor handles rights issues, subscriptions and warrant
// exercises. All three price the dilution with the theoretical
// ex-rights formula; subscriptions defer the share issuance until
// the allotment is known.
type rightsExecutor struct {
	kind enum.ActionType
}

func (x *rightsExecutor) terms(ctx *Context) (price, ratio decimal.Decimal) {
	a := ctx.Action
	if x.kind == enum.WarrantExercise {
		return val(a.ExercisePrice), val(a.ExerciseRatio)
	}
	return val(a.SubscriptionPrice), val(a.SubscriptionRatio)
}

func (x *rightsExecutor) ValidatePrerequisites(ctx *Context) error {
	e := ctx.Equity
	price, ratio := x.terms(ctx)

	if !e.MarketPrice.GreaterThan(decimal.Zero) {
		ctx.Invalidate("equity market price must be positive")
	}
	if !e.SharesOutstanding.GreaterThan(decimal.Zero) {
		ctx.Invalidate("equity shares outstanding must be positive")
	}
	if !e.IsActive {
		ctx.Invalidate("equity is inactive")
	}

	if !price.GreaterThan(decimal.Zero) {
		ctx.Invalidate("subscription price must be positive")
		return nil
	}
	if !ratio.GreaterThan(decimal.Zero) {
		ctx.Invalidate("subscription ratio must be positive")
		return nil
	}

	// the right only has value while the subscription price sits
	// below the market price
	if !price.LessThan(e.MarketPrice) {
		ctx.Invalidate("subscription price must be below market price")
	}

	return nil
}

// exRightsPrice computes the theoretical ex-rights (or ex-warrant)
// price: (market + subscription/ratio) / (1 + 1/ratio).
func exRightsPrice(market, subscription, ratio decimal.Decimal) decimal.Decimal {
	numerator := market.Add(subscription.Div(ratio))
	denominator := one.Add(one.Div(ratio))
	return numerator.Div(denominator)
}

func (x *rightsExecutor) CalculateImpacts(ctx *Context) (Impacts, error) {
	e := ctx.Equity
	price, ratio := x.terms(ctx)

	exPrice := exRightsPrice(e.MarketPrice, price, ratio)
	intrinsic := e.MarketPrice.Sub(exPrice)

	// one new share per `ratio` existing shares
	issuable := e.SharesOutstanding.Div(ratio)
	proceeds := issuable.Mul(price)

	impacts := Impacts{
		"ex_rights_price": exPrice,
		"intrinsic_value": intrinsic,
		"shares_issuable": issuable,
		"gross_proceeds":  proceeds,
	}

	if x.kind == enum.Subscription && ctx.Action.SharesAllotted != nil {
		impacts["shares_allotted"] = *ctx.Action.SharesAllotted
	}

	return impacts, nil
}

func (x *rightsExecutor) ExecuteAction(ctx *Context, impacts Impacts) (*Transition, error) {
	e := ctx.Equity
	a := ctx.Action
	before := e.Snapshot()

	if x.kind == enum.Subscription {
		// two-phase commitment: no state change until the allotment
		// is populated - applying earlier is impact-only
		if a.SharesAllotted == nil {
			return &Transition{
				OriginalState:      before,
				NewState:           before,
				AdjustmentsApplied: []string{"awaiting allotment; no state change"},
			}, nil
		}

		price, _ := x.terms(ctx)
		allotted := *a.SharesAllotted

		oldCap := e.MarketPrice.Mul(e.SharesOutstanding)
		newShares := e.SharesOutstanding.Add(allotted)

		e.SharesOutstanding = newShares
		e.MarketPrice = oldCap.Add(allotted.Mul(price)).Div(newShares)
		e.MarketCap = e.MarketPrice.Mul(newShares)

		return &Transition{
			OriginalState: before,
			NewState:      e.Snapshot(),
			AdjustmentsApplied: []string{
				fmt.Sprintf("%s shares allotted at %s", allotted.String(), price.String()),
			},
		}, nil
	}

	e.SharesOutstanding = e.SharesOutstanding.Add(impacts["shares_issuable"])
	e.MarketPrice = impacts["ex_rights_price"]
	e.MarketCap = e.MarketPrice.Mul(e.SharesOutstanding)

	return &Transition{
		OriginalState: before,
		NewState:      e.Snapshot(),
		AdjustmentsApplied: []string{
			fmt.Sprintf("%s shares issued", impacts["shares_issuable"].String()),
			fmt.Sprintf("market price moved to theoretical ex price %s", impacts["ex_rights_price"].String()),
		},
	}, nil
}

func (x *rightsExecutor) PostExecutionValidation(ctx *Context, impacts Impacts) error {
	return verifyMarketCap(ctx)
}
