package engine

import "github.com/shopspring/decimal"

// RateSource converts amounts in the action's currency into the
// equity's currency.
type RateSource interface {
	Rate(from, to string) (decimal.Decimal, error)
}

// fixedRateSource quotes every pair at 1.0. A real deployment
// injects an FX collaborator here.
// TODO: wire the treasury FX feed once it exposes historical rates.
type fixedRateSource struct{}

func (fixedRateSource) Rate(from, to string) (decimal.Decimal, error) {
	return decimal.New(1, 0), nil
}

// FixedRates returns the unit-rate source used by default.
func FixedRates() RateSource {
	return fixedRateSource{}
}
