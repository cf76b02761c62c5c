package engine

import (
	"github.com/equitylab/gocax/caerrors"
	"github.com/equitylab/gocax/models/enum"
)

// registry is the closed mapping from action type to executor. Every
// supported type is enumerated here; there is no open dispatch.
var registry = map[enum.ActionType]func() Executor{
	enum.Dividend:        func() Executor { return &cashExecutor{kind: enum.Dividend} },
	enum.SpecialDividend: func() Executor { return &cashExecutor{kind: enum.SpecialDividend} },
	enum.ReturnOfCapital: func() Executor { return &cashExecutor{kind: enum.ReturnOfCapital} },
	enum.Distribution:    func() Executor { return &cashExecutor{kind: enum.Distribution} },

	enum.StockSplit:    func() Executor { return &stockExecutor{kind: enum.StockSplit} },
	enum.ReverseSplit:  func() Executor { return &stockExecutor{kind: enum.ReverseSplit} },
	enum.StockDividend: func() Executor { return &stockExecutor{kind: enum.StockDividend} },
	enum.SpinOff:       func() Executor { return &stockExecutor{kind: enum.SpinOff} },

	enum.RightsIssue:     func() Executor { return &rightsExecutor{kind: enum.RightsIssue} },
	enum.Subscription:    func() Executor { return &rightsExecutor{kind: enum.Subscription} },
	enum.WarrantExercise: func() Executor { return &rightsExecutor{kind: enum.WarrantExercise} },

	enum.Merger:        func() Executor { return &restructuringExecutor{kind: enum.Merger} },
	enum.Acquisition:   func() Executor { return &restructuringExecutor{kind: enum.Acquisition} },
	enum.ExchangeOffer: func() Executor { return &restructuringExecutor{kind: enum.ExchangeOffer} },
	enum.TenderOffer:   func() Executor { return &restructuringExecutor{kind: enum.TenderOffer} },

	enum.Delisting:      func() Executor { return &distressExecutor{kind: enum.Delisting} },
	enum.Bankruptcy:     func() Executor { return &distressExecutor{kind: enum.Bankruptcy} },
	enum.Liquidation:    func() Executor { return &distressExecutor{kind: enum.Liquidation} },
	enum.Reorganization: func() Executor { return &distressExecutor{kind: enum.Reorganization} },
}

// Dispatch looks up the executor for an action type. Unmapped types
// are fatal: no retry will make them succeed.
func Dispatch(t enum.ActionType) (Executor, error) {
	ctor, ok := registry[t]
	if !ok {
		return nil, caerrors.UnsupportedType.WithMsg(
			"no executor registered for action type " + string(t))
	}
	return ctor(), nil
}
