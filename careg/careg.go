package careg

import (
	"github.com/alpacahq/gopaca/env"
	"github.com/equitylab/gocax/engine"
	"github.com/equitylab/gocax/service/action"
	"github.com/equitylab/gocax/service/equity"
	"github.com/equitylab/gocax/service/history"
	"github.com/equitylab/gocax/service/registry"
)

var (
	Services       registry.Registry
	ActionRequests = env.GetVar("ACTION_REQUESTS_QUEUE")
)

type caRegistry struct{}

func (r *caRegistry) Equity() equity.EquityService {
	return equity.Service()
}

func (r *caRegistry) CorporateAction() action.CorporateActionService {
	return action.Service()
}

func (r *caRegistry) History() history.HistoryService {
	return history.Service()
}

func init() {
	Services = &caRegistry{}
}

// Engine builds an execution engine wired to the default services and
// the fixed FX rate source.
func Engine() *engine.Engine {
	return engine.New(
		Services.Equity(),
		Services.CorporateAction(),
		Services.History(),
		engine.FixedRates(),
	)
}
