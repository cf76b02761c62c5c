package registry

import (
	"github.com/equitylab/gocax/service/action"
	"github.com/equitylab/gocax/service/equity"
	"github.com/equitylab/gocax/service/history"
)

type Registry interface {
	Equity() equity.EquityService
	CorporateAction() action.CorporateActionService
	History() history.HistoryService
}
