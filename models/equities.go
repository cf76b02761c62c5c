package models

import (
	"encoding/json"
	"time"

	"github.com/equitylab/gocax/models/enum"
	"github.com/gofrs/uuid"
	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

// MinTick is the floor for any adjusted market price. Cash
// adjustments can never push a price below this value.
var MinTick = decimal.New(1, -2)

// CapTolerance is the relative tolerance used when checking the
// market_cap = market_price * shares_outstanding invariant.
var CapTolerance = decimal.New(1, -6)

type Equity struct {
	ID                 string                     `json:"id" gorm:"primary_key" sql:"type:uuid;"`
	CreatedAt          time.Time                  `json:"-"`
	UpdatedAt          time.Time                  `json:"-"`
	Symbol             string                     `json:"symbol" gorm:"unique_index:idx_equity_symbol" sql:"type:text"`
	Currency           string                     `json:"currency" sql:"type:varchar(3);default:'USD'"`
	MarketPrice        decimal.Decimal            `json:"market_price" gorm:"type:decimal"`
	SharesOutstanding  decimal.Decimal            `json:"shares_outstanding" gorm:"type:decimal"`
	FloatShares        decimal.Decimal            `json:"float_shares" gorm:"type:decimal"`
	MarketCap          decimal.Decimal            `json:"market_cap" gorm:"type:decimal"`
	CalendarID         string                     `json:"calendar_id" sql:"type:text;default:'XNYS'"`
	Convention         enum.BusinessDayConvention `json:"business_day_convention" sql:"type:text;default:'FOLLOWING'"`
	IsActive           bool                       `json:"is_active" sql:"default:true"`
	IsTradingSuspended bool                       `json:"is_trading_suspended" sql:"default:false"`
	IsLocked           bool                       `json:"-" sql:"default:false"`
	// monotonic counter bumped on every successful save, used for
	// optimistic concurrency on commit
	Version         uint       `json:"version" sql:"default:0"`
	LastProcessedAt *time.Time `json:"last_processed_at"`
}

func (e *Equity) BeforeCreate(scope *gorm.Scope) error {
	if e.ID == "" {
		e.ID = uuid.Must(uuid.NewV4()).String()
	}
	return scope.SetColumn("id", e.ID)
}

func (e *Equity) IDAsUUID() uuid.UUID {
	id, _ := uuid.FromString(e.ID)
	return id
}

// ConsistentMarketCap reports whether the stored market cap matches
// price * shares outstanding within the relative tolerance.
func (e *Equity) ConsistentMarketCap() bool {
	implied := e.MarketPrice.Mul(e.SharesOutstanding)
	diff := e.MarketCap.Sub(implied).Abs()
	if implied.Equal(decimal.Zero) {
		return diff.Equal(decimal.Zero)
	}
	return diff.Div(implied.Abs()).LessThanOrEqual(CapTolerance)
}

// Snapshot serializes the full equity state for the history log.
func (e *Equity) Snapshot() json.RawMessage {
	buf, _ := json.Marshal(e)
	return buf
}

// RestoreSnapshot overwrites the mutable market state from a snapshot
// taken by Snapshot. Identity fields and the version counter are kept.
func (e *Equity) RestoreSnapshot(raw json.RawMessage) error {
	snap := Equity{}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return err
	}
	e.MarketPrice = snap.MarketPrice
	e.SharesOutstanding = snap.SharesOutstanding
	e.FloatShares = snap.FloatShares
	e.MarketCap = snap.MarketCap
	e.IsActive = snap.IsActive
	e.IsTradingSuspended = snap.IsTradingSuspended
	return nil
}
