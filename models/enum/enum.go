package enum

type ActionType string

const (
	// cash distributions
	Dividend        ActionType = "DIVIDEND"
	SpecialDividend ActionType = "SPECIAL_DIVIDEND"
	ReturnOfCapital ActionType = "RETURN_OF_CAPITAL"
	Distribution    ActionType = "DISTRIBUTION"
	// stock changes
	StockSplit    ActionType = "STOCK_SPLIT"
	ReverseSplit  ActionType = "REVERSE_SPLIT"
	StockDividend ActionType = "STOCK_DIVIDEND"
	SpinOff       ActionType = "SPIN_OFF"
	// rights & warrants
	RightsIssue     ActionType = "RIGHTS_ISSUE"
	Subscription    ActionType = "SUBSCRIPTION"
	WarrantExercise ActionType = "WARRANT_EXERCISE"
	// restructurings
	Merger        ActionType = "MERGER"
	Acquisition   ActionType = "ACQUISITION"
	ExchangeOffer ActionType = "EXCHANGE_OFFER"
	TenderOffer   ActionType = "TENDER_OFFER"
	// distress / delisting
	Delisting      ActionType = "DELISTING"
	Bankruptcy     ActionType = "BANKRUPTCY"
	Liquidation    ActionType = "LIQUIDATION"
	Reorganization ActionType = "REORGANIZATION"
)

type ActionFamily string

const (
	CashFamily          ActionFamily = "CASH"
	StockFamily         ActionFamily = "STOCK"
	RightsFamily        ActionFamily = "RIGHTS"
	RestructuringFamily ActionFamily = "RESTRUCTURING"
	DistressFamily      ActionFamily = "DISTRESS"
)

func (t ActionType) Family() ActionFamily {
	switch t {
	case Dividend, SpecialDividend, ReturnOfCapital, Distribution:
		return CashFamily
	case StockSplit, ReverseSplit, StockDividend, SpinOff:
		return StockFamily
	case RightsIssue, Subscription, WarrantExercise:
		return RightsFamily
	case Merger, Acquisition, ExchangeOffer, TenderOffer:
		return RestructuringFamily
	case Delisting, Bankruptcy, Liquidation, Reorganization:
		return DistressFamily
	}
	return ""
}

func ValidActionType(t ActionType) bool {
	return t.Family() != ""
}

type ActionStatus string

const (
	// created by the upstream submitter, waiting to be claimed
	ActionPending ActionStatus = "PENDING"
	// claimed by a worker, executing under the equity lock
	ActionProcessing ActionStatus = "PROCESSING"
	// executed successfully (terminal unless rolled back)
	ActionClosed ActionStatus = "CLOSED"
	// failed; retryable while retry_count < max_retries
	ActionFailed ActionStatus = "FAILED"
	// cancelled before it was claimed
	ActionCancelled ActionStatus = "CANCELLED"
	// voluntary action past its expiration date
	ActionExpired ActionStatus = "EXPIRED"
	// parked by an operator
	ActionOnHold ActionStatus = "ON_HOLD"
)

// Terminal statuses are never picked up by the scheduler again.
func (s ActionStatus) Terminal() bool {
	return s == ActionCancelled || s == ActionExpired
}

type ActionPriority string

const (
	Urgent ActionPriority = "URGENT"
	High   ActionPriority = "HIGH"
	Normal ActionPriority = "NORMAL"
	Low    ActionPriority = "LOW"
)

// Blocking returns true if actions of this priority must run
// strictly sequentially rather than being fanned out to the pool.
func (p ActionPriority) Blocking() bool {
	return p == Urgent || p == High
}

func (p ActionPriority) Rank() int {
	switch p {
	case Urgent:
		return 0
	case High:
		return 1
	case Normal:
		return 2
	case Low:
		return 3
	}
	return 4
}

type ProcessingMode string

const (
	Automatic ProcessingMode = "AUTOMATIC"
	Manual    ProcessingMode = "MANUAL"
)

type BusinessDayConvention string

const (
	Following         BusinessDayConvention = "FOLLOWING"
	ModifiedFollowing BusinessDayConvention = "MODIFIED_FOLLOWING"
	Preceding         BusinessDayConvention = "PRECEDING"
	ModifiedPreceding BusinessDayConvention = "MODIFIED_PRECEDING"
	Unadjusted        BusinessDayConvention = "NONE"
)

type AcquisitionMethod string

const (
	CashMethod  AcquisitionMethod = "CASH"
	StockMethod AcquisitionMethod = "STOCK"
	MixedMethod AcquisitionMethod = "MIXED"
)

type BankruptcyChapter string

const (
	Chapter7  BankruptcyChapter = "CHAPTER_7"
	Chapter11 BankruptcyChapter = "CHAPTER_11"
)
