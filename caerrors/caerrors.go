package caerrors

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Class buckets failures by how the engine should react to them.
type Class string

const (
	// prerequisite or post-condition failed - terminal until an
	// operator rolls back or corrects input
	Validation Class = "VALIDATION"
	// storage / connectivity - retried with bounded backoff
	TransientInfra Class = "TRANSIENT_INFRA"
	// equity already locked - expected to self-resolve, retried
	// more aggressively
	LockConflict Class = "LOCK_CONFLICT"
	// no executor registered for the action type - fatal
	UnsupportedActionType Class = "UNSUPPORTED_ACTION_TYPE"
	// double rollback or missing history log - fatal
	Rollback Class = "ROLLBACK"
	// referenced record absent - fatal
	NotFound Class = "NOT_FOUND"
	Internal Class = "INTERNAL"
)

// RetryPolicy returns the bounded retry parameters for the class.
// A zero attempt count means the failure is never auto-retried.
func (c Class) RetryPolicy() (attempts int, delay time.Duration) {
	switch c {
	case TransientInfra:
		return 2, 120 * time.Second
	case LockConflict:
		return 5, 60 * time.Second
	}
	return 0, 0
}

// IException provides interface for
//   - caller facing error message with failure class
//   - raw error for tracking them
type IException interface {
	ExceptionBody() map[string]interface{}
	ExceptionClass() Class
	RawException() error
}

type Error struct {
	IException
	Code     int
	Class    Class
	Message  string
	RawError error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (Code = %v)", e.Message, e.Code)
}

func (e *Error) ExceptionBody() map[string]interface{} {
	return map[string]interface{}{"code": e.Code, "class": e.Class, "message": e.Message}
}

func (e *Error) ExceptionClass() Class {
	return e.Class
}

func (e *Error) RawException() error {
	return e.RawError
}

// WithMsg modify caller visible message
func (e Error) WithMsg(msg string) *Error {
	e.Message = msg
	return &e
}

// WithError returns raw error struct which is not exposed to the caller.
// It is used for internal error tracking.
func (e Error) WithError(err error) *Error {
	e.RawError = err
	return &e
}

func New(code int, message string, class Class) *Error {
	return &Error{Code: code, Message: message, Class: class}
}

func Format(err error) string {
	var errmsg string
	if caerr, ok := err.(IException); ok {
		if caerr.RawException() != nil {
			errmsg = fmt.Sprintf("%v : %v", err.Error(), caerr.RawException().Error())
		} else {
			errmsg = fmt.Sprintf("%v", err.Error())
		}
	} else {
		errmsg = fmt.Sprintf("%v", err.Error())
	}
	return errmsg
}

// ClassOf returns the failure class of any error. Errors that do not
// carry one are treated as transient infrastructure failures, so an
// unclassified storage error still gets its bounded retries.
func ClassOf(err error) Class {
	if caerr, ok := err.(IException); ok {
		return caerr.ExceptionClass()
	}
	return TransientInfra
}

func IsNotFound(err error) bool {
	return strings.Contains(err.Error(), strconv.FormatInt(int64(RecordNotFound.Code), 10))
}

func IsLockConflict(err error) bool {
	return ClassOf(err) == LockConflict
}

// code convention is class bucket * 10000 + custom code
var (
	// validation
	PrerequisiteFailed  = New(10000, "prerequisite validation failed", Validation)
	PostConditionFailed = New(10001, "post-execution validation failed", Validation)

	// transient infrastructure
	StorageUnavailable = New(20000, "storage unavailable", TransientInfra)
	VersionConflict    = New(20001, "equity version conflict on save", TransientInfra)

	// lock conflicts
	EquityLocked = New(30000, "equity is locked by another execution", LockConflict)

	// dispatch
	UnsupportedType = New(40000, "no executor registered for action type", UnsupportedActionType)

	// rollback
	AlreadyRolledBack = New(50000, "history log entry already rolled back", Rollback)
	LogNotFound       = New(50001, "history log entry not found", Rollback)

	// lookups
	RecordNotFound = New(60000, "resource not found", NotFound)

	InternalError = New(70000, "internal error occurred", Internal)
)
