package domain

import "fmt"

// Error is a domain rule violation. Kind identifies the rule that failed so
// callers can branch with errors.Is against the exported sentinels; the
// message is safe to surface to API clients.
type Error struct {
	kind    string
	message string
}

// Sentinel errors for each domain rule. Operations return an *Error carrying
// the same kind plus a specific message, so errors.Is(err, ErrInsufficientFunds)
// matches regardless of the message text.
var (
	ErrInvalidAmount          = &Error{kind: "invalid_amount"}
	ErrInvalidCurrency        = &Error{kind: "invalid_currency"}
	ErrCurrencyMismatch       = &Error{kind: "currency_mismatch"}
	ErrIllegalStateTransition = &Error{kind: "illegal_state_transition"}
	ErrAccountNotActive       = &Error{kind: "account_not_active"}
	ErrInsufficientFunds      = &Error{kind: "insufficient_funds"}
	ErrInvalidArgument        = &Error{kind: "invalid_argument"}
	ErrNotFound               = &Error{kind: "not_found"}
	ErrAlreadyExists          = &Error{kind: "already_exists"}
	ErrProductNotActive       = &Error{kind: "product_not_active"}
	ErrNotEligible            = &Error{kind: "not_eligible"}
)

// NewError builds an *Error sharing the sentinel's kind with a caller message.
// Services use it for rules that live above single aggregates.
func NewError(sentinel *Error, format string, args ...any) *Error {
	return newError(sentinel, format, args...)
}

func (e *Error) Error() string {
	if e.message == "" {
		return e.kind
	}
	return e.message
}

// Kind returns the stable rule identifier, e.g. "insufficient_funds".
func (e *Error) Kind() string {
	return e.kind
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.kind == e.kind
}

func newError(sentinel *Error, format string, args ...any) *Error {
	return &Error{kind: sentinel.kind, message: fmt.Sprintf(format, args...)}
}
