package domain

import "errors"

var (
	ErrPositionNotFound = errors.New("position not found")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidAPY       = errors.New("invalid apy")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("concurrent update conflict")
	ErrLockHeld         = errors.New("lock already held")
	ErrUnsupportedToken = errors.New("unsupported token")
	ErrRateLimited      = errors.New("rate limited")
)

// AdvisoryRejectedError is returned when the advisory gate blocks a
// transaction. Reason carries the gate's verdict verbatim so callers see
// exactly why the transaction was refused.
type AdvisoryRejectedError struct {
	Reason string
}

func (e *AdvisoryRejectedError) Error() string {
	return "advisory rejected: " + e.Reason
}

// OnChainError wraps a failure from the on-chain executor, preserving the
// underlying detail for diagnostics.
type OnChainError struct {
	Op  string
	Err error
}

func (e *OnChainError) Error() string {
	return "on-chain " + e.Op + " failed: " + e.Err.Error()
}

func (e *OnChainError) Unwrap() error {
	return e.Err
}
