package paygram

import (
	"errors"
	"fmt"
)

// ErrAmbiguous marks a value-moving call whose outcome could not be
// classified as success or failure (timeout after send, unparseable body).
// Callers must resolve it with an idempotent status check before retrying or
// touching the ledger.
var ErrAmbiguous = errors.New("ambiguous provider outcome")

// RejectedError is an explicit failure payload from the provider. No value
// moved; the message is safe to surface to the caller.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("provider rejected request: %s", e.Message)
}

// UnavailableError covers network failures and non-2xx responses on calls
// where no value can have moved.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable: %v", e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// IsRejected reports whether err is an explicit provider rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsUnavailable reports whether err is a transport-level provider failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// IsAmbiguous reports whether err is an unclassifiable outcome.
func IsAmbiguous(err error) bool {
	return errors.Is(err, ErrAmbiguous)
}
