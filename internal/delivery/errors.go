package delivery

import "errors"

// Delivery failures. None of these escape Deliver; they are reported through
// Outcome.Err and the log.
var (
	ErrPathInvalid       = errors.New("delivery: destination path invalid")
	ErrPathUnreachable   = errors.New("delivery: destination path unreachable")
	ErrDeliveryExhausted = errors.New("delivery: all delivery attempts failed")
	ErrFallbackFailed    = errors.New("delivery: local fallback failed")
)
