package retry

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Sentinel errors for callers that classify failures themselves.
var (
	ErrRateLimited     = errors.New("sheetsync: rate limited by remote API")
	ErrTransientServer = errors.New("sheetsync: transient remote server error")
)

// Class is how a failed attempt is treated.
type Class int

const (
	ClassFatal Class = iota
	ClassRateLimited
	ClassTransientServer
)

func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransientServer:
		return "transient_server"
	default:
		return "fatal"
	}
}

// Retryable reports whether the class is retried with backoff.
func (c Class) Retryable() bool {
	return c == ClassRateLimited || c == ClassTransientServer
}

// Classify maps an attempt error to a Class. Google API errors are classified
// by HTTP status; anything unrecognised is fatal.
func Classify(err error) Class {
	if err == nil {
		return ClassFatal
	}

	switch {
	case errors.Is(err, ErrRateLimited):
		return ClassRateLimited
	case errors.Is(err, ErrTransientServer):
		return ClassTransientServer
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests:
			return ClassRateLimited
		case http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return ClassTransientServer
		}
	}

	return ClassFatal
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
