package types

import (
	"context"
	"errors"
	"net"
	"os"
)

// Status codes returned by every public operation. The set is closed: callers
// switch on these values to decide retry policy, so new failure classes get a
// new negative value instead of overloading an existing one.
const (
	// StatusOK signals the operation completed and its payload is valid.
	StatusOK = 1
	// StatusFailed signals a generic backend failure; the payload is empty.
	StatusFailed = -1
	// StatusTimeout signals the storage or network call exceeded a deadline.
	// Distinct from StatusFailed so callers can apply timeout-specific backoff.
	StatusTimeout = -2
	// StatusForbidden signals the caller lacks the required relationship to
	// the file, e.g. a downstream recipient requesting owner-only activity.
	StatusForbidden = -3
)

// The by-file activity aggregation keeps its own failure pair so its callers
// can distinguish aggregation faults from recording faults.
const (
	StatusByFileFailed  = -11
	StatusByFileTimeout = -12
)

// IsTimeout reports whether err was caused by an exceeded deadline anywhere
// in the storage or network stack.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StatusFromError translates a backend error into the closed status set.
func StatusFromError(err error) int {
	if err == nil {
		return StatusOK
	}
	if IsTimeout(err) {
		return StatusTimeout
	}
	return StatusFailed
}
