package paybyphone

import (
	"errors"
	"fmt"
)

// Bootstrap failure reasons. All are hard, non-retryable from the caller's
// point of view: the upstream resource format changed, the credentials are
// wrong, or the account has nothing to park with.
var (
	ErrAPIKeyNotFound = errors.New("paybyphone: api key pattern not found in script resource")
	ErrAuthRejected   = errors.New("paybyphone: token endpoint rejected credentials")
	ErrNoAccount      = errors.New("paybyphone: account list is empty")
)

// ErrNoActiveSession is returned by Check when no current session matches the plate.
var ErrNoActiveSession = errors.New("paybyphone: no active parking session for plate")

// ErrNoRateOptions is returned by Park when the location offers no rate options.
var ErrNoRateOptions = errors.New("paybyphone: no rate options for location")

// ErrUnauthorized marks an upstream 401, typically an expired access token.
// There is no refresh flow; the caller must re-run Bootstrap.
var ErrUnauthorized = errors.New("paybyphone: unauthorized")

// BootstrapError wraps a failure of one of the three bootstrap steps.
type BootstrapError struct {
	Step string
	Err  error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("paybyphone: bootstrap step %s: %v", e.Step, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

// BookingError is returned when the session-creation POST is not accepted.
// Body carries the raw upstream response for the caller to surface.
type BookingError struct {
	Status int
	Body   string
}

func (e *BookingError) Error() string {
	return fmt.Sprintf("paybyphone: booking rejected with status %d: %s", e.Status, e.Body)
}
