package gateway

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// ErrInvalidLocator is returned when a locator carries no valid content
// identifier.
var ErrInvalidLocator = errors.New("invalid content locator")

// ErrBodyTooLarge is recorded for a gateway whose response exceeds the
// resolver's body size limit.
var ErrBodyTooLarge = errors.New("gateway response too large")

// FetchExhaustedError is returned by FetchContent when every gateway failed.
type FetchExhaustedError struct {
	Locator string
	// Errs holds one failure per gateway tried, in order.
	Errs []error
}

func (e *FetchExhaustedError) Error() string {
	if len(e.Errs) == 0 {
		return fmt.Sprintf("no gateway available for %s", e.Locator)
	}
	return fmt.Sprintf("all %d gateways failed for %s: %v", len(e.Errs), e.Locator, multierr.Combine(e.Errs...))
}

func (e *FetchExhaustedError) Unwrap() []error { return e.Errs }
