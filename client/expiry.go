package client

import "time"

// DefaultMargin is how long before expiry an access token stops being used.
// A token valid right now may expire while the request is in flight; the
// margin also absorbs modest clock skew between client and server.
const DefaultMargin = 5 * time.Second

// Clock provides the current time. Tests inject a fake one.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// Now returns time.Now()
func (RealClock) Now() time.Time {
	return time.Now()
}

var _ Clock = RealClock{}

// Evaluator decides whether an access token may still be used for a new call
type Evaluator struct {
	margin time.Duration
}

// NewEvaluator creates an Evaluator with the given margin.
// A margin of zero or less returns ErrInvalidMargin.
func NewEvaluator(margin time.Duration) (*Evaluator, error) {
	if margin <= 0 {
		return nil, ErrInvalidMargin
	}
	return &Evaluator{margin: margin}, nil
}

// Margin returns the configured safety margin
func (e *Evaluator) Margin() time.Duration {
	return e.margin
}

// IsUsable returns true iff expiry(access) - now > margin.
// Tokens that fail to decode are unusable.
func (e *Evaluator) IsUsable(access string, now time.Time) bool {
	return usable(access, now, e.margin)
}

// IsUsable is the one-off form of Evaluator.IsUsable. A margin of zero or
// less returns ErrInvalidMargin, as NewEvaluator does.
func IsUsable(access string, now time.Time, margin time.Duration) (bool, error) {
	if margin <= 0 {
		return false, ErrInvalidMargin
	}
	return usable(access, now, margin), nil
}

func usable(access string, now time.Time, margin time.Duration) bool {
	claims, err := DecodeClaims(access)
	if err != nil {
		return false
	}
	return claims.ExpiresAt().Sub(now) > margin
}
