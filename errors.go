package stepcoro

import (
	"errors"
	"fmt"
)

// ErrMalformedYield is returned when a Step's Advance reports a Yielded
// value that is neither Pause, a NestYield, nor a recognized Operation.
var ErrMalformedYield = errors.New("stepcoro: malformed yield")

// ErrBlockDidNotComplete is the error left on a Block future whose Step
// finished without ever calling Accept or Fail on its Channel.
var ErrBlockDidNotComplete = errors.New("stepcoro: block did not complete")

// ErrNullReducerResult is returned by Loop when its reducer returns a nil
// Future for a given state.
var ErrNullReducerResult = errors.New("stepcoro: loop reducer returned a nil future")

// ErrDoubleCompletion is returned when a CompletionSource's Accept or Fail
// is called more than once.
var ErrDoubleCompletion = errors.New("stepcoro: completion source completed twice")

// newMalformedYieldError wraps ErrMalformedYield with the offending value
// for diagnostics.
func newMalformedYieldError(y Yielded) error {
	return fmt.Errorf("%w: %#v", ErrMalformedYield, y)
}

// AggregateError is a collection of errors produced by a concurrent
// combinator (FirstCompleted when every member fails, or either
// FirstCompleted variant given no members, in which case it is empty) or by
// explicit user code wanting to report several failures as one.
type AggregateError struct {
	inner []error
}

// NewAggregateError builds an AggregateError from errs, skipping nil ones. Errors
// that are themselves *AggregateError are flattened one level so nesting
// does not accumulate across repeated wrapping.
func NewAggregateError(errs ...error) *AggregateError {
	a := &AggregateError{}
	for _, e := range errs {
		if e == nil {
			continue
		}
		if inner, ok := e.(*AggregateError); ok {
			a.inner = append(a.inner, inner.inner...)
			continue
		}
		a.inner = append(a.inner, e)
	}
	return a
}

// Error implements error.
func (a *AggregateError) Error() string {
	if len(a.inner) == 0 {
		return "stepcoro: aggregate error with no member errors"
	}
	return errors.Join(a.inner...).Error()
}

// Unwrap supports errors.Is/As over every inner error.
func (a *AggregateError) Unwrap() []error {
	return a.inner
}

// InnerErrors returns the aggregate's member errors, in the order they were
// collected.
func (a *AggregateError) InnerErrors() []error {
	out := make([]error, len(a.inner))
	copy(out, a.inner)
	return out
}

// Flatten recursively unwraps nested aggregates and returns the flat list of
// non-aggregate errors.
func (a *AggregateError) Flatten() []error {
	var out []error
	var walk func(errs []error)
	walk = func(errs []error) {
		for _, e := range errs {
			if inner, ok := e.(*AggregateError); ok {
				walk(inner.inner)
				continue
			}
			out = append(out, e)
		}
	}
	walk(a.inner)
	return out
}

// Handle returns the flattened member errors for which predicate reports
// true. Useful for recovering from one known failure mode while leaving the
// rest for the caller to re-raise.
func (a *AggregateError) Handle(predicate func(error) bool) []error {
	var out []error
	for _, e := range a.Flatten() {
		if predicate(e) {
			out = append(out, e)
		}
	}
	return out
}
