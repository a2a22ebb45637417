package outcome

import "fmt"

// Result is the type-erased view of an Outcome.
type Result interface {
	// IsSuccess reports whether the outcome holds a success value.
	IsSuccess() bool

	// IsFailure reports whether the outcome holds a failure value.
	IsFailure() bool

	// SuccessValue returns the success value, or nil for a failure.
	SuccessValue() any

	// FailureValue returns the failure value, or nil for a success.
	FailureValue() any
}

// Outcome is either a success value of type T or a failure value of type E.
// The zero value is a Failure holding the zero E.
type Outcome[T, E any] struct {
	value T
	err   E
	ok    bool
}

// Success creates a successful Outcome.
func Success[T, E any](v T) Outcome[T, E] {
	return Outcome[T, E]{value: v, ok: true}
}

// Failure creates a failed Outcome.
func Failure[T, E any](e E) Outcome[T, E] {
	return Outcome[T, E]{err: e}
}

// Of converts a (value, error) pair into an Outcome. A non-nil error always
// yields a Failure, regardless of v.
func Of[T any](v T, err error) Outcome[T, error] {
	if err != nil {
		return Failure[T](err)
	}
	return Success[T, error](v)
}

// IsSuccess reports whether o holds a success value.
func (o Outcome[T, E]) IsSuccess() bool { return o.ok }

// IsFailure reports whether o holds a failure value.
func (o Outcome[T, E]) IsFailure() bool { return !o.ok }

// Value returns the success value and true, or the zero T and false.
func (o Outcome[T, E]) Value() (T, bool) {
	return o.value, o.ok
}

// Err returns the failure value and true, or the zero E and false.
func (o Outcome[T, E]) Err() (E, bool) {
	return o.err, !o.ok
}

// Get returns both values and whether o is a success.
func (o Outcome[T, E]) Get() (T, E, bool) {
	return o.value, o.err, o.ok
}

// SuccessValue implements Result.
func (o Outcome[T, E]) SuccessValue() any {
	if !o.ok {
		return nil
	}
	return o.value
}

// FailureValue implements Result.
func (o Outcome[T, E]) FailureValue() any {
	if o.ok {
		return nil
	}
	return o.err
}

func (o Outcome[T, E]) String() string {
	if o.ok {
		return fmt.Sprintf("Success(%v)", o.value)
	}
	return fmt.Sprintf("Failure(%v)", o.err)
}

// Successes returns the success values of outcomes in their original
// relative order.
func Successes[T, E any](outcomes []Outcome[T, E]) []T {
	out := make([]T, 0, len(outcomes))
	for _, o := range outcomes {
		if o.ok {
			out = append(out, o.value)
		}
	}
	return out
}

// Failures returns the failure values of outcomes in their original
// relative order.
func Failures[T, E any](outcomes []Outcome[T, E]) []E {
	out := make([]E, 0)
	for _, o := range outcomes {
		if !o.ok {
			out = append(out, o.err)
		}
	}
	return out
}

// Partition splits outcomes into success and failure values, each in
// original relative order.
func Partition[T, E any](outcomes []Outcome[T, E]) ([]T, []E) {
	return Successes(outcomes), Failures(outcomes)
}
