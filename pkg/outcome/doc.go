/*
Package outcome provides the tagged result of processing one pipeline item.

An Outcome[T, E] is either Success(T) or Failure(E). It is immutable once
produced and is the unit that error handling strategies reduce.

# Quick Start

	ok := outcome.Success[int, string](42)
	bad := outcome.Failure[int, string]("odd input")

	if v, isOK := ok.Value(); isOK {
		fmt.Println(v) // 42
	}

Go's (value, error) convention maps directly:

	o := outcome.Of(strconv.Atoi("12")) // Outcome[int, error]

# Erased View

Strategies do not know the concrete T and E of a stage. Every Outcome
implements Result, which exposes the success or failure value as any:

	var r outcome.Result = ok
	r.IsSuccess()    // true
	r.SuccessValue() // 42

# Ordering

Slots is a fixed-length, write-once collection addressed by original item
index. Concurrent dispatch modes write into it in completion order and read
it back in input order.
*/
package outcome
