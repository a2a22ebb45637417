package main

import (
	"context"
	"fmt"
	"time"
)

// heavyCPU sums 1..10n modulo 1000, with n capped at 1000.
func heavyCPU(_ context.Context, n int) int {
	n = min(n, 1000)
	var sum uint64
	for x := uint64(1); x <= uint64(n*10); x++ {
		sum += x
	}
	return int(sum % 1000)
}

// ioDelay is the simulated latency of item id.
func ioDelay(id int) time.Duration {
	switch id % 4 {
	case 0:
		return 50 * time.Millisecond
	case 1:
		return 100 * time.Millisecond
	case 2:
		return 150 * time.Millisecond
	}
	return 200 * time.Millisecond
}

// slowIO simulates a request with a latency depending on id.
func slowIO(ctx context.Context, id int) (string, error) {
	select {
	case <-time.After(ioDelay(id)):
		return fmt.Sprintf("IO_Result_%d", id), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// mixedWork waits 20ms, then sums 1..5n modulo 100.
func mixedWork(ctx context.Context, n int) (int, error) {
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	n = min(n, 1000)
	var sum uint64
	for x := uint64(1); x <= uint64(n*5); x++ {
		sum += x
	}
	return int(sum % 100), nil
}

// lightAsync doubles n after 10ms.
func lightAsync(_ context.Context, n int) int {
	time.Sleep(10 * time.Millisecond)
	return n * 2
}
