package dispatch

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain enables goroutine leak detection for all tests in this package.
// Every mode must join its goroutines before returning.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
