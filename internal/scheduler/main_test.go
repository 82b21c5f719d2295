package scheduler

import (
	"testing"

	"go.uber.org/goleak"
)

// Every worker goroutine must be joined by the time a test returns
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
