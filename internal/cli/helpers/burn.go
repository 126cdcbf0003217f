package helpers

import (
	"context"
	"time"
)

// Burn keeps the CPU busy for d, or until ctx is done, and returns the
// number of iterations done.
func Burn(ctx context.Context, d time.Duration) uint64 {
	var (
		deadline = time.Now().Add(d)
		done     = ctx.Done()
		n        uint64
		x        uint64 = 1
	)
	for time.Now().Before(deadline) {
		select {
		case <-done:
			return n
		default:
		}
		for i := 0; i < 1000; i++ {
			x = x*6364136223846793005 + 1442695040888963407
		}
		n++
	}
	if x == 0 {
		n++
	}
	return n
}
