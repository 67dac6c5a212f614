package app

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval is the polling cadence of WaitForActivityCount.
const DefaultPollInterval = 50 * time.Millisecond

// ActivityCounter reports the settled number of live activity records.
type ActivityCounter interface {
	TotalActivityCount() int
}

// WaitForActivityCount polls counter until it reports want or ctx ends.
func WaitForActivityCount(ctx context.Context, counter ActivityCounter, want int, poll time.Duration) (int, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	got := counter.TotalActivityCount()
	if got == want {
		return got, nil
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return got, fmt.Errorf("%w: activity count %d, want %d: %v", ErrTimeout, got, want, ctx.Err())
		case <-ticker.C:
			got = counter.TotalActivityCount()
			if got == want {
				return got, nil
			}
		}
	}
}
