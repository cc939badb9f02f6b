package pmtu

import "time"

// Clock provides monotonic timestamps for adaptive_check_interval gating.
// Tests supply a fake implementation so adapt() can be exercised without
// real wall-clock delays.
type Clock interface {
	Now() time.Time
}

// systemClock is the production Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
