package echo1

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Delay is the artificial delay a server applies before echoing each probe.
// It is kept as whole seconds plus nanoseconds.
type Delay struct {
	Seconds     int64
	Nanoseconds int64
}

// NewDelay converts a non-negative number of seconds into a Delay.
func NewDelay(seconds float64) (Delay, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 ||
		seconds > math.MaxInt64/float64(time.Second) {
		return Delay{}, fmt.Errorf("invalid delay: %v", seconds)
	}
	whole := math.Floor(seconds)
	nanos := math.Round((seconds - whole) * float64(time.Second))
	if nanos >= float64(time.Second) {
		whole++
		nanos -= float64(time.Second)
	}
	return Delay{Seconds: int64(whole), Nanoseconds: int64(nanos)}, nil
}

// Duration returns d as a time.Duration.
func (d Delay) Duration() time.Duration {
	return time.Duration(d.Seconds)*time.Second + time.Duration(d.Nanoseconds)
}

// Wait blocks for the delay's duration or until ctx is done, in which case
// it returns the context's error. Timers use the monotonic clock.
func (d Delay) Wait(ctx context.Context) error {
	dur := d.Duration()
	if dur <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
