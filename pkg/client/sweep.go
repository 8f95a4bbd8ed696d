package client

import (
	"context"
	"fmt"
	"time"

	"github.com/m-lab/echoprobe/pkg/echo1/model"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
	"github.com/m-lab/go/memoryless"
)

// SweepSizes are the payload sizes measured by a sweep, in order.
var SweepSizes = []int{1, 100, 200, 400, 800, 1000, 2000, 4000, 8000, 16000, 32000}

// SweepConfig configures an experiment sweep.
type SweepConfig struct {
	// Experiments is the number of sessions run for every sweep point.
	Experiments int
	// DelayIncrease is the server delay (seconds) used in the second pass.
	DelayIncrease float64
	// Sizes overrides SweepSizes if not empty.
	Sizes []int
	// Spacing is the expected pause between consecutive sessions. Actual
	// pauses are drawn from a memoryless distribution around it. Zero
	// disables pauses.
	Spacing time.Duration
}

// SweepPoint is the aggregate result of the sessions run for one payload
// size and delay.
type SweepPoint struct {
	Size  int
	Delay float64
	// Experiments is the number of sessions averaged.
	Experiments int
	// AvgRTT is the mean of the sessions' mean RTTs.
	AvgRTT time.Duration
	// AvgThroughput is the mean of the sessions' mean throughputs (bytes/s).
	AvgThroughput float64
}

// Sweep runs RTT sessions for every payload size, first without server
// delay and then with cfg.DelayIncrease. The client's probe count and
// timeout are used for every session. Sweep stops at the first failed
// session and returns the points completed so far.
func (c *Echo1Client) Sweep(ctx context.Context, cfg SweepConfig) ([]SweepPoint, error) {
	if cfg.Experiments < 1 {
		return nil, fmt.Errorf("invalid number of experiments: %d", cfg.Experiments)
	}
	sizes := cfg.Sizes
	if len(sizes) == 0 {
		sizes = SweepSizes
	}
	c.config.Emitter.OnSweepStart(cfg, c.config.Probes)

	var points []SweepPoint
	first := true
	for _, delay := range []float64{0, cfg.DelayIncrease} {
		for _, size := range sizes {
			point := SweepPoint{Size: size, Delay: delay, Experiments: cfg.Experiments}
			var rttSum time.Duration
			var tputSum float64
			for i := 0; i < cfg.Experiments; i++ {
				if !first {
					if err := c.pause(ctx, cfg.Spacing); err != nil {
						return points, err
					}
				}
				first = false
				result, err := c.measure(ctx, model.Params{
					Kind:   spec.KindRTT,
					Probes: c.config.Probes,
					Size:   size,
					Delay:  delay,
				})
				if err != nil {
					return points, err
				}
				rttSum += result.AvgRTT()
				tputSum += result.AvgThroughput()
			}
			point.AvgRTT = rttSum / time.Duration(cfg.Experiments)
			point.AvgThroughput = tputSum / float64(cfg.Experiments)
			c.config.Emitter.OnSweepPoint(point)
			points = append(points, point)
		}
	}
	return points, nil
}

// pause waits for a random interval around spacing.
func (c *Echo1Client) pause(ctx context.Context, spacing time.Duration) error {
	if spacing <= 0 {
		return ctx.Err()
	}
	t, err := memoryless.NewTicker(ctx, memoryless.Config{
		Min:      spacing / 4,
		Expected: spacing,
		Max:      spacing * 4,
	})
	if err != nil {
		return err
	}
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
