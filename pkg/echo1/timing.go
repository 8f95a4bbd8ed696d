package echo1

import (
	"context"
	"time"

	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
)

// exchange sends msg and blocks until a full response line is received. The
// returned RTT is measured from immediately before the send to immediately
// after the delimiter has been read. On error, the partial response (if any)
// is returned so that delimiter-less rejections can be recognized.
func exchange(ctx context.Context, s *netx.Stream, msg []byte) ([]byte, time.Duration, error) {
	start := time.Now()
	if err := s.Send(ctx, msg); err != nil {
		return nil, 0, err
	}
	resp, err := s.ReceiveUntil(ctx, spec.Delimiter)
	return resp, time.Since(start), err
}

// delayDuration converts a delay in seconds into a time.Duration. Invalid
// values yield zero.
func delayDuration(seconds float64) time.Duration {
	d, err := NewDelay(seconds)
	if err != nil {
		return 0
	}
	return d.Duration()
}
