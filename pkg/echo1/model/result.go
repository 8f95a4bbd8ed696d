package model

import "time"

// ProbeResult is the client-side measurement of a single probe exchange.
type ProbeResult struct {
	// Seq is the probe's sequence number.
	Seq int
	// Bytes is the length of the outbound probe message.
	Bytes int
	// RTT is the time between sending the probe and receiving its echo.
	RTT time.Duration
	// Throughput is Bytes divided by RTT, in bytes per second.
	Throughput float64
}

// NewProbeResult returns the ProbeResult for a probe of the given outbound
// size that took rtt to be echoed back.
func NewProbeResult(seq, bytes int, rtt time.Duration) ProbeResult {
	// A zero RTT is only possible with a coarse clock. Clamp it to the
	// clock's resolution so that throughput stays finite.
	if rtt <= 0 {
		rtt = time.Nanosecond
	}
	return ProbeResult{
		Seq:        seq,
		Bytes:      bytes,
		RTT:        rtt,
		Throughput: float64(bytes) / rtt.Seconds(),
	}
}

// Result is the outcome of a client session. It only accounts for probes
// that have been echoed back correctly.
type Result struct {
	// MeasurementID identifies this measurement on the client side.
	MeasurementID string
	// Server is the server's ip:port pair.
	Server string
	// Params are the negotiated session parameters.
	Params Params
	// StartTime is the time the connection was established.
	StartTime time.Time
	// Probes are the completed probe exchanges, in order.
	Probes []ProbeResult

	// RTTSum is the sum of the RTTs of all completed probes.
	RTTSum time.Duration
	// ThroughputSum is the sum of the throughput of all completed probes.
	ThroughputSum float64
}

// Add appends a completed probe exchange to this result.
func (r *Result) Add(p ProbeResult) {
	r.Probes = append(r.Probes, p)
	r.RTTSum += p.RTT
	r.ThroughputSum += p.Throughput
}

// Completed returns the number of completed probes.
func (r *Result) Completed() int {
	return len(r.Probes)
}

// AvgRTT returns the mean RTT over the completed probes.
func (r *Result) AvgRTT() time.Duration {
	if len(r.Probes) == 0 {
		return 0
	}
	return r.RTTSum / time.Duration(len(r.Probes))
}

// AvgThroughput returns the mean throughput (bytes/s) over the completed
// probes.
func (r *Result) AvgThroughput() float64 {
	if len(r.Probes) == 0 {
		return 0
	}
	return r.ThroughputSum / float64(len(r.Probes))
}
