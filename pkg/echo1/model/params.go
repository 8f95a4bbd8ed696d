package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/m-lab/echoprobe/pkg/echo1/spec"
)

var (
	errInvalidKind   = errors.New("unknown measurement kind")
	errInvalidProbes = errors.New("probe count must be at least 1")
	errInvalidSize   = errors.New("payload size out of range")
	errInvalidDelay  = errors.New("delay out of range")
)

// Params are the session parameters negotiated during Setup. They are
// immutable for the lifetime of a session.
type Params struct {
	// Kind is the measurement kind (rtt or tput).
	Kind spec.Kind
	// Probes is the number of probes the client will send.
	Probes int
	// Size is the payload size of each probe, in bytes.
	Size int
	// Delay is the server-side delay applied before echoing each probe,
	// in seconds.
	Delay float64
}

// Validate checks that p describes a session a server can accept.
func (p Params) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: %q", errInvalidKind, p.Kind)
	}
	if p.Probes < 1 {
		return fmt.Errorf("%w: %d", errInvalidProbes, p.Probes)
	}
	if p.Size < 0 || p.Size > spec.MaxPayloadSize {
		return fmt.Errorf("%w: %d (max %d)", errInvalidSize, p.Size, spec.MaxPayloadSize)
	}
	if math.IsNaN(p.Delay) || math.IsInf(p.Delay, 0) || p.Delay < 0 || p.Delay > spec.MaxDelay {
		return fmt.Errorf("%w: %v (max %v)", errInvalidDelay, p.Delay, spec.MaxDelay)
	}
	return nil
}

// Probe is a decoded measurement probe.
type Probe struct {
	// Seq is the 1-based sequence number.
	Seq int
	// Payload is the probe's payload.
	Payload []byte
}
