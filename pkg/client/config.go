package client

import (
	"time"

	"github.com/m-lab/echoprobe/pkg/echo1/spec"
)

// Config is the configuration for a Client.
type Config struct {
	// Server is the host:port of the server to connect to. If empty, the
	// server is obtained by querying the configured Locator.
	Server string

	// Kind is the measurement kind (rtt or tput).
	Kind spec.Kind

	// Probes is the number of probes per session.
	Probes int

	// Size is the payload size of each probe, in bytes. It is used as given:
	// zero is a valid size and sends empty payloads.
	Size int

	// Delay is the server-side delay to request before each echo, in seconds.
	Delay float64

	// Timeout bounds connection establishment and every read. Probe reads are
	// additionally allowed the requested delay.
	Timeout time.Duration

	// LegacyDelay sends the delay with whole-second precision, for servers
	// that cannot parse fractional delays.
	LegacyDelay bool

	// Emitter is the interface used to emit the results of the measurement.
	// It can be overridden to provide a custom output.
	Emitter Emitter
}
