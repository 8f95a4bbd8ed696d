// Package spec contains constants for the echo1 protocol.
package spec

import "time"

const (
	// DefaultPort is the default TCP port of an echo1 server.
	DefaultPort = 5991

	// MaxPayloadSize is the maximum payload size, in bytes, that can be
	// negotiated during Setup. Both parties reject larger sizes.
	MaxPayloadSize = 1 << 16

	// MaxLineSize is the size of the per-connection read buffer. It must
	// hold the longest valid message, i.e. a probe carrying a payload of
	// MaxPayloadSize bytes plus its tag, sequence number and delimiters.
	MaxLineSize = MaxPayloadSize + 64

	// MaxDelay is the maximum server delay (seconds) a client can request.
	MaxDelay = 30.0

	// DefaultReadTimeout bounds every blocking read on both sides. On the
	// client, the negotiated delay is added to it for probe exchanges.
	DefaultReadTimeout = 10 * time.Second

	// DefaultSessionTTL is the maximum lifetime of a server-side session.
	DefaultSessionTTL = 5 * time.Minute

	// ServiceName is the service name for the Locate V2 API.
	ServiceName = "echoprobe/echo1"

	// LocateURLKey is the key of the target URL in Locate V2 responses. Only
	// the host:port part of the URL is used.
	LocateURLKey = "tcp:///echo/v1"

	// Delimiter terminates every message.
	Delimiter = '\n'

	// DefaultPayloadByte is the byte repeated to build probe payloads.
	DefaultPayloadByte = 'a'

	// MinMeasureInterval is the minimum interval between TCP_INFO snapshots.
	MinMeasureInterval = 100 * time.Millisecond
	// AvgMeasureInterval is the average interval between TCP_INFO snapshots.
	AvgMeasureInterval = 250 * time.Millisecond
	// MaxMeasureInterval is the maximum interval between TCP_INFO snapshots.
	MaxMeasureInterval = 400 * time.Millisecond
)

// Literal server responses. Probe and Terminate rejections carry no trailing
// delimiter: the server closes the connection right after writing them.
const (
	SetupAccept     = "200 OK: Ready\n"
	SetupReject     = "404 ERROR: Invalid Connection Setup Message\n"
	ProbeReject     = "404 ERROR: Invalid Measurement Message"
	TerminateAccept = "200 OK: Closing Connection\n"
	TerminateReject = "404 ERROR: Invalid Connection Termination Message"
)

// Phase tags, i.e. the first byte of every client message.
const (
	TagSetup     = 's'
	TagProbe     = 'm'
	TagTerminate = 't'
)

// Kind is the measurement kind requested during Setup.
type Kind string

const (
	// KindRTT selects a round-trip time measurement.
	KindRTT = Kind("rtt")

	// KindThroughput selects a throughput measurement.
	KindThroughput = Kind("tput")
)

// Valid reports whether k is a recognized measurement kind.
func (k Kind) Valid() bool {
	return k == KindRTT || k == KindThroughput
}

// Phase is a protocol phase.
type Phase string

const (
	PhaseConnect   = Phase("connect")
	PhaseSetup     = Phase("setup")
	PhaseProbe     = Phase("probe")
	PhaseTerminate = Phase("terminate")
)
