package echo1

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/echoprobe/pkg/echo1/model"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
)

// ClientState is the state of a ClientSession.
type ClientState int

const (
	ClientIdle ClientState = iota
	ClientSetupSent
	ClientProbing
	ClientTerminateSent
	ClientClosed
)

func (s ClientState) String() string {
	switch s {
	case ClientIdle:
		return "idle"
	case ClientSetupSent:
		return "setup-sent"
	case ClientProbing:
		return "probing"
	case ClientTerminateSent:
		return "terminate-sent"
	case ClientClosed:
		return "closed"
	}
	return fmt.Sprintf("ClientState(%d)", int(s))
}

// ClientOption customizes a ClientSession.
type ClientOption func(*ClientSession)

// WithLegacyDelay makes the session encode the delay in Setup with whole
// seconds only, for servers that cannot parse fractional delays.
func WithLegacyDelay() ClientOption {
	return func(c *ClientSession) {
		c.legacyDelay = true
	}
}

// WithPayload sets the payload sent with every probe. Its length must match
// the session's payload size and it must not contain the delimiter.
func WithPayload(payload []byte) ClientOption {
	return func(c *ClientSession) {
		c.payload = payload
	}
}

// ClientSession is the client role of an echo1 session. A session owns its
// connection and is not safe for concurrent use.
type ClientSession struct {
	conn        net.Conn
	stream      *netx.Stream
	params      model.Params
	payload     []byte
	timeout     time.Duration
	legacyDelay bool

	state ClientState
	next  int
}

// NewClientSession returns a session over conn using the given parameters.
// The timeout bounds every read; probe reads are additionally allowed the
// session's delay.
func NewClientSession(conn net.Conn, params model.Params, timeout time.Duration,
	opts ...ClientOption) *ClientSession {
	c := &ClientSession{
		conn:    conn,
		stream:  netx.NewStream(conn, spec.MaxLineSize, timeout),
		params:  params,
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.payload == nil && params.Size >= 0 && params.Size <= spec.MaxPayloadSize {
		c.payload = NewPayload(params.Size)
	}
	return c
}

// State returns the session's current state.
func (c *ClientSession) State() ClientState {
	return c.state
}

// Params returns the session parameters.
func (c *ClientSession) Params() model.Params {
	return c.params
}

// Setup sends the Setup message and waits for the server's acceptance.
func (c *ClientSession) Setup(ctx context.Context) error {
	if c.state != ClientIdle {
		return c.stateError(spec.PhaseSetup, 0)
	}
	if err := c.params.Validate(); err != nil {
		return &SessionError{Phase: spec.PhaseSetup, Kind: ErrInvalidParams, Err: err}
	}
	if len(c.payload) != c.params.Size {
		return &SessionError{Phase: spec.PhaseSetup, Kind: ErrInvalidParams,
			Err: fmt.Errorf("payload is %d bytes, size is %d", len(c.payload), c.params.Size)}
	}
	if err := ValidatePayload(c.payload); err != nil {
		return &SessionError{Phase: spec.PhaseSetup, Kind: ErrInvalidParams, Err: err}
	}

	msg := EncodeSetup(c.params)
	if c.legacyDelay {
		msg = EncodeSetupLegacy(c.params)
	}
	c.state = ClientSetupSent
	resp, _, err := exchange(ctx, c.stream, msg)
	if err != nil {
		c.state = ClientClosed
		return transportError(spec.PhaseSetup, 0, err)
	}
	if string(resp) != spec.SetupAccept {
		c.state = ClientClosed
		return &SessionError{Phase: spec.PhaseSetup, Kind: ErrSetupRejected,
			Err: fmt.Errorf("server replied %.64q", resp)}
	}
	c.state = ClientProbing
	c.next = 1
	c.stream.SetTimeout(c.timeout + delayDuration(c.params.Delay))
	return nil
}

// Probe sends the next probe, waits for its echo and returns the measured
// RTT and throughput.
func (c *ClientSession) Probe(ctx context.Context) (model.ProbeResult, error) {
	if c.state != ClientProbing || c.next > c.params.Probes {
		return model.ProbeResult{}, c.stateError(spec.PhaseProbe, c.next)
	}
	seq := c.next
	msg := EncodeProbe(seq, c.payload)
	resp, rtt, err := exchange(ctx, c.stream, msg)
	if err != nil {
		c.state = ClientClosed
		if bytes.HasPrefix(resp, []byte(spec.ProbeReject)) {
			return model.ProbeResult{}, &SessionError{Phase: spec.PhaseProbe, Seq: seq,
				Kind: ErrProbeRejected}
		}
		return model.ProbeResult{}, transportError(spec.PhaseProbe, seq, err)
	}
	if !bytes.Equal(resp, msg) {
		c.state = ClientClosed
		if string(resp) == spec.ProbeReject+string(spec.Delimiter) {
			return model.ProbeResult{}, &SessionError{Phase: spec.PhaseProbe, Seq: seq,
				Kind: ErrProbeRejected}
		}
		return model.ProbeResult{}, &SessionError{Phase: spec.PhaseProbe, Seq: seq,
			Kind: ErrEchoMismatch,
			Err:  fmt.Errorf("received %d bytes, sent %d", len(resp), len(msg))}
	}
	c.next++
	return model.NewProbeResult(seq, len(msg), rtt), nil
}

// Terminate sends the Terminate message once every probe has been echoed
// and waits for the server's acknowledgment. The session is closed
// afterwards whatever the outcome.
func (c *ClientSession) Terminate(ctx context.Context) error {
	if c.state != ClientProbing || c.next <= c.params.Probes {
		return c.stateError(spec.PhaseTerminate, 0)
	}
	c.state = ClientTerminateSent
	c.stream.SetTimeout(c.timeout)
	resp, _, err := exchange(ctx, c.stream, EncodeTerminate())
	c.state = ClientClosed
	if err != nil {
		if bytes.HasPrefix(resp, []byte(spec.TerminateReject)) {
			return &SessionError{Phase: spec.PhaseTerminate, Kind: ErrTerminateRejected}
		}
		return transportError(spec.PhaseTerminate, 0, err)
	}
	if string(resp) != spec.TerminateAccept {
		return &SessionError{Phase: spec.PhaseTerminate, Kind: ErrTerminateRejected,
			Err: fmt.Errorf("server replied %.64q", resp)}
	}
	return nil
}

// Run performs a full session: Setup, every probe, then Terminate. The
// returned Result is never nil and holds the probes completed before any
// failure. Run does not close the connection.
func (c *ClientSession) Run(ctx context.Context) (*model.Result, error) {
	result := &model.Result{
		Server:    c.conn.RemoteAddr().String(),
		Params:    c.params,
		StartTime: time.Now(),
	}
	if err := c.Setup(ctx); err != nil {
		return result, err
	}
	for c.next <= c.params.Probes {
		pr, err := c.Probe(ctx)
		if err != nil {
			return result, err
		}
		result.Add(pr)
	}
	return result, c.Terminate(ctx)
}

// Close closes the session's connection.
func (c *ClientSession) Close() error {
	c.state = ClientClosed
	return c.conn.Close()
}

func (c *ClientSession) stateError(phase spec.Phase, seq int) error {
	return &SessionError{Phase: phase, Seq: seq, Kind: ErrSequenceViolation,
		Err: fmt.Errorf("%w: %s", errInvalidState, c.state)}
}
