package echo1

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/echoprobe/pkg/echo1/model"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
)

// maxLoggedInput is the maximum number of bytes of a malformed message that
// is logged.
const maxLoggedInput = 64

// ServerState is the state of a ServerSession.
type ServerState int

const (
	ServerAwaitingSetup ServerState = iota
	ServerAwaitingProbe
	ServerAwaitingTerminate
	ServerClosed
)

func (s ServerState) String() string {
	switch s {
	case ServerAwaitingSetup:
		return "awaiting-setup"
	case ServerAwaitingProbe:
		return "awaiting-probe"
	case ServerAwaitingTerminate:
		return "awaiting-terminate"
	case ServerClosed:
		return "closed"
	}
	return fmt.Sprintf("ServerState(%d)", int(s))
}

// ServerSession is the server role of an echo1 session. It handles exactly
// one session on one connection and holds no state shared with other
// sessions.
type ServerSession struct {
	stream *netx.Stream
	logger *log.Logger

	state  ServerState
	params model.Params
	delay  Delay
	next   int
	echoed int

	// OnProbe, if set, is called after each probe has been echoed with the
	// time spent between receiving the probe and echoing it.
	OnProbe func(seq int, elapsed time.Duration)
}

// NewServerSession returns a session over conn. Every read is bounded by
// timeout.
func NewServerSession(conn net.Conn, timeout time.Duration) *ServerSession {
	return &ServerSession{
		stream: netx.NewStream(conn, spec.MaxLineSize, timeout),
		logger: log.With("client", conn.RemoteAddr().String()),
	}
}

// State returns the session's current state.
func (s *ServerSession) State() ServerState {
	return s.state
}

// Params returns the parameters negotiated during Setup. It is only
// meaningful after a successful Setup.
func (s *ServerSession) Params() model.Params {
	return s.params
}

// ProbesEchoed returns the number of probes echoed so far.
func (s *ServerSession) ProbesEchoed() int {
	return s.echoed
}

// Run serves one session until it completes or fails. Setup and probe
// failures are reported to the client with the corresponding reject literal
// before returning. Run never closes the connection: the caller must close
// it in every case.
func (s *ServerSession) Run(ctx context.Context) error {
	defer func() {
		s.state = ServerClosed
	}()
	if err := s.setup(ctx); err != nil {
		s.logger.Debug("setup failed", "err", err)
		s.reject(ctx, []byte(spec.SetupReject))
		return err
	}
	for s.next <= s.params.Probes {
		if err := s.probe(ctx); err != nil {
			s.logger.Debug("probe failed", "expected", s.next, "of", s.params.Probes, "err", err)
			s.reject(ctx, []byte(spec.ProbeReject))
			return err
		}
	}
	return s.terminate(ctx)
}

func (s *ServerSession) setup(ctx context.Context) error {
	line, err := s.stream.ReceiveUntil(ctx, spec.Delimiter)
	if err != nil {
		return transportError(spec.PhaseSetup, 0, err)
	}
	p, err := DecodeSetup(line)
	if err != nil {
		s.logMalformed(spec.PhaseSetup, line, err)
		return &SessionError{Phase: spec.PhaseSetup, Kind: ErrMalformedMessage, Err: err}
	}
	d, err := NewDelay(p.Delay)
	if err != nil {
		return &SessionError{Phase: spec.PhaseSetup, Kind: ErrMalformedMessage, Err: err}
	}
	s.params, s.delay = p, d
	s.logger.Debug("setup", "kind", p.Kind, "probes", p.Probes, "size", p.Size,
		"delay", d.Duration())
	if err := s.stream.Send(ctx, []byte(spec.SetupAccept)); err != nil {
		return transportError(spec.PhaseSetup, 0, err)
	}
	s.state = ServerAwaitingProbe
	s.next = 1
	return nil
}

func (s *ServerSession) probe(ctx context.Context) error {
	seq := s.next
	line, err := s.stream.ReceiveUntil(ctx, spec.Delimiter)
	if err != nil {
		return transportError(spec.PhaseProbe, seq, err)
	}
	received := time.Now()
	m, err := DecodeProbe(line)
	if err != nil {
		s.logMalformed(spec.PhaseProbe, line, err)
		return &SessionError{Phase: spec.PhaseProbe, Seq: seq, Kind: ErrMalformedMessage, Err: err}
	}
	if m.Seq != seq {
		return &SessionError{Phase: spec.PhaseProbe, Seq: seq, Kind: ErrSequenceViolation,
			Err: fmt.Errorf("received sequence number %d", m.Seq)}
	}
	if len(m.Payload) != s.params.Size {
		return &SessionError{Phase: spec.PhaseProbe, Seq: seq, Kind: ErrSequenceViolation,
			Err: fmt.Errorf("payload is %d bytes, expected %d", len(m.Payload), s.params.Size)}
	}
	s.logger.Debug("probe", "seq", seq, "of", s.params.Probes, "size", len(m.Payload),
		"sleep", s.delay.Duration())
	if err := s.delay.Wait(ctx); err != nil {
		return &SessionError{Phase: spec.PhaseProbe, Seq: seq, Kind: ErrConnection, Err: err}
	}
	// The echo is the probe line exactly as received.
	if err := s.stream.Send(ctx, line); err != nil {
		return transportError(spec.PhaseProbe, seq, err)
	}
	s.echoed++
	s.next++
	if s.next > s.params.Probes {
		s.state = ServerAwaitingTerminate
	}
	if s.OnProbe != nil {
		s.OnProbe(seq, time.Since(received))
	}
	return nil
}

func (s *ServerSession) terminate(ctx context.Context) error {
	line, err := s.stream.ReceiveUntil(ctx, spec.Delimiter)
	if err != nil {
		s.reject(ctx, []byte(spec.TerminateReject))
		return transportError(spec.PhaseTerminate, 0, err)
	}
	if err := DecodeTerminate(line); err != nil {
		s.logMalformed(spec.PhaseTerminate, line, err)
		s.reject(ctx, []byte(spec.TerminateReject))
		return &SessionError{Phase: spec.PhaseTerminate, Kind: ErrMalformedMessage, Err: err}
	}
	s.logger.Debug("terminate")
	if err := s.stream.Send(ctx, []byte(spec.TerminateAccept)); err != nil {
		return transportError(spec.PhaseTerminate, 0, err)
	}
	return nil
}

// logMalformed logs a message that could not be decoded, truncated to
// maxLoggedInput bytes.
func (s *ServerSession) logMalformed(phase spec.Phase, line []byte, err error) {
	input := line
	if len(input) > maxLoggedInput {
		input = input[:maxLoggedInput]
	}
	s.logger.Info("Malformed message", "phase", phase, "input", fmt.Sprintf("%q", input),
		"len", len(line), "err", err)
}

// reject sends a rejection literal, ignoring failures: the session is over
// either way.
func (s *ServerSession) reject(ctx context.Context, literal []byte) {
	_ = s.stream.Send(ctx, literal)
}
