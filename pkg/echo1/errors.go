package echo1

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/echoprobe/pkg/echo1/spec"
)

// Error kinds. A *SessionError always matches exactly one of these with
// errors.Is.
var (
	// ErrConnection is a transport-level failure: connect, send or receive
	// failure, or an unexpected end of stream.
	ErrConnection = errors.New("connection error")
	// ErrTimeout means the peer did not answer within the read timeout.
	ErrTimeout = errors.New("timeout")
	// ErrInvalidParams means the session parameters were refused locally,
	// before anything was sent.
	ErrInvalidParams = errors.New("invalid session parameters")
	// ErrMalformedMessage means a received line does not match the schema
	// expected for the current phase.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrSequenceViolation means a probe carried an unexpected sequence
	// number or payload length.
	ErrSequenceViolation = errors.New("sequence violation")
	// ErrSetupRejected means the server did not accept the Setup message.
	ErrSetupRejected = errors.New("setup rejected")
	// ErrProbeRejected means the server rejected a probe and closed the
	// connection.
	ErrProbeRejected = errors.New("probe rejected")
	// ErrTerminateRejected means the server did not acknowledge Terminate.
	ErrTerminateRejected = errors.New("terminate rejected")
	// ErrEchoMismatch means the echoed probe differs from the one sent.
	ErrEchoMismatch = errors.New("echo mismatch")
)

var errInvalidState = errors.New("operation not allowed in the current state")

// SessionError is returned by every session operation. It records the phase
// and, for probes, the sequence number where the session failed.
type SessionError struct {
	Phase spec.Phase
	// Seq is the sequence number of the failed probe, or zero.
	Seq int
	// Kind is one of the Err* error kinds of this package.
	Kind error
	// Err is the underlying error, if any.
	Err error
}

func (e *SessionError) Error() string {
	msg := string(e.Phase)
	if e.Seq > 0 {
		msg = fmt.Sprintf("%s %d", msg, e.Seq)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap makes both the error kind and the underlying error visible to
// errors.Is and errors.As.
func (e *SessionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// transportError classifies an error returned by a netx.Stream.
func transportError(phase spec.Phase, seq int, err error) *SessionError {
	kind := ErrConnection
	var netErr net.Error
	switch {
	case errors.Is(err, netx.ErrLineTooLong):
		kind = ErrMalformedMessage
	case errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		kind = ErrTimeout
	}
	return &SessionError{Phase: phase, Seq: seq, Kind: kind, Err: err}
}
