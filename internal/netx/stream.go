package netx

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// ErrLineTooLong is returned by ReceiveUntil when the delimiter does not
// appear within the stream's buffer size.
var ErrLineTooLong = errors.New("line exceeds buffer size")

// Stream is a delimiter-framed view of a connection-oriented net.Conn. Every
// Send and ReceiveUntil call is bounded by the configured timeout and by the
// context's deadline, whichever comes first.
type Stream struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
}

// NewStream returns a Stream reading from conn through a buffer of bufSize
// bytes. A zero timeout disables the per-call timeout.
func NewStream(conn net.Conn, bufSize int, timeout time.Duration) *Stream {
	return &Stream{
		conn:    conn,
		reader:  bufio.NewReaderSize(conn, bufSize),
		timeout: timeout,
	}
}

// Conn returns the underlying net.Conn.
func (s *Stream) Conn() net.Conn {
	return s.conn
}

// Timeout returns the current per-call timeout.
func (s *Stream) Timeout() time.Duration {
	return s.timeout
}

// SetTimeout changes the per-call timeout for subsequent calls.
func (s *Stream) SetTimeout(d time.Duration) {
	s.timeout = d
}

func (s *Stream) deadline(ctx context.Context) time.Time {
	var d time.Time
	if s.timeout > 0 {
		d = time.Now().Add(s.timeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (d.IsZero() || ctxDeadline.Before(d)) {
		d = ctxDeadline
	}
	return d
}

// watch makes pending I/O on the connection fail as soon as ctx is done.
// The returned function must be called when the I/O completes.
func (s *Stream) watch(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		s.conn.SetDeadline(time.Now())
	})
}

// Send writes b to the connection.
func (s *Stream) Send(ctx context.Context, b []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.conn.SetWriteDeadline(s.deadline(ctx)); err != nil {
		return err
	}
	stop := s.watch(ctx)
	defer stop()
	_, err := s.conn.Write(b)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// ReceiveUntil reads until the first occurrence of delim and returns the
// accumulated bytes, including the delimiter. The message may span any
// number of underlying reads.
//
// If the stream ends before any byte is read, it returns io.EOF. If it ends
// after a partial message, the partial bytes are returned together with
// io.ErrUnexpectedEOF.
func (s *Stream) ReceiveUntil(ctx context.Context, delim byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.conn.SetReadDeadline(s.deadline(ctx)); err != nil {
		return nil, err
	}
	stop := s.watch(ctx)
	defer stop()

	line, err := s.reader.ReadSlice(delim)
	// ReadSlice returns a view on the reader's buffer, which is only valid
	// until the next read.
	out := make([]byte, len(line))
	copy(out, line)
	switch {
	case err == nil:
		return out, nil
	case ctx.Err() != nil:
		return out, ctx.Err()
	case errors.Is(err, bufio.ErrBufferFull):
		return out, ErrLineTooLong
	case errors.Is(err, io.EOF) && len(out) > 0:
		return out, io.ErrUnexpectedEOF
	default:
		return out, err
	}
}
