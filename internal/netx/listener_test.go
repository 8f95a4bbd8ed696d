package netx_test

import (
	"net"
	"testing"
	"time"

	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/go/rtx"
)

func dialAsync(t *testing.T, addr string) {
	go func() {
		// Because the socket already exists, Dial will block until Accept is
		// called below.
		c, err := net.Dial("tcp", addr)
		if err != nil {
			t.Errorf("unexpected failure to dial local conn: %v", err)
			return
		}
		// Wait until primary test routine closes conn and returns.
		buf := make([]byte, 1)
		c.Read(buf)
		c.Close()
	}()
}

func TestListener_Accept(t *testing.T) {
	tcpl, err := net.ListenTCP("tcp", &net.TCPAddr{})
	rtx.Must(err, "failed to create listener")
	l := netx.NewListener(tcpl)
	defer l.Close()
	dialAsync(t, tcpl.Addr().String())

	got, err := l.Accept()
	if err != nil {
		t.Fatalf("Listener.Accept() unexpected error = %v", err)
	}
	defer got.Close()

	var c netx.ConnInfo
	var ok bool
	if c, ok = got.(netx.ConnInfo); !ok {
		t.Fatalf("Listener.Accept() wrong Conn type = %T, want netx.Conn", got)
	}
	// Check that the AcceptTime is in the past minute (i.e. that it has been
	// initialized).
	at := c.AcceptTime()
	if time.Since(at) > 1*time.Minute {
		t.Fatalf("invalid accept time")
	}

	// Accept error due to closed listener.
	tcpl, err = net.ListenTCP("tcp", &net.TCPAddr{})
	rtx.Must(err, "failed to create listener")
	l = netx.NewListener(tcpl)
	defer l.Close()

	tcpl.Close()
	_, err = l.Accept()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestConn_ByteCountersAndUUID(t *testing.T) {
	tcpl, err := net.ListenTCP("tcp", &net.TCPAddr{})
	rtx.Must(err, "failed to create listener")
	l := netx.NewListener(tcpl)
	defer l.Close()

	go func() {
		c, err := net.Dial("tcp", tcpl.Addr().String())
		if err != nil {
			t.Errorf("dial failed: %v", err)
			return
		}
		defer c.Close()
		c.Write([]byte("hello\n"))
		buf := make([]byte, 3)
		c.Read(buf)
	}()

	got, err := l.Accept()
	if err != nil {
		t.Fatalf("Listener.Accept() unexpected error = %v", err)
	}
	defer got.Close()

	buf := make([]byte, 6)
	_, err = got.Read(buf)
	rtx.Must(err, "failed to read")
	_, err = got.Write([]byte("ok\n"))
	rtx.Must(err, "failed to write")

	c := netx.ToConnInfo(got)
	read, written := c.ByteCounters()
	if read == 0 || written != 3 {
		t.Errorf("unexpected byte counters: read %d, written %d", read, written)
	}
	if id, err := c.UUID(); err != nil || id == "" {
		t.Errorf("UUID failed: %q, %v", id, err)
	}
}

func TestToConnInfoPanic(t *testing.T) {
	// Verify that unsupported net.Conn types cause a panic.
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("ToConnInfo did not panic on an unsupported type.")
		}
	}()

	netx.ToConnInfo(&net.UDPConn{})
}
