package netx_test

import (
	"net"
	"testing"

	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/go/rtx"
)

func TestConn_Congestion(t *testing.T) {
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

	c := netx.ToConnInfo(got)
	if err = c.SetCC("cubic"); err != nil {
		t.Errorf("SetCC failed: %v", err)
	}
	if cc, err := c.GetCC(); err != nil || cc != "cubic" {
		t.Errorf("GetCC failed or unexpected cc %q: %v", cc, err)
	}
}

func TestConn_Info(t *testing.T) {
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

	info, err := netx.ToConnInfo(got).Info()
	if err != nil || info == nil {
		t.Fatalf("Info failed: %v", err)
	}
}
