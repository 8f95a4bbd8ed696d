package measurer_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/m-lab/echoprobe/internal/measurer"
	"github.com/m-lab/echoprobe/internal/netx"
	"github.com/m-lab/go/rtx"
)

func TestStart(t *testing.T) {
	tcpl, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	rtx.Must(err, "cannot listen")
	ln := netx.NewListener(tcpl)
	defer ln.Close()

	go func() {
		conn, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return
		}
		time.Sleep(2 * time.Second)
		conn.Close()
	}()
	conn, err := ln.Accept()
	rtx.Must(err, "cannot accept")
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snapshots := measurer.Start(ctx, netx.ToConnInfo(conn))
	select {
	case s := <-snapshots:
		if s.ElapsedTime <= 0 {
			t.Errorf("invalid elapsed time: %d", s.ElapsedTime)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("did not receive any snapshot")
	}

	// The channel is closed once the context is canceled.
	cancel()
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-snapshots:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatalf("snapshot channel not closed after cancel")
		}
	}
}
