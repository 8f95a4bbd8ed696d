package congestion

import (
	"os"
	"strings"
	"syscall"
	"testing"
)

func newSocket(t *testing.T) *os.File {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("cannot create socket: %v", err)
	}
	fp := os.NewFile(uintptr(fd), "test-socket")
	t.Cleanup(func() { fp.Close() })
	return fp
}

func TestGet(t *testing.T) {
	cc, err := Get(newSocket(t))
	if err != nil {
		t.Fatalf("cannot get the socket's cc: %v", err)
	}
	if cc == "" || strings.ContainsRune(cc, 0) {
		t.Errorf("invalid cc returned: %q", cc)
	}
}

func TestSet(t *testing.T) {
	content, err := os.ReadFile("/proc/sys/net/ipv4/tcp_available_congestion_control")
	if err != nil {
		t.Skip("cannot read list of available cc algorithms, skipping test")
	}
	fp := newSocket(t)
	for _, cc := range strings.Fields(string(content)) {
		t.Run(cc, func(t *testing.T) {
			if err := Set(fp, cc); err != nil {
				t.Fatalf("cannot set the socket's cc: %v", err)
			}
			actual, err := Get(fp)
			if err != nil {
				t.Fatalf("cannot get the socket's cc: %v", err)
			}
			if actual != cc {
				t.Errorf("the cc hasn't been set (found: %s, expected: %s)", actual, cc)
			}
		})
	}

	if err := Set(fp, "not-a-real-cc"); err == nil {
		t.Errorf("expected error for unknown cc")
	}
}
