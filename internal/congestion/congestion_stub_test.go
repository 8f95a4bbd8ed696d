//go:build !linux
// +build !linux

package congestion

import (
	"os"
	"testing"
)

func TestSetGet_NoSupport(t *testing.T) {
	if err := Set(&os.File{}, "cubic"); err != ErrNoSupport {
		t.Errorf("Set: expected ErrNoSupport, got: %v", err)
	}
	// An empty algorithm is always a no-op.
	if err := Set(&os.File{}, ""); err != nil {
		t.Errorf("Set with empty cc: expected nil, got: %v", err)
	}
	cc, err := Get(&os.File{})
	if cc != "" || err != ErrNoSupport {
		t.Errorf("Get: expected empty cc and ErrNoSupport, got: %q, %v", cc, err)
	}
}
