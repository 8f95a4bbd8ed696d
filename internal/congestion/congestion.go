// Package congestion sets and reads the congestion control algorithm of a
// TCP socket. It is only supported on Linux.
package congestion

import (
	"errors"
	"os"
)

// ErrNoSupport indicates that this system does not support setting or
// reading TCP_CONGESTION.
var ErrNoSupport = errors.New("TCP_CONGESTION not supported")

// Set sets the congestion control algorithm for |fp|. An empty cc is a
// no-op.
func Set(fp *os.File, cc string) error {
	if cc == "" {
		return nil
	}
	return set(fp, cc)
}

// Get returns the congestion control algorithm in use for |fp|.
func Get(fp *os.File) (string, error) {
	return get(fp)
}
