package congestion

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func set(fp *os.File, cc string) error {
	return unix.SetsockoptString(int(fp.Fd()), unix.IPPROTO_TCP,
		unix.TCP_CONGESTION, cc)
}

func get(fp *os.File) (string, error) {
	cc, err := unix.GetsockoptString(int(fp.Fd()), unix.IPPROTO_TCP,
		unix.TCP_CONGESTION)
	if err != nil {
		return "", err
	}
	// The kernel returns a fixed-size, NUL-padded buffer.
	return strings.TrimRight(cc, "\x00"), nil
}
