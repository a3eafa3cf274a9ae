//go:build !linux && !darwin

package caller

import (
	"fmt"
	"net"
	"runtime"
)

// OS is a stub on platforms without peer credential support. Every
// resolution fails, which makes the service refuse all connections; use the
// simulator executor with a static resolver instead.
type OS struct{}

// NewOS returns the platform resolver.
func NewOS() *OS {
	return &OS{}
}

// Resolve always fails on this platform.
func (o *OS) Resolve(net.Conn) (Context, error) {
	return Context{}, fmt.Errorf("%w: peer credentials unavailable on %s", ErrUnsupportedConn, runtime.GOOS)
}

// ProcessName always fails on this platform.
func (o *OS) ProcessName(pid int) (string, error) {
	return "", fmt.Errorf("caller: process names unsupported on %s (pid %d)", runtime.GOOS, pid)
}
