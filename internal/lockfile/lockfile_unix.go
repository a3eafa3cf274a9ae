//go:build !windows

package lockfile

import (
	"errors"
	"os"
	"strings"
	"syscall"
)

// isProcessRunning probes pid with signal 0. A permission error still means
// the pid is alive, just owned by someone else.
func isProcessRunning(pid int) (bool, string) {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, "owner not found"
	}

	err = process.Signal(syscall.Signal(0))
	if err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return false, "owner exited"
		}
		if strings.Contains(err.Error(), "operation not permitted") {
			return true, ""
		}
		return false, "owner not signalable"
	}
	return true, ""
}
