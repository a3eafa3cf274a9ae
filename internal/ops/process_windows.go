//go:build windows

package ops

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// detachProcess starts the child in its own process group, detached from
// the broker's console.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
}

// terminateProcess kills the target; Windows has no graceful signal for
// arbitrary processes.
func terminateProcess(proc *os.Process) error {
	return proc.Kill()
}
