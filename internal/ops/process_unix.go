//go:build !windows

package ops

import (
	"os"
	"os/exec"
	"syscall"
)

// detachProcess puts the child in its own process group so it survives the
// broker and never receives the broker's signals.
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateProcess asks politely first; SIGKILL is the caller's next
// request away if the target ignores SIGTERM.
func terminateProcess(proc *os.Process) error {
	return proc.Signal(syscall.SIGTERM)
}
