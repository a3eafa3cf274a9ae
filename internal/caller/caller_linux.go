//go:build linux

package caller

import (
	"fmt"
	"net"
	"os"
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// OS resolves peers through SO_PEERCRED and the proc filesystem.
type OS struct{}

// NewOS returns the platform resolver.
func NewOS() *OS {
	return &OS{}
}

// Resolve reads the peer's credentials from the socket and fills in the
// process details from /proc.
func (o *OS) Resolve(conn net.Conn) (Context, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return Context{}, ErrUnsupportedConn
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return Context{}, fmt.Errorf("caller: syscall conn: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil {
		return Context{}, fmt.Errorf("caller: socket control: %w", ctrlErr)
	}
	if credErr != nil {
		return Context{}, fmt.Errorf("caller: SO_PEERCRED: %w", credErr)
	}

	ctx := Context{
		PID: int(cred.Pid),
		UID: int(cred.Uid),
	}

	if u, err := user.LookupId(strconv.Itoa(ctx.UID)); err == nil {
		ctx.OSIdentity = u.Username
		if gids, err := u.GroupIds(); err == nil {
			for _, gid := range gids {
				if g, err := user.LookupGroupId(gid); err == nil {
					ctx.Groups = append(ctx.Groups, g.Name)
				}
			}
		}
	} else {
		ctx.OSIdentity = strconv.Itoa(ctx.UID)
	}

	// Exe can only vanish if the peer died between connect and here;
	// leaving it empty makes the trusted-path gate deny.
	if path, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", ctx.PID)); err == nil {
		ctx.ProcessPath = strings.TrimSuffix(path, " (deleted)")
	}

	if stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", ctx.PID)); err == nil {
		if ppid, err := parentPIDFromStat(string(stat)); err == nil {
			ctx.ParentPID = ppid
		}
	}

	return ctx, nil
}

// ProcessName returns the base name of the process with the given pid.
func (o *OS) ProcessName(pid int) (string, error) {
	comm, err := os.ReadFile(fmt.Sprintf("/proc/%d/comm", pid))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoSuchProcess
		}
		return "", fmt.Errorf("caller: read comm for pid %d: %w", pid, err)
	}
	return strings.TrimSpace(string(comm)), nil
}

// parentPIDFromStat extracts field 4 of /proc/<pid>/stat. The comm field
// (2) may contain spaces and parentheses, so parsing starts after the last
// closing parenthesis.
func parentPIDFromStat(stat string) (int, error) {
	end := strings.LastIndexByte(stat, ')')
	if end < 0 || end+2 >= len(stat) {
		return 0, fmt.Errorf("caller: malformed stat line")
	}
	fields := strings.Fields(stat[end+2:])
	// fields[0] is state, fields[1] is ppid
	if len(fields) < 2 {
		return 0, fmt.Errorf("caller: malformed stat line")
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("caller: parse ppid: %w", err)
	}
	return ppid, nil
}
