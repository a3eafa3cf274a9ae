//go:build darwin

package caller

import (
	"fmt"
	"net"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// OS resolves peers through LOCAL_PEERCRED and LOCAL_PEERPID.
type OS struct{}

// NewOS returns the platform resolver.
func NewOS() *OS {
	return &OS{}
}

// Resolve reads the peer's credentials from the socket. Darwin offers no
// portable way to resolve the peer's executable path, so ProcessPath stays
// empty and the trusted-path gate denies unless the policy is widened.
func (o *OS) Resolve(conn net.Conn) (Context, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return Context{}, ErrUnsupportedConn
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return Context{}, fmt.Errorf("caller: syscall conn: %w", err)
	}

	var cred *unix.Xucred
	var pid int
	var credErr error
	ctrlErr := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptXucred(int(fd), unix.SOL_LOCAL, unix.LOCAL_PEERCRED)
		if credErr != nil {
			return
		}
		pid, credErr = unix.GetsockoptInt(int(fd), unix.SOL_LOCAL, unix.LOCAL_PEERPID)
	})
	if ctrlErr != nil {
		return Context{}, fmt.Errorf("caller: socket control: %w", ctrlErr)
	}
	if credErr != nil {
		return Context{}, fmt.Errorf("caller: LOCAL_PEERCRED: %w", credErr)
	}

	ctx := Context{
		PID: pid,
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

	return ctx, nil
}

// ProcessName is not available without linking against libproc.
func (o *OS) ProcessName(pid int) (string, error) {
	return "", fmt.Errorf("caller: process names unsupported on this platform (pid %d)", pid)
}
