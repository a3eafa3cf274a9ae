// Package caller derives the identity of a connected client from the
// operating system, never from anything the client sends. The broker trusts
// only what the socket's peer credentials and the process table report.
package caller

import (
	"errors"
	"net"
)

// Context describes one connection's peer. It is resolved once at accept
// time and reused for every request on that connection.
type Context struct {
	// OSIdentity is the peer's user or service account name.
	OSIdentity string
	// ProcessPath is the peer executable's filesystem path, empty when the
	// platform cannot provide it.
	ProcessPath string
	// PID is the peer process id.
	PID int
	// ParentPID is the peer's parent process id, 0 when unknown.
	ParentPID int
	// UID is the peer's numeric user id.
	UID int
	// Groups holds the peer's group names, used for the admin-group check.
	Groups []string
}

// Resolver turns connections into caller contexts and resolves process
// names for the termination guard.
type Resolver interface {
	// Resolve returns the peer context of a local socket connection.
	Resolve(conn net.Conn) (Context, error)
	// ProcessName returns the base name of the process with the given pid.
	ProcessName(pid int) (string, error)
}

var (
	// ErrUnsupportedConn is returned for connections without peer credentials.
	ErrUnsupportedConn = errors.New("caller: connection has no peer credentials")
	// ErrNoSuchProcess is returned when a pid does not resolve to a process.
	ErrNoSuchProcess = errors.New("caller: no such process")
)

// Static is a fixed-answer resolver for tests and simulator mode.
type Static struct {
	// Ctx is returned for every connection.
	Ctx Context
	// Err, when set, is returned instead.
	Err error
	// Names maps pids to process names for ProcessName.
	Names map[int]string
}

// Resolve returns the configured context.
func (s *Static) Resolve(net.Conn) (Context, error) {
	if s.Err != nil {
		return Context{}, s.Err
	}
	return s.Ctx, nil
}

// ProcessName looks up the configured name table.
func (s *Static) ProcessName(pid int) (string, error) {
	name, ok := s.Names[pid]
	if !ok {
		return "", ErrNoSuchProcess
	}
	return name, nil
}
