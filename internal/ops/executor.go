// Package ops performs the privileged OS calls the broker approves. The
// policy engine decides; an Executor only acts. Every executor failure is
// an ordinary error the service reports as an execution error, never as a
// denial.
package ops

import (
	"context"
	"errors"

	"github.com/codefionn/pfortner/internal/protocol"
)

// ErrUnsupported is returned by operations without a backend on the
// current platform. The sim executor supports everything; the local
// executor supports the portable subset plus whatever the platform build
// provides.
var ErrUnsupported = errors.New("ops: operation not supported on this platform")

// ErrPayloadTooLarge is returned when file content exceeds the wire cap.
var ErrPayloadTooLarge = errors.New("ops: payload exceeds size limit")

// Executor performs the ten broker operations. Implementations must be
// safe for concurrent use; each connection worker calls into the shared
// executor directly.
type Executor interface {
	Click(ctx context.Context, p protocol.ClickParams) (protocol.ClickResult, error)
	SendKeys(ctx context.Context, p protocol.SendKeysParams) (protocol.SendKeysResult, error)
	Windows(ctx context.Context) (protocol.WindowsResult, error)
	RegistryRead(ctx context.Context, p protocol.RegistryReadParams) (protocol.RegistryReadResult, error)
	RegistryWrite(ctx context.Context, p protocol.RegistryWriteParams) (protocol.RegistryWriteResult, error)
	ProcessStart(ctx context.Context, p protocol.ProcessStartParams) (protocol.ProcessStartResult, error)
	ProcessTerminate(ctx context.Context, p protocol.ProcessTerminateParams) (protocol.ProcessTerminateResult, error)
	FileRead(ctx context.Context, p protocol.FileReadParams) (protocol.FileReadResult, error)
	FileWrite(ctx context.Context, p protocol.FileWriteParams) (protocol.FileWriteResult, error)
	Screenshot(ctx context.Context) (protocol.ScreenshotResult, error)
}

// New returns the executor selected by name: "local" for real OS calls,
// "sim" for the deterministic in-memory implementation.
func New(name string) (Executor, error) {
	switch name {
	case "", "local":
		return NewLocal(), nil
	case "sim":
		return NewSim(), nil
	default:
		return nil, errors.New("ops: unknown executor " + name)
	}
}
