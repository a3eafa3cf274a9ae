package ops

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/codefionn/pfortner/internal/consts"
	"github.com/codefionn/pfortner/internal/protocol"
)

// Local performs real OS calls. File and process operations are portable;
// registry access needs the Windows build, and input, window enumeration
// and screen capture need a platform backend the portable build does not
// carry, so they return ErrUnsupported there.
type Local struct{}

// NewLocal returns the platform executor.
func NewLocal() *Local {
	return &Local{}
}

// Click has no portable input backend.
func (l *Local) Click(ctx context.Context, p protocol.ClickParams) (protocol.ClickResult, error) {
	return protocol.ClickResult{}, ErrUnsupported
}

// SendKeys has no portable input backend.
func (l *Local) SendKeys(ctx context.Context, p protocol.SendKeysParams) (protocol.SendKeysResult, error) {
	return protocol.SendKeysResult{}, ErrUnsupported
}

// Windows has no portable enumeration backend.
func (l *Local) Windows(ctx context.Context) (protocol.WindowsResult, error) {
	return protocol.WindowsResult{}, ErrUnsupported
}

// Screenshot has no portable capture backend.
func (l *Local) Screenshot(ctx context.Context) (protocol.ScreenshotResult, error) {
	return protocol.ScreenshotResult{}, ErrUnsupported
}

// ProcessStart launches the executable detached from the broker so a broker
// restart never takes started processes down with it.
func (l *Local) ProcessStart(ctx context.Context, p protocol.ProcessStartParams) (protocol.ProcessStartResult, error) {
	var args []string
	if strings.TrimSpace(p.Arguments) != "" {
		args = strings.Fields(p.Arguments)
	}

	cmd := exec.Command(p.FileName, args...)
	cmd.Dir = p.WorkingDirectory
	detachProcess(cmd)

	if err := cmd.Start(); err != nil {
		return protocol.ProcessStartResult{}, fmt.Errorf("ops: start %s: %w", p.FileName, err)
	}
	pid := cmd.Process.Pid

	// The broker does not wait for started processes, but the runtime
	// needs a waiter to reap them once they exit.
	go func() { _ = cmd.Wait() }()

	return protocol.ProcessStartResult{ProcessID: pid}, nil
}

// ProcessTerminate stops the process with the given pid. The policy engine
// has already resolved and checked the name; this only acts.
func (l *Local) ProcessTerminate(ctx context.Context, p protocol.ProcessTerminateParams) (protocol.ProcessTerminateResult, error) {
	proc, err := os.FindProcess(p.ProcessID)
	if err != nil {
		return protocol.ProcessTerminateResult{}, fmt.Errorf("ops: find process %d: %w", p.ProcessID, err)
	}
	if err := terminateProcess(proc); err != nil {
		return protocol.ProcessTerminateResult{}, fmt.Errorf("ops: terminate process %d: %w", p.ProcessID, err)
	}
	return protocol.ProcessTerminateResult{Terminated: true}, nil
}

// FileRead returns the file content in the requested encoding.
func (l *Local) FileRead(ctx context.Context, p protocol.FileReadParams) (protocol.FileReadResult, error) {
	info, err := os.Stat(p.FilePath)
	if err != nil {
		return protocol.FileReadResult{}, fmt.Errorf("ops: stat %s: %w", p.FilePath, err)
	}
	if info.Size() > consts.MaxFilePayloadBytes {
		return protocol.FileReadResult{}, fmt.Errorf("%w: %s is %d bytes", ErrPayloadTooLarge, p.FilePath, info.Size())
	}

	data, err := os.ReadFile(p.FilePath)
	if err != nil {
		return protocol.FileReadResult{}, fmt.Errorf("ops: read %s: %w", p.FilePath, err)
	}

	encoding := p.Encoding
	if encoding == "" {
		encoding = protocol.EncodingUTF8
	}
	content, err := encodeContent(data, encoding)
	if err != nil {
		return protocol.FileReadResult{}, err
	}
	return protocol.FileReadResult{Content: content, Encoding: encoding}, nil
}

// FileWrite writes the decoded content, creating the file with 0644.
func (l *Local) FileWrite(ctx context.Context, p protocol.FileWriteParams) (protocol.FileWriteResult, error) {
	encoding := p.Encoding
	if encoding == "" {
		encoding = protocol.EncodingUTF8
	}
	data, err := decodeContent(p.Content, encoding)
	if err != nil {
		return protocol.FileWriteResult{}, err
	}
	if len(data) > consts.MaxFilePayloadBytes {
		return protocol.FileWriteResult{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(data))
	}

	if err := os.WriteFile(p.FilePath, data, 0o644); err != nil {
		return protocol.FileWriteResult{}, fmt.Errorf("ops: write %s: %w", p.FilePath, err)
	}
	return protocol.FileWriteResult{BytesWritten: len(data)}, nil
}

func encodeContent(data []byte, encoding string) (string, error) {
	switch encoding {
	case protocol.EncodingUTF8:
		return string(data), nil
	case protocol.EncodingBase64:
		return base64.StdEncoding.EncodeToString(data), nil
	default:
		return "", fmt.Errorf("ops: unknown encoding %q", encoding)
	}
}

func decodeContent(content, encoding string) ([]byte, error) {
	switch encoding {
	case protocol.EncodingUTF8:
		return []byte(content), nil
	case protocol.EncodingBase64:
		data, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("ops: decode base64 content: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("ops: unknown encoding %q", encoding)
	}
}
