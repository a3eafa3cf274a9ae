//go:build !windows

package ops

import (
	"context"

	"github.com/codefionn/pfortner/internal/protocol"
)

// RegistryRead needs the Windows registry; the portable build has none.
func (l *Local) RegistryRead(ctx context.Context, p protocol.RegistryReadParams) (protocol.RegistryReadResult, error) {
	return protocol.RegistryReadResult{}, ErrUnsupported
}

// RegistryWrite needs the Windows registry; the portable build has none.
func (l *Local) RegistryWrite(ctx context.Context, p protocol.RegistryWriteParams) (protocol.RegistryWriteResult, error) {
	return protocol.RegistryWriteResult{}, ErrUnsupported
}
