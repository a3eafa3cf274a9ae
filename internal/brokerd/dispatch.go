package brokerd

import (
	"context"
	"fmt"

	"github.com/codefionn/pfortner/internal/ops"
	"github.com/codefionn/pfortner/internal/protocol"
)

// dispatch routes an approved request to the executor. Parameters have
// already passed schema validation and policy; this only decodes and acts.
func dispatch(ctx context.Context, exec ops.Executor, req *protocol.Request) (interface{}, error) {
	switch req.Operation {
	case protocol.OpClick:
		var p protocol.ClickParams
		if err := protocol.DecodeParams(req.Parameters, &p); err != nil {
			return nil, err
		}
		return exec.Click(ctx, p)
	case protocol.OpSendKeys:
		var p protocol.SendKeysParams
		if err := protocol.DecodeParams(req.Parameters, &p); err != nil {
			return nil, err
		}
		return exec.SendKeys(ctx, p)
	case protocol.OpGetWindows:
		return exec.Windows(ctx)
	case protocol.OpRegistryRead:
		var p protocol.RegistryReadParams
		if err := protocol.DecodeParams(req.Parameters, &p); err != nil {
			return nil, err
		}
		return exec.RegistryRead(ctx, p)
	case protocol.OpRegistryWrite:
		var p protocol.RegistryWriteParams
		if err := protocol.DecodeParams(req.Parameters, &p); err != nil {
			return nil, err
		}
		return exec.RegistryWrite(ctx, p)
	case protocol.OpProcessStart:
		var p protocol.ProcessStartParams
		if err := protocol.DecodeParams(req.Parameters, &p); err != nil {
			return nil, err
		}
		return exec.ProcessStart(ctx, p)
	case protocol.OpProcessTerminate:
		var p protocol.ProcessTerminateParams
		if err := protocol.DecodeParams(req.Parameters, &p); err != nil {
			return nil, err
		}
		return exec.ProcessTerminate(ctx, p)
	case protocol.OpFileRead:
		var p protocol.FileReadParams
		if err := protocol.DecodeParams(req.Parameters, &p); err != nil {
			return nil, err
		}
		return exec.FileRead(ctx, p)
	case protocol.OpFileWrite:
		var p protocol.FileWriteParams
		if err := protocol.DecodeParams(req.Parameters, &p); err != nil {
			return nil, err
		}
		return exec.FileWrite(ctx, p)
	case protocol.OpTakeScreenshot:
		return exec.Screenshot(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", protocol.ErrUnknownOperation, req.Operation)
	}
}
