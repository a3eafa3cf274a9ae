package brokerclient

import (
	"context"

	"github.com/codefionn/pfortner/internal/protocol"
)

// Typed wrappers, one per broker operation.

// Click presses button at (x, y). An empty button means left.
func (c *Client) Click(ctx context.Context, x, y int, button string) (protocol.ClickResult, error) {
	var result protocol.ClickResult
	err := c.Call(ctx, protocol.OpClick, protocol.ClickParams{X: x, Y: y, Button: button}, &result)
	return result, err
}

// SendKeys types keys, optionally into the window titled targetWindow.
func (c *Client) SendKeys(ctx context.Context, keys, targetWindow string) (protocol.SendKeysResult, error) {
	var result protocol.SendKeysResult
	err := c.Call(ctx, protocol.OpSendKeys, protocol.SendKeysParams{Keys: keys, TargetWindow: targetWindow}, &result)
	return result, err
}

// GetWindows lists the visible top-level windows.
func (c *Client) GetWindows(ctx context.Context) (protocol.WindowsResult, error) {
	var result protocol.WindowsResult
	err := c.Call(ctx, protocol.OpGetWindows, protocol.EmptyParams{}, &result)
	return result, err
}

// ReadRegistry reads valueName under keyPath.
func (c *Client) ReadRegistry(ctx context.Context, keyPath, valueName string) (protocol.RegistryReadResult, error) {
	var result protocol.RegistryReadResult
	err := c.Call(ctx, protocol.OpRegistryRead, protocol.RegistryReadParams{KeyPath: keyPath, ValueName: valueName}, &result)
	return result, err
}

// WriteRegistry writes value to valueName under keyPath.
func (c *Client) WriteRegistry(ctx context.Context, keyPath, valueName string, value interface{}) (protocol.RegistryWriteResult, error) {
	var result protocol.RegistryWriteResult
	err := c.Call(ctx, protocol.OpRegistryWrite, protocol.RegistryWriteParams{KeyPath: keyPath, ValueName: valueName, Value: value}, &result)
	return result, err
}

// StartProcess launches fileName with arguments in workingDirectory.
func (c *Client) StartProcess(ctx context.Context, fileName, arguments, workingDirectory string) (protocol.ProcessStartResult, error) {
	var result protocol.ProcessStartResult
	err := c.Call(ctx, protocol.OpProcessStart, protocol.ProcessStartParams{
		FileName:         fileName,
		Arguments:        arguments,
		WorkingDirectory: workingDirectory,
	}, &result)
	return result, err
}

// TerminateProcess stops the process with processID.
func (c *Client) TerminateProcess(ctx context.Context, processID int) (protocol.ProcessTerminateResult, error) {
	var result protocol.ProcessTerminateResult
	err := c.Call(ctx, protocol.OpProcessTerminate, protocol.ProcessTerminateParams{ProcessID: processID}, &result)
	return result, err
}

// ReadFile reads filePath in the given encoding ("utf-8" or "base64",
// empty means utf-8).
func (c *Client) ReadFile(ctx context.Context, filePath, encoding string) (protocol.FileReadResult, error) {
	var result protocol.FileReadResult
	err := c.Call(ctx, protocol.OpFileRead, protocol.FileReadParams{FilePath: filePath, Encoding: encoding}, &result)
	return result, err
}

// WriteFile writes content to filePath in the given encoding.
func (c *Client) WriteFile(ctx context.Context, filePath, content, encoding string) (protocol.FileWriteResult, error) {
	var result protocol.FileWriteResult
	err := c.Call(ctx, protocol.OpFileWrite, protocol.FileWriteParams{FilePath: filePath, Content: content, Encoding: encoding}, &result)
	return result, err
}

// TakeScreenshot captures the screen.
func (c *Client) TakeScreenshot(ctx context.Context) (protocol.ScreenshotResult, error) {
	var result protocol.ScreenshotResult
	err := c.Call(ctx, protocol.OpTakeScreenshot, protocol.EmptyParams{}, &result)
	return result, err
}
