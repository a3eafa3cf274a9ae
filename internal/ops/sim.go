package ops

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/codefionn/pfortner/internal/protocol"
)

// Sim is a deterministic in-memory executor for tests and development mode
// (`executor = "sim"`). Every operation succeeds against virtual state, so
// the full request pipeline is exercisable on any platform without touching
// the real OS.
type Sim struct {
	mu sync.Mutex

	registry  map[string]map[string]interface{}
	files     map[string][]byte
	windows   []protocol.WindowInfo
	processes map[int]string
	nextPID   int

	clicks   []protocol.ClickParams
	keysSent []string
}

// NewSim creates a simulator with a small fixed window list and an empty
// registry and filesystem.
func NewSim() *Sim {
	return &Sim{
		registry: make(map[string]map[string]interface{}),
		files:    make(map[string][]byte),
		windows: []protocol.WindowInfo{
			{
				Handle:      0x10010,
				Title:       "Untitled - Notepad",
				ClassName:   "Notepad",
				ProcessID:   2001,
				ProcessName: "notepad.exe",
				IsVisible:   true,
				Bounds:      protocol.WindowBounds{X: 100, Y: 100, Width: 800, Height: 600},
			},
			{
				Handle:      0x10020,
				Title:       "Calculator",
				ClassName:   "ApplicationFrameWindow",
				ProcessID:   2002,
				ProcessName: "calculator.exe",
				IsVisible:   true,
				Bounds:      protocol.WindowBounds{X: 300, Y: 200, Width: 400, Height: 500},
			},
		},
		processes: map[int]string{
			2001: "notepad.exe",
			2002: "calculator.exe",
		},
		nextPID: 5000,
	}
}

// Click records the click and echoes it back.
func (s *Sim) Click(ctx context.Context, p protocol.ClickParams) (protocol.ClickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, p)
	button := p.Button
	if button == "" {
		button = protocol.ButtonLeft
	}
	return protocol.ClickResult{X: p.X, Y: p.Y, Button: button}, nil
}

// SendKeys records the key text and reports its length.
func (s *Sim) SendKeys(ctx context.Context, p protocol.SendKeysParams) (protocol.SendKeysResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keysSent = append(s.keysSent, p.Keys)
	return protocol.SendKeysResult{KeysSent: len(p.Keys)}, nil
}

// Windows returns the fixed virtual window list.
func (s *Sim) Windows(ctx context.Context) (protocol.WindowsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.WindowInfo, len(s.windows))
	copy(out, s.windows)
	return protocol.WindowsResult{Windows: out}, nil
}

// RegistryRead reads from the virtual registry.
func (s *Sim) RegistryRead(ctx context.Context, p protocol.RegistryReadParams) (protocol.RegistryReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.registry[p.KeyPath]
	if !ok {
		return protocol.RegistryReadResult{}, fmt.Errorf("ops: key %s does not exist", p.KeyPath)
	}
	value, ok := values[p.ValueName]
	if !ok {
		return protocol.RegistryReadResult{}, fmt.Errorf("ops: value %s\\%s does not exist", p.KeyPath, p.ValueName)
	}
	return protocol.RegistryReadResult{KeyPath: p.KeyPath, ValueName: p.ValueName, Value: value}, nil
}

// RegistryWrite writes to the virtual registry, creating the key if needed.
func (s *Sim) RegistryWrite(ctx context.Context, p protocol.RegistryWriteParams) (protocol.RegistryWriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, ok := s.registry[p.KeyPath]
	if !ok {
		values = make(map[string]interface{})
		s.registry[p.KeyPath] = values
	}
	values[p.ValueName] = p.Value
	return protocol.RegistryWriteResult{Written: true}, nil
}

// ProcessStart records a virtual process and hands out the next pid.
func (s *Sim) ProcessStart(ctx context.Context, p protocol.ProcessStartParams) (protocol.ProcessStartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPID++
	pid := s.nextPID
	s.processes[pid] = p.FileName
	return protocol.ProcessStartResult{ProcessID: pid}, nil
}

// ProcessTerminate removes a virtual process.
func (s *Sim) ProcessTerminate(ctx context.Context, p protocol.ProcessTerminateParams) (protocol.ProcessTerminateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processes[p.ProcessID]; !ok {
		return protocol.ProcessTerminateResult{}, fmt.Errorf("ops: process %d does not exist", p.ProcessID)
	}
	delete(s.processes, p.ProcessID)
	return protocol.ProcessTerminateResult{Terminated: true}, nil
}

// FileRead reads from the virtual filesystem.
func (s *Sim) FileRead(ctx context.Context, p protocol.FileReadParams) (protocol.FileReadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[p.FilePath]
	if !ok {
		return protocol.FileReadResult{}, fmt.Errorf("ops: file %s does not exist", p.FilePath)
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

// FileWrite writes to the virtual filesystem.
func (s *Sim) FileWrite(ctx context.Context, p protocol.FileWriteParams) (protocol.FileWriteResult, error) {
	encoding := p.Encoding
	if encoding == "" {
		encoding = protocol.EncodingUTF8
	}
	data, err := decodeContent(p.Content, encoding)
	if err != nil {
		return protocol.FileWriteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[p.FilePath] = data
	return protocol.FileWriteResult{BytesWritten: len(data)}, nil
}

// Screenshot returns a fixed fake frame.
func (s *Sim) Screenshot(ctx context.Context) (protocol.ScreenshotResult, error) {
	// A 1x1 PNG would do; the payload just has to be stable base64.
	fake := base64.StdEncoding.EncodeToString([]byte("pfortner-sim-frame"))
	return protocol.ScreenshotResult{
		ImageBase64: fake,
		Format:      "png",
		Width:       1920,
		Height:      1080,
	}, nil
}

// Clicks returns the clicks recorded so far. Test helper.
func (s *Sim) Clicks() []protocol.ClickParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.ClickParams, len(s.clicks))
	copy(out, s.clicks)
	return out
}

// SeedFile places content into the virtual filesystem. Test helper.
func (s *Sim) SeedFile(path string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
}

// SeedProcess places a process into the virtual process table. Test helper.
func (s *Sim) SeedProcess(pid int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processes[pid] = name
}

// ProcessName resolves a virtual pid, mirroring caller.Resolver so sim mode
// can back the termination guard.
func (s *Sim) ProcessName(pid int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.processes[pid]
	if !ok {
		return "", fmt.Errorf("ops: process %d does not exist", pid)
	}
	return name, nil
}
