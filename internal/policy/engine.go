package policy

import (
	"encoding/json"

	"github.com/codefionn/pfortner/internal/caller"
	"github.com/codefionn/pfortner/internal/protocol"
	"github.com/codefionn/pfortner/internal/ratelimit"
)

// maxCoordinate bounds click targets to the virtual screen.
const maxCoordinate = 65535

// ProcessNameFunc resolves a pid to a process base name at decision time.
// The termination guard depends on it; an error means the target cannot be
// proven unguarded and the request is denied.
type ProcessNameFunc func(pid int) (string, error)

// Engine evaluates requests against the loaded rule set. It performs no
// I/O beyond the injected process-name resolver and mutates nothing but the
// rate-limit counters it owns, so one Engine is shared by every connection.
type Engine struct {
	rules    *Rules
	limiter  *ratelimit.Limiter
	procName ProcessNameFunc
}

// NewEngine creates an engine over rules. procName may be nil, in which
// case every processTerminate is denied as unresolvable.
func NewEngine(rules *Rules, limiter *ratelimit.Limiter, procName ProcessNameFunc) *Engine {
	return &Engine{
		rules:    rules,
		limiter:  limiter,
		procName: procName,
	}
}

// Rules returns the engine's immutable rule set.
func (e *Engine) Rules() *Rules {
	return e.rules
}

// Limiter returns the engine's rate limiter, for maintenance pruning.
func (e *Engine) Limiter() *ratelimit.Limiter {
	return e.limiter
}

// Evaluate decides whether ctx may perform op with the given parameters.
// The generic caller gate runs first: identity, calling process path, then
// the rate limit. Only then is the operation-specific rule consulted.
// Every check is default-deny.
func (e *Engine) Evaluate(op string, params json.RawMessage, ctx caller.Context) Result {
	if !e.rules.IdentityRecognized(ctx.OSIdentity, ctx.Groups) {
		return denied(ReasonUnknownIdentity, "identity")
	}
	if !e.rules.PathTrusted(ctx.ProcessPath) {
		return denied(ReasonUntrustedPath, "trusted_dirs")
	}
	if !e.limiter.Allow(ctx.OSIdentity, op) {
		return denied(ReasonRateLimited, "rate_limit")
	}

	switch op {
	case protocol.OpClick:
		return e.evaluateClick(params)
	case protocol.OpSendKeys:
		return e.evaluateSendKeys(params)
	case protocol.OpRegistryRead:
		return e.evaluateRegistryRead(params)
	case protocol.OpRegistryWrite:
		return e.evaluateRegistryWrite(params)
	case protocol.OpProcessStart:
		return e.evaluateProcessStart(params)
	case protocol.OpProcessTerminate:
		return e.evaluateProcessTerminate(params)
	case protocol.OpFileRead:
		return e.evaluateFileRead(params)
	case protocol.OpFileWrite:
		return e.evaluateFileWrite(params)
	case protocol.OpTakeScreenshot, protocol.OpGetWindows:
		// Non-destructive observation; gated by identity and rate limit only.
		return allowed("observe")
	default:
		return denied(ReasonInvalidParameters, "unknown_operation")
	}
}

func (e *Engine) evaluateClick(params json.RawMessage) Result {
	var p protocol.ClickParams
	if err := protocol.DecodeParams(params, &p); err != nil {
		return denied(ReasonInvalidParameters, "click")
	}
	if p.X < 0 || p.X > maxCoordinate || p.Y < 0 || p.Y > maxCoordinate {
		return denied(ReasonCoordinatesOutOfRange, "click_bounds")
	}
	return allowed("click_bounds")
}

func (e *Engine) evaluateSendKeys(params json.RawMessage) Result {
	var p protocol.SendKeysParams
	if err := protocol.DecodeParams(params, &p); err != nil {
		return denied(ReasonInvalidParameters, "sendKeys")
	}
	if seq, blocked := e.rules.BlockedSequence(p.Keys); blocked {
		return denied(ReasonBlockedSequence, "blocklist:"+seq)
	}
	return allowed("blocklist")
}

func (e *Engine) evaluateRegistryRead(params json.RawMessage) Result {
	var p protocol.RegistryReadParams
	if err := protocol.DecodeParams(params, &p); err != nil {
		return denied(ReasonInvalidParameters, "registryRead")
	}
	if pat, ok := e.rules.RegistryReadable(p.KeyPath); ok {
		return allowed("registry_read:" + pat.String())
	}
	return denied(ReasonPathNotReadable, "registry_read")
}

func (e *Engine) evaluateRegistryWrite(params json.RawMessage) Result {
	var p protocol.RegistryWriteParams
	if err := protocol.DecodeParams(params, &p); err != nil {
		return denied(ReasonInvalidParameters, "registryWrite")
	}
	// Only the write set decides; a read match grants nothing here.
	if pat, ok := e.rules.RegistryWritable(p.KeyPath); ok {
		return allowed("registry_write:" + pat.String())
	}
	return denied(ReasonPathNotWritable, "registry_write")
}

func (e *Engine) evaluateProcessStart(params json.RawMessage) Result {
	var p protocol.ProcessStartParams
	if err := protocol.DecodeParams(params, &p); err != nil {
		return denied(ReasonInvalidParameters, "processStart")
	}
	if !e.rules.ExecutableAllowed(p.FileName) {
		return denied(ReasonExecutableNotAllowed, "exec_allowlist")
	}
	return allowed("exec_allowlist")
}

func (e *Engine) evaluateProcessTerminate(params json.RawMessage) Result {
	var p protocol.ProcessTerminateParams
	if err := protocol.DecodeParams(params, &p); err != nil {
		return denied(ReasonInvalidParameters, "processTerminate")
	}
	if e.procName == nil {
		return denied(ReasonUnresolvableProcess, "termination_guard")
	}
	name, err := e.procName(p.ProcessID)
	if err != nil {
		// Cannot prove the target is unguarded; default-deny.
		return denied(ReasonUnresolvableProcess, "termination_guard")
	}
	if e.rules.Guarded(name) {
		return denied(ReasonProtectedProcess, "termination_guard:"+name)
	}
	return allowed("termination_guard")
}

func (e *Engine) evaluateFileRead(params json.RawMessage) Result {
	var p protocol.FileReadParams
	if err := protocol.DecodeParams(params, &p); err != nil {
		return denied(ReasonInvalidParameters, "fileRead")
	}
	if pat, ok := e.rules.FileReadable(p.FilePath); ok {
		return allowed("file_read:" + pat.String())
	}
	return denied(ReasonPathNotReadable, "file_read")
}

func (e *Engine) evaluateFileWrite(params json.RawMessage) Result {
	var p protocol.FileWriteParams
	if err := protocol.DecodeParams(params, &p); err != nil {
		return denied(ReasonInvalidParameters, "fileWrite")
	}
	if pat, ok := e.rules.FileWritable(p.FilePath); ok {
		return allowed("file_write:" + pat.String())
	}
	return denied(ReasonPathNotWritable, "file_write")
}
