package brokerd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/codefionn/pfortner/internal/audit"
	"github.com/codefionn/pfortner/internal/caller"
	"github.com/codefionn/pfortner/internal/consts"
	"github.com/codefionn/pfortner/internal/logger"
	"github.com/codefionn/pfortner/internal/policy"
	"github.com/codefionn/pfortner/internal/protocol"
)

// connection is one caller's channel to the broker. Messages on it are
// handled sequentially; connections are isolated from one another.
type connection struct {
	id   string
	conn net.Conn
	srv  *Server

	// ctx is the OS-derived caller identity, resolved once at accept time.
	// The client payload can never override it.
	ctx      caller.Context
	resolved bool
}

func (s *Server) serveConn(id string, conn net.Conn) {
	defer conn.Close()
	defer func() {
		// A handler fault closes this connection only; the service and
		// every other connection stay up.
		if r := recover(); r != nil {
			logger.Error("%s: connection handler panic: %v", id, r)
		}
	}()

	c := &connection{id: id, conn: conn, srv: s}

	if deps := s.getDeps(); deps != nil {
		if !c.resolveCaller(deps) {
			return
		}
	}

	logger.Debug("%s: connected (identity=%q path=%q)", id, c.ctx.OSIdentity, c.ctx.ProcessPath)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, consts.BufferSize1KB), consts.MaxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := c.handle(line)
		if !c.write(resp) {
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		if errors.Is(err, bufio.ErrTooLong) {
			// Structured rejection, then drop the connection: the reader
			// cannot resynchronize mid-oversized-line.
			c.write(protocol.NewErrorResponse("", protocol.ErrorCodeProtocol, "message exceeds line limit"))
		}
		logger.Debug("%s: read ended: %v", id, err)
	}
	logger.Debug("%s: disconnected", id)
}

// resolveCaller derives the caller context from the connection's peer
// credentials. A connection the platform cannot vouch for is refused.
func (c *connection) resolveCaller(deps *Deps) bool {
	ctx, err := deps.Resolver.Resolve(c.conn)
	if err != nil {
		logger.Warn("%s: caller resolution failed, refusing connection: %v", c.id, err)
		c.write(protocol.NewErrorResponse("", protocol.ErrorCodeUnauthorized, "unauthorized"))
		return false
	}
	c.ctx = ctx
	c.resolved = true
	return true
}

func (c *connection) write(resp *protocol.Response) bool {
	data, err := marshalResponse(resp)
	if err != nil {
		logger.Error("%s: marshal response: %v", c.id, err)
		return false
	}
	c.conn.SetWriteDeadline(time.Now().Add(consts.Timeout10Seconds))
	if _, err := c.conn.Write(data); err != nil {
		logger.Debug("%s: write failed: %v", c.id, err)
		return false
	}
	return true
}

func marshalResponse(resp *protocol.Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// handle runs one framed request through the pipeline: parse, authenticate,
// validate, policy, execute. Every failure mode becomes a structured
// response; nothing escapes as a fault.
func (c *connection) handle(line []byte) (resp *protocol.Response) {
	start := time.Now()
	deps := c.srv.getDeps()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("%s: request handler panic: %v", c.id, r)
			resp = protocol.NewErrorResponse(salvageRequestID(line), protocol.ErrorCodeInternal, "internal error")
		}
	}()

	// Ready gate: nothing is verified or evaluated before the policy
	// engine and secret are loaded.
	if deps == nil {
		return protocol.NewErrorResponse(salvageRequestID(line), protocol.ErrorCodeNotReady, "service is starting")
	}
	if !c.resolved {
		if !c.resolveCaller(deps) {
			return protocol.NewErrorResponse(salvageRequestID(line), protocol.ErrorCodeUnauthorized, "unauthorized")
		}
	}

	// Parse.
	var req protocol.Request
	if err := json.Unmarshal(line, &req); err != nil {
		logger.Debug("%s: malformed message: %v", c.id, err)
		return protocol.NewErrorResponse(salvageRequestID(line), protocol.ErrorCodeProtocol, "malformed message")
	}

	// Authenticate. The policy engine must never see a request that fails
	// here, and the caller learns nothing beyond "unauthorized".
	if reason := c.authenticate(deps, &req); reason != "" {
		logger.Warn("%s: rejected request %s: %s (identity=%q)", c.id, req.RequestID, reason, c.ctx.OSIdentity)
		c.audit(deps, &req, audit.DecisionUnauthorized, reason, start)
		return c.finish(deps, protocol.NewErrorResponse(req.RequestID, protocol.ErrorCodeUnauthorized, "unauthorized"))
	}

	// Validate shape.
	if !protocol.KnownOperation(req.Operation) {
		c.audit(deps, &req, audit.DecisionDenied, "unknown_operation", start)
		return c.finish(deps, protocol.NewErrorResponse(req.RequestID, protocol.ErrorCodeProtocol,
			fmt.Sprintf("unknown operation %q", req.Operation)))
	}
	if err := deps.Validator.Validate(req.Operation, req.Parameters); err != nil {
		c.audit(deps, &req, audit.DecisionDenied, "invalid_parameters", start)
		return c.finish(deps, protocol.NewErrorResponse(req.RequestID, protocol.ErrorCodeProtocol, err.Error()))
	}

	// Policy.
	result := deps.Engine.Evaluate(req.Operation, req.Parameters, c.ctx)
	if !result.Allowed() {
		return c.deny(deps, &req, result, start)
	}

	// Execute. An OS failure is "attempted but failed", reported so the
	// client can tell it apart from a denial.
	data, err := dispatch(context.Background(), deps.Executor, &req)
	if err != nil {
		logger.Info("%s: %s %s failed: %v", c.id, req.Operation, req.RequestID, err)
		c.audit(deps, &req, audit.DecisionError, err.Error(), start)
		return c.finish(deps, protocol.NewErrorResponse(req.RequestID, protocol.ErrorCodeExecution,
			"operation failed: "+err.Error()))
	}

	ok, rerr := protocol.NewResponse(req.RequestID, data)
	if rerr != nil {
		logger.Error("%s: encode result: %v", c.id, rerr)
		c.audit(deps, &req, audit.DecisionError, rerr.Error(), start)
		return c.finish(deps, protocol.NewErrorResponse(req.RequestID, protocol.ErrorCodeInternal, "internal error"))
	}
	c.audit(deps, &req, audit.DecisionAllowed, result.Rule, start)
	return c.finish(deps, ok)
}

// authenticate verifies signature, timestamp freshness and requestId
// uniqueness. It returns the real cause for the log and audit trail; the
// caller only ever sees "unauthorized".
func (c *connection) authenticate(deps *Deps, req *protocol.Request) string {
	if err := deps.Signer.VerifyRequest(req); err != nil {
		return "signature: " + err.Error()
	}
	if err := protocol.CheckFreshness(req.Timestamp, time.Now(), c.srv.cfg.FreshnessWindow()); err != nil {
		return "freshness: " + err.Error()
	}
	if req.RequestID == "" {
		return "empty request id"
	}
	if !c.srv.replay.remember(req.RequestID, time.Now()) {
		return "duplicate request id"
	}
	return ""
}

func (c *connection) deny(deps *Deps, req *protocol.Request, result policy.Result, start time.Time) *protocol.Response {
	switch {
	case result.Reason.Unauthorized():
		c.audit(deps, req, audit.DecisionUnauthorized, result.Reason.String(), start)
		return c.finish(deps, protocol.NewErrorResponse(req.RequestID, protocol.ErrorCodeUnauthorized, "unauthorized"))
	case result.Reason == policy.ReasonRateLimited:
		c.audit(deps, req, audit.DecisionRateLimited, result.Reason.String(), start)
		return c.finish(deps, protocol.NewErrorResponse(req.RequestID, protocol.ErrorCodeRateLimited, result.Reason.Message()))
	default:
		c.audit(deps, req, audit.DecisionDenied, result.Reason.String(), start)
		return c.finish(deps, protocol.NewErrorResponse(req.RequestID, protocol.ErrorCodePolicyDenied, result.Reason.Message()))
	}
}

// finish signs the outgoing response when response signing is enabled.
// Not-ready responses never reach here; they are unsigned by necessity.
func (c *connection) finish(deps *Deps, resp *protocol.Response) *protocol.Response {
	if c.srv.cfg.SignResponses && deps.Signer != nil {
		if err := deps.Signer.SignResponse(resp); err != nil {
			logger.Error("%s: sign response: %v", c.id, err)
		}
	}
	return resp
}

func (c *connection) audit(deps *Deps, req *protocol.Request, decision, reason string, start time.Time) {
	if deps.Audit == nil {
		return
	}
	deps.Audit.Record(audit.Event{
		Time:        start,
		RequestID:   req.RequestID,
		Operation:   req.Operation,
		Identity:    c.ctx.OSIdentity,
		ProcessPath: c.ctx.ProcessPath,
		Decision:    decision,
		Reason:      reason,
		DurationMs:  time.Since(start).Milliseconds(),
	})
}

// salvageRequestID pulls a requestId out of an otherwise unusable message
// so the error response can still be correlated.
func salvageRequestID(line []byte) string {
	var partial struct {
		RequestID string `json:"requestId"`
	}
	if err := json.Unmarshal(line, &partial); err != nil {
		return ""
	}
	return partial.RequestID
}
