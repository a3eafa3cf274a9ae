package brokerclient

import (
	"errors"
	"fmt"

	"github.com/codefionn/pfortner/internal/protocol"
)

// Sentinel errors for errors.Is dispatch on call outcomes.
var (
	// ErrUnauthorized means the service rejected the request's signature,
	// freshness or caller identity.
	ErrUnauthorized = errors.New("brokerclient: unauthorized")
	// ErrPolicyDenied means a policy rule rejected the operation.
	ErrPolicyDenied = errors.New("brokerclient: denied by policy")
	// ErrRateLimited means the caller exhausted its request budget.
	ErrRateLimited = errors.New("brokerclient: rate limited")
	// ErrNotReady means the service has not finished loading its rules.
	ErrNotReady = errors.New("brokerclient: service not ready")
	// ErrExecutionFailed means the operation was approved but the OS call failed.
	ErrExecutionFailed = errors.New("brokerclient: execution failed")
	// ErrProtocol means the service rejected the message shape.
	ErrProtocol = errors.New("brokerclient: protocol error")
	// ErrBrokerUnavailable means the socket cannot be reached or the
	// connection was lost mid-call.
	ErrBrokerUnavailable = errors.New("brokerclient: broker unavailable")
	// ErrTimeout means no response arrived within the request timeout.
	ErrTimeout = errors.New("brokerclient: request timed out")
	// ErrUnsignedResponse means response verification is on and the service
	// sent a response without a valid signature.
	ErrUnsignedResponse = errors.New("brokerclient: response not signed")
	// ErrClosed means the client was closed.
	ErrClosed = errors.New("brokerclient: client closed")
)

// BrokerError carries a structured error response from the service. It
// unwraps to the sentinel matching its code so callers can use errors.Is
// without inspecting code strings.
type BrokerError struct {
	Code    string
	Message string
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *BrokerError) Unwrap() error {
	switch e.Code {
	case protocol.ErrorCodeUnauthorized:
		return ErrUnauthorized
	case protocol.ErrorCodePolicyDenied:
		return ErrPolicyDenied
	case protocol.ErrorCodeRateLimited:
		return ErrRateLimited
	case protocol.ErrorCodeNotReady:
		return ErrNotReady
	case protocol.ErrorCodeExecution:
		return ErrExecutionFailed
	case protocol.ErrorCodeProtocol:
		return ErrProtocol
	default:
		return nil
	}
}

func responseError(resp *protocol.Response) error {
	return &BrokerError{Code: resp.ErrorCode, Message: resp.ErrorMessage}
}
