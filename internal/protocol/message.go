// Package protocol defines the newline-delimited JSON messages exchanged
// between the broker service and its clients, the canonical form used for
// signing, and the per-operation parameter schemas.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation names carried in Request.Operation.
const (
	OpClick            = "click"
	OpSendKeys         = "sendKeys"
	OpGetWindows       = "getWindows"
	OpRegistryRead     = "registryRead"
	OpRegistryWrite    = "registryWrite"
	OpProcessStart     = "processStart"
	OpProcessTerminate = "processTerminate"
	OpFileRead         = "fileRead"
	OpFileWrite        = "fileWrite"
	OpTakeScreenshot   = "takeScreenshot"
)

// Operations lists every operation the broker accepts, in a stable order.
var Operations = []string{
	OpClick,
	OpSendKeys,
	OpGetWindows,
	OpRegistryRead,
	OpRegistryWrite,
	OpProcessStart,
	OpProcessTerminate,
	OpFileRead,
	OpFileWrite,
	OpTakeScreenshot,
}

// KnownOperation reports whether op names a broker operation.
func KnownOperation(op string) bool {
	switch op {
	case OpClick, OpSendKeys, OpGetWindows, OpRegistryRead, OpRegistryWrite,
		OpProcessStart, OpProcessTerminate, OpFileRead, OpFileWrite, OpTakeScreenshot:
		return true
	}
	return false
}

// Error codes carried in Response.ErrorCode.
const (
	// ErrorCodeProtocol indicates a malformed message or schema-invalid parameters
	ErrorCodeProtocol = "PROTOCOL_ERROR"
	// ErrorCodeUnauthorized covers signature, freshness, replay and identity failures
	ErrorCodeUnauthorized = "UNAUTHORIZED"
	// ErrorCodePolicyDenied indicates an operation-specific rule rejected the request
	ErrorCodePolicyDenied = "POLICY_DENIED"
	// ErrorCodeRateLimited tells the caller to back off before retrying
	ErrorCodeRateLimited = "RATE_LIMITED"
	// ErrorCodeExecution indicates the approved OS call itself failed
	ErrorCodeExecution = "EXECUTION_ERROR"
	// ErrorCodeNotReady is returned until the service finished loading its rules
	ErrorCodeNotReady = "SERVICE_NOT_READY"
	// ErrorCodeInternal is returned for recovered handler faults
	ErrorCodeInternal = "INTERNAL_ERROR"
)

// Request is one framed client call. Parameters stays raw until the service
// has validated its shape for the named operation.
type Request struct {
	RequestID  string          `json:"requestId"`
	Operation  string          `json:"operation"`
	Parameters json.RawMessage `json:"parameters"`
	Timestamp  string          `json:"timestamp"`
	Signature  string          `json:"signature"`
}

// Response is one framed service reply, correlated to its request by
// RequestID. Data is present iff Success; ErrorCode and ErrorMessage iff not.
type Response struct {
	RequestID    string          `json:"requestId"`
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data,omitempty"`
	ErrorCode    string          `json:"errorCode,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Timestamp    string          `json:"timestamp"`
	Signature    string          `json:"signature,omitempty"`
}

// NewRequest creates an unsigned request for op with a fresh id and timestamp.
func NewRequest(op string, params interface{}) (*Request, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal parameters: %w", err)
	}
	return &Request{
		RequestID:  uuid.New().String(),
		Operation:  op,
		Parameters: raw,
		Timestamp:  Now(),
	}, nil
}

// NewResponse creates an unsigned success response carrying data.
func NewResponse(requestID string, data interface{}) (*Response, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal data: %w", err)
		}
		raw = b
	}
	return &Response{
		RequestID: requestID,
		Success:   true,
		Data:      raw,
		Timestamp: Now(),
	}, nil
}

// NewErrorResponse creates an unsigned failure response.
func NewErrorResponse(requestID, code, message string) *Response {
	return &Response{
		RequestID:    requestID,
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: message,
		Timestamp:    Now(),
	}
}

// Now returns the wire form of the current instant.
func Now() string {
	return FormatTime(time.Now())
}

// FormatTime renders t in the wire timestamp format (RFC 3339, UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime parses a wire timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	return t, nil
}

// DecodeParams unmarshals raw parameters into a typed shape.
func DecodeParams(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("protocol: decode parameters: %w", err)
	}
	return nil
}

// DecodeData unmarshals response data into a typed shape.
func DecodeData(raw json.RawMessage, into interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("protocol: response carries no data")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("protocol: decode data: %w", err)
	}
	return nil
}
