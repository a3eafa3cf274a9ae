package protocol

import "errors"

var (
	// ErrUnknownOperation is returned for an operation name the broker does not serve.
	ErrUnknownOperation = errors.New("protocol: unknown operation")
	// ErrBadTimestamp is returned when a wire timestamp does not parse.
	ErrBadTimestamp = errors.New("protocol: malformed timestamp")
	// ErrStaleTimestamp is returned when a timestamp falls outside the freshness window.
	ErrStaleTimestamp = errors.New("protocol: timestamp outside freshness window")
	// ErrMissingSignature is returned for an unsigned message on a signed channel.
	ErrMissingSignature = errors.New("protocol: missing signature")
	// ErrBadSignature is returned when signature verification fails.
	ErrBadSignature = errors.New("protocol: signature mismatch")
	// ErrBadParameters is returned when parameters fail schema validation.
	ErrBadParameters = errors.New("protocol: invalid parameters")
)
