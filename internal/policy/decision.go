// Package policy decides, for a parsed request and its caller, whether the
// broker may perform an operation. Every check is default-deny: absence of
// an explicit allow match is a rejection.
package policy

// Decision is the outcome of a policy check.
type Decision int

const (
	// Deny means the operation must not be performed.
	Deny Decision = iota
	// Allow means the operation may be performed.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// DenyReason describes why a check rejected a request.
type DenyReason int

const (
	// ReasonNone is set on allowed results.
	ReasonNone DenyReason = iota
	// ReasonUnknownIdentity means the caller's OS identity is not recognized.
	ReasonUnknownIdentity
	// ReasonUntrustedPath means the calling executable is outside the trusted install directories.
	ReasonUntrustedPath
	// ReasonRateLimited means the (identity, operation) budget is exhausted.
	ReasonRateLimited
	// ReasonCoordinatesOutOfRange means a click target is outside the virtual screen bounds.
	ReasonCoordinatesOutOfRange
	// ReasonBlockedSequence means the key text contains a blocklisted sequence.
	ReasonBlockedSequence
	// ReasonPathNotReadable means no readable pattern matched.
	ReasonPathNotReadable
	// ReasonPathNotWritable means no writable pattern matched.
	ReasonPathNotWritable
	// ReasonExecutableNotAllowed means the executable is not allowlisted.
	ReasonExecutableNotAllowed
	// ReasonProtectedProcess means the target process is in the termination guard.
	ReasonProtectedProcess
	// ReasonUnresolvableProcess means the target pid could not be resolved to a name.
	ReasonUnresolvableProcess
	// ReasonInvalidParameters means the parameters did not decode.
	ReasonInvalidParameters
)

// String returns a stable identifier for logs and audit rows.
func (r DenyReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnknownIdentity:
		return "unknown_identity"
	case ReasonUntrustedPath:
		return "untrusted_path"
	case ReasonRateLimited:
		return "rate_limited"
	case ReasonCoordinatesOutOfRange:
		return "coordinates_out_of_range"
	case ReasonBlockedSequence:
		return "blocked_sequence"
	case ReasonPathNotReadable:
		return "path_not_readable"
	case ReasonPathNotWritable:
		return "path_not_writable"
	case ReasonExecutableNotAllowed:
		return "executable_not_allowed"
	case ReasonProtectedProcess:
		return "protected_process"
	case ReasonUnresolvableProcess:
		return "unresolvable_process"
	case ReasonInvalidParameters:
		return "invalid_parameters"
	default:
		return "unknown"
	}
}

// Message returns the caller-safe denial text. Specific enough for a
// legitimate caller to self-correct, without exposing the rule sets.
func (r DenyReason) Message() string {
	switch r {
	case ReasonUnknownIdentity, ReasonUntrustedPath:
		return "unauthorized"
	case ReasonRateLimited:
		return "rate limit exceeded, back off before retrying"
	case ReasonCoordinatesOutOfRange:
		return "coordinates out of range"
	case ReasonBlockedSequence:
		return "key sequence not allowed"
	case ReasonPathNotReadable:
		return "read access to this path is not allowed"
	case ReasonPathNotWritable:
		return "write access to this path is not allowed"
	case ReasonExecutableNotAllowed:
		return "executable not allowed"
	case ReasonProtectedProcess:
		return "terminating this process is not allowed"
	case ReasonUnresolvableProcess:
		return "target process could not be resolved"
	case ReasonInvalidParameters:
		return "invalid parameters"
	default:
		return "not allowed"
	}
}

// Unauthorized reports whether the reason belongs to the caller gate rather
// than an operation rule. The service maps these to its unauthorized error
// so callers never learn which identity check failed.
func (r DenyReason) Unauthorized() bool {
	return r == ReasonUnknownIdentity || r == ReasonUntrustedPath
}

// Result is the outcome of evaluating one request.
type Result struct {
	// Decision is Allow or Deny.
	Decision Decision

	// Reason describes a denial. ReasonNone when allowed.
	Reason DenyReason

	// Rule names the rule or pattern that decided the outcome. Audit only;
	// never sent to the caller.
	Rule string
}

// Allowed reports whether the request may proceed.
func (res Result) Allowed() bool {
	return res.Decision == Allow
}

func allowed(rule string) Result {
	return Result{Decision: Allow, Rule: rule}
}

func denied(reason DenyReason, rule string) Result {
	return Result{Decision: Deny, Reason: reason, Rule: rule}
}
