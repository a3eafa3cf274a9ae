// Package securemem provides memory-protected storage for sensitive data
// using memguard to prevent data from being read via debugger, memory dump, or swap.
package securemem

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// String is a secure string wrapper that stores sensitive data in encrypted memory.
// The broker keeps its shared signing secret and the derived subkeys in these.
type String struct {
	buf     *memguard.LockedBuffer
	invalid bool
}

// NewString creates a new secure string from the given plaintext.
// The plaintext is immediately stored in encrypted memory.
func NewString(plaintext string) *String {
	return &String{
		buf: memguard.NewBufferFromBytes([]byte(plaintext)),
	}
}

// NewStringFromBytes creates a new secure string from the given bytes.
// NOTE: memguard may wipe the input slice for security.
func NewStringFromBytes(data []byte) *String {
	return &String{
		buf: memguard.NewBufferFromBytes(data),
	}
}

// String returns the plaintext string value.
// WARNING: The returned string is a copy that lives in regular (non-secure) memory.
func (s *String) String() string {
	if s == nil || s.invalid || s.buf == nil {
		return ""
	}
	return string(s.buf.Bytes())
}

// Bytes returns the plaintext bytes value.
// WARNING: The returned bytes are a copy that lives in regular (non-secure) memory.
// Callers should ensure this copy is zeroed when no longer needed.
func (s *String) Bytes() []byte {
	if s == nil || s.invalid || s.buf == nil {
		return nil
	}
	b := s.buf.Bytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// IsEmpty returns true if the string is empty or invalid.
func (s *String) IsEmpty() bool {
	if s == nil || s.invalid || s.buf == nil {
		return true
	}
	return len(s.buf.Bytes()) == 0
}

// Len returns the length of the string.
func (s *String) Len() int {
	if s == nil || s.invalid || s.buf == nil {
		return 0
	}
	return len(s.buf.Bytes())
}

// Equal returns true if the secure string equals the given plaintext string.
// This comparison is done in constant time.
func (s *String) Equal(other string) bool {
	if s == nil || s.invalid || s.buf == nil {
		return other == ""
	}
	return subtle.ConstantTimeCompare(s.buf.Bytes(), []byte(other)) == 1
}

// Destroy securely wipes the string from memory.
// After calling this, the string should not be used.
func (s *String) Destroy() {
	if s == nil || s.invalid {
		return
	}
	if s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
	s.invalid = true
}

// Clone creates a copy of the secure string.
func (s *String) Clone() *String {
	if s == nil || s.invalid || s.buf == nil {
		return NewString("")
	}
	b := s.buf.Bytes()
	data := make([]byte, len(b))
	copy(data, b)
	return NewStringFromBytes(data)
}

// WithBytes executes a function with access to the plaintext bytes.
// The function receives a copy that is wiped when it returns; it must not
// retain references. Signing code uses this so key material never outlives
// the HMAC computation.
func (s *String) WithBytes(fn func([]byte)) {
	if s == nil || s.invalid || s.buf == nil {
		return
	}
	b := s.buf.Bytes()
	copyBytes := make([]byte, len(b))
	copy(copyBytes, b)
	defer memguard.WipeBytes(copyBytes)
	fn(copyBytes)
}

// Init initializes the memguard library.
// This should be called once at application startup, preferably in main().
func Init() {
	memguard.CatchInterrupt()
}

// Cleanup purges memguard's internal buffers.
// This is typically called before application exit.
func Cleanup() {
	memguard.Purge()
}

// SecureWipe wipes a byte slice from memory.
// This is a convenience wrapper around memguard.WipeBytes.
func SecureWipe(data []byte) {
	memguard.WipeBytes(data)
}
