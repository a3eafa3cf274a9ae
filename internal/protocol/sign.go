package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/codefionn/pfortner/internal/securemem"
)

// Key derivation labels. Request and response directions never share a key,
// so a reflected message can never carry a valid signature.
const (
	keySalt         = "pfortner-broker-v1"
	infoRequestKey  = "request-signing"
	infoResponseKey = "response-signing"
	derivedKeyLen   = 32
)

// Signer holds the HKDF-derived subkeys of the shared secret and signs or
// verifies protocol messages with HMAC-SHA256. Both the service and the
// client construct one from the same secret file.
type Signer struct {
	requestKey  *securemem.String
	responseKey *securemem.String
}

// NewSigner derives the per-direction subkeys from the shared secret.
// The secret itself is not retained.
func NewSigner(secret *securemem.String) (*Signer, error) {
	if secret.IsEmpty() {
		return nil, errors.New("protocol: empty signing secret")
	}

	requestKey, err := deriveKey(secret, infoRequestKey)
	if err != nil {
		return nil, err
	}
	responseKey, err := deriveKey(secret, infoResponseKey)
	if err != nil {
		requestKey.Destroy()
		return nil, err
	}

	return &Signer{
		requestKey:  requestKey,
		responseKey: responseKey,
	}, nil
}

func deriveKey(secret *securemem.String, info string) (*securemem.String, error) {
	var key *securemem.String
	var derr error
	secret.WithBytes(func(master []byte) {
		r := hkdf.New(sha256.New, master, []byte(keySalt), []byte(info))
		raw := make([]byte, derivedKeyLen)
		if _, err := io.ReadFull(r, raw); err != nil {
			derr = fmt.Errorf("protocol: derive %s key: %w", info, err)
			return
		}
		// NewStringFromBytes wipes raw
		key = securemem.NewStringFromBytes(raw)
	})
	if derr != nil {
		return nil, derr
	}
	if key == nil {
		return nil, errors.New("protocol: signing secret destroyed")
	}
	return key, nil
}

// Destroy wipes the derived keys.
func (s *Signer) Destroy() {
	if s == nil {
		return
	}
	s.requestKey.Destroy()
	s.responseKey.Destroy()
}

func (s *Signer) mac(key *securemem.String, base []byte) string {
	var sum []byte
	key.WithBytes(func(k []byte) {
		h := hmac.New(sha256.New, k)
		h.Write(base)
		sum = h.Sum(nil)
	})
	return hex.EncodeToString(sum)
}

// SignRequest computes and sets the request signature.
func (s *Signer) SignRequest(req *Request) error {
	base, err := RequestSigningBase(req)
	if err != nil {
		return err
	}
	req.Signature = s.mac(s.requestKey, base)
	return nil
}

// VerifyRequest checks the request signature in constant time.
// Any failure, including unparseable parameters, fails closed.
func (s *Signer) VerifyRequest(req *Request) error {
	if req.Signature == "" {
		return ErrMissingSignature
	}
	base, err := RequestSigningBase(req)
	if err != nil {
		return err
	}
	if !macEqual(s.mac(s.requestKey, base), req.Signature) {
		return ErrBadSignature
	}
	return nil
}

// SignResponse computes and sets the response signature.
func (s *Signer) SignResponse(resp *Response) error {
	base, err := ResponseSigningBase(resp)
	if err != nil {
		return err
	}
	resp.Signature = s.mac(s.responseKey, base)
	return nil
}

// VerifyResponse checks the response signature in constant time.
func (s *Signer) VerifyResponse(resp *Response) error {
	if resp.Signature == "" {
		return ErrMissingSignature
	}
	base, err := ResponseSigningBase(resp)
	if err != nil {
		return err
	}
	if !macEqual(s.mac(s.responseKey, base), resp.Signature) {
		return ErrBadSignature
	}
	return nil
}

func macEqual(want, got string) bool {
	return hmac.Equal([]byte(want), []byte(got))
}

// CheckFreshness rejects timestamps further than window from now, in either
// direction. Replay of old requests and pre-dated requests fail the same way.
func CheckFreshness(timestamp string, now time.Time, window time.Duration) error {
	t, err := ParseTime(timestamp)
	if err != nil {
		return err
	}
	skew := now.Sub(t)
	if skew < 0 {
		skew = -skew
	}
	if skew > window {
		return fmt.Errorf("%w: skew %s exceeds %s", ErrStaleTimestamp, skew.Round(time.Millisecond), window)
	}
	return nil
}
