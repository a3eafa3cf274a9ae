package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/codefionn/pfortner/internal/securemem"
)

func newTestSigner(t *testing.T, secret string) *Signer {
	t.Helper()
	s, err := NewSigner(securemem.NewString(secret))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	t.Cleanup(s.Destroy)
	return s
}

func TestSignVerifyRequest(t *testing.T) {
	signer := newTestSigner(t, "shared-secret")

	req, err := NewRequest(OpClick, ClickParams{X: 100, Y: 200, Button: ButtonLeft})
	if err != nil {
		t.Fatal(err)
	}
	if err := signer.SignRequest(req); err != nil {
		t.Fatalf("SignRequest: %v", err)
	}
	if req.Signature == "" {
		t.Fatal("signature not set")
	}

	if err := signer.VerifyRequest(req); err != nil {
		t.Errorf("VerifyRequest: %v", err)
	}
}

func TestVerifyRequestTampered(t *testing.T) {
	signer := newTestSigner(t, "shared-secret")

	req, _ := NewRequest(OpFileRead, FileReadParams{FilePath: "/tmp/a"})
	if err := signer.SignRequest(req); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"operation", func(r *Request) { r.Operation = OpFileWrite }},
		{"parameters", func(r *Request) { r.Parameters = json.RawMessage(`{"filePath":"/etc/shadow"}`) }},
		{"timestamp", func(r *Request) { r.Timestamp = FormatTime(time.Now().Add(time.Second)) }},
		{"requestId", func(r *Request) { r.RequestID = "other" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := *req
			tt.mutate(&tampered)
			if err := signer.VerifyRequest(&tampered); !errors.Is(err, ErrBadSignature) {
				t.Errorf("tampered %s: got %v, want ErrBadSignature", tt.name, err)
			}
		})
	}
}

func TestVerifyRequestMissingSignature(t *testing.T) {
	signer := newTestSigner(t, "shared-secret")

	req, _ := NewRequest(OpTakeScreenshot, EmptyParams{})
	if err := signer.VerifyRequest(req); !errors.Is(err, ErrMissingSignature) {
		t.Errorf("got %v, want ErrMissingSignature", err)
	}
}

func TestVerifyRequestWrongSecret(t *testing.T) {
	signer := newTestSigner(t, "secret-a")
	other := newTestSigner(t, "secret-b")

	req, _ := NewRequest(OpTakeScreenshot, EmptyParams{})
	if err := signer.SignRequest(req); err != nil {
		t.Fatal(err)
	}

	if err := other.VerifyRequest(req); !errors.Is(err, ErrBadSignature) {
		t.Errorf("mismatched secrets: got %v, want ErrBadSignature", err)
	}
}

func TestSignatureIgnoresFieldOrder(t *testing.T) {
	// Canonicalization must erase serialization differences.
	signer := newTestSigner(t, "shared-secret")

	a := &Request{
		RequestID:  "id-1",
		Operation:  OpClick,
		Parameters: json.RawMessage(`{"x":100,"y":200}`),
		Timestamp:  "2026-01-02T03:04:05Z",
	}
	b := &Request{
		RequestID:  "id-1",
		Operation:  OpClick,
		Parameters: json.RawMessage(`{ "y": 200, "x": 100 }`),
		Timestamp:  "2026-01-02T03:04:05Z",
	}

	if err := signer.SignRequest(a); err != nil {
		t.Fatal(err)
	}
	if err := signer.SignRequest(b); err != nil {
		t.Fatal(err)
	}
	if a.Signature != b.Signature {
		t.Error("reordered parameters changed the signature")
	}
}

func TestVerifyRequestBadParameterJSON(t *testing.T) {
	// Unparseable parameters must fail closed, not skip canonicalization.
	signer := newTestSigner(t, "shared-secret")

	req := &Request{
		RequestID:  "id-1",
		Operation:  OpClick,
		Parameters: json.RawMessage(`{"x":`),
		Timestamp:  Now(),
		Signature:  "deadbeef",
	}
	if err := signer.VerifyRequest(req); err == nil {
		t.Error("invalid parameter JSON must not verify")
	}
}

func TestSignVerifyResponse(t *testing.T) {
	signer := newTestSigner(t, "shared-secret")

	resp, err := NewResponse("id-9", FileReadResult{Content: "hello", Encoding: EncodingUTF8})
	if err != nil {
		t.Fatal(err)
	}
	if err := signer.SignResponse(resp); err != nil {
		t.Fatalf("SignResponse: %v", err)
	}
	if err := signer.VerifyResponse(resp); err != nil {
		t.Errorf("VerifyResponse: %v", err)
	}

	resp.ErrorMessage = "injected"
	if err := signer.VerifyResponse(resp); !errors.Is(err, ErrBadSignature) {
		t.Errorf("tampered response: got %v, want ErrBadSignature", err)
	}
}

func TestRequestAndResponseKeysDiffer(t *testing.T) {
	// A request signature must never verify as a response signature.
	signer := newTestSigner(t, "shared-secret")

	req := &Request{RequestID: "id-1", Operation: OpTakeScreenshot, Timestamp: "2026-01-02T03:04:05Z"}
	if err := signer.SignRequest(req); err != nil {
		t.Fatal(err)
	}

	resp := &Response{RequestID: "id-1", Success: true, Timestamp: "2026-01-02T03:04:05Z"}
	if err := signer.SignResponse(resp); err != nil {
		t.Fatal(err)
	}

	if req.Signature == resp.Signature {
		t.Error("request and response keys must differ")
	}
}

func TestCheckFreshness(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 2 * time.Minute

	tests := []struct {
		name    string
		ts      string
		wantErr error
	}{
		{"current", FormatTime(now), nil},
		{"slightly old", FormatTime(now.Add(-90 * time.Second)), nil},
		{"slightly ahead", FormatTime(now.Add(90 * time.Second)), nil},
		{"too old", FormatTime(now.Add(-3 * time.Minute)), ErrStaleTimestamp},
		{"too far ahead", FormatTime(now.Add(3 * time.Minute)), ErrStaleTimestamp},
		{"garbage", "not-a-time", ErrBadTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFreshness(tt.ts, now, window)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("CheckFreshness(%q) = %v, want nil", tt.ts, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckFreshness(%q) = %v, want %v", tt.ts, err, tt.wantErr)
			}
		})
	}
}

func TestNewSignerEmptySecret(t *testing.T) {
	if _, err := NewSigner(securemem.NewString("")); err == nil {
		t.Error("empty secret must be rejected")
	}
}
