package protocol

import (
	"testing"
	"time"
)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(OpClick, ClickParams{X: 10, Y: 20, Button: ButtonLeft})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	if req.RequestID == "" {
		t.Error("request id should be populated")
	}
	if req.Operation != OpClick {
		t.Errorf("operation = %q", req.Operation)
	}
	if req.Signature != "" {
		t.Error("new request must be unsigned")
	}
	if _, err := ParseTime(req.Timestamp); err != nil {
		t.Errorf("timestamp %q does not parse: %v", req.Timestamp, err)
	}

	var params ClickParams
	if err := DecodeParams(req.Parameters, &params); err != nil {
		t.Fatalf("DecodeParams: %v", err)
	}
	if params.X != 10 || params.Y != 20 || params.Button != ButtonLeft {
		t.Errorf("roundtripped params = %+v", params)
	}
}

func TestNewRequestUniqueIDs(t *testing.T) {
	a, _ := NewRequest(OpTakeScreenshot, EmptyParams{})
	b, _ := NewRequest(OpTakeScreenshot, EmptyParams{})
	if a.RequestID == b.RequestID {
		t.Error("consecutive requests must not share an id")
	}
}

func TestKnownOperation(t *testing.T) {
	for _, op := range Operations {
		if !KnownOperation(op) {
			t.Errorf("KnownOperation(%q) = false", op)
		}
	}
	for _, op := range []string{"", "Click", "shutdown", "click "} {
		if KnownOperation(op) {
			t.Errorf("KnownOperation(%q) = true", op)
		}
	}
}

func TestNewResponse(t *testing.T) {
	resp, err := NewResponse("req-1", ClickResult{X: 1, Y: 2, Button: ButtonLeft})
	if err != nil {
		t.Fatalf("NewResponse: %v", err)
	}
	if !resp.Success {
		t.Error("success response should have Success set")
	}
	if resp.RequestID != "req-1" {
		t.Errorf("request id = %q", resp.RequestID)
	}

	var result ClickResult
	if err := DecodeData(resp.Data, &result); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if result.X != 1 || result.Y != 2 {
		t.Errorf("roundtripped data = %+v", result)
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse("req-2", ErrorCodePolicyDenied, "path not permitted")
	if resp.Success {
		t.Error("error response should not have Success set")
	}
	if resp.ErrorCode != ErrorCodePolicyDenied {
		t.Errorf("error code = %q", resp.ErrorCode)
	}
	if resp.ErrorMessage != "path not permitted" {
		t.Errorf("error message = %q", resp.ErrorMessage)
	}
	if len(resp.Data) != 0 {
		t.Error("error response must not carry data")
	}
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Now()
	parsed, err := ParseTime(FormatTime(now))
	if err != nil {
		t.Fatalf("ParseTime: %v", err)
	}
	if !parsed.Equal(now) {
		t.Errorf("roundtrip changed instant: %v vs %v", parsed, now)
	}

	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("garbage timestamp should fail to parse")
	}
}
