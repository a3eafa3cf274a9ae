package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Signatures cover a canonical byte string, never the raw wire bytes, so
// both sides agree regardless of field order or whitespace. Parameters and
// data are reduced to their RFC 8785 (JCS) form first.

// Canonicalize returns the RFC 8785 canonical form of a JSON value.
// An absent value canonicalizes to the JSON literal null.
func Canonicalize(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return []byte("null"), nil
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("protocol: canonicalize: %w", err)
	}
	return out, nil
}

// RequestSigningBase builds the byte string a request signature covers:
// requestId, operation, canonical parameters and timestamp, newline-joined.
func RequestSigningBase(req *Request) ([]byte, error) {
	params, err := Canonicalize(req.Parameters)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(req.RequestID)
	buf.WriteByte('\n')
	buf.WriteString(req.Operation)
	buf.WriteByte('\n')
	buf.Write(params)
	buf.WriteByte('\n')
	buf.WriteString(req.Timestamp)
	return buf.Bytes(), nil
}

// ResponseSigningBase builds the byte string a response signature covers:
// requestId, success flag, canonical data, error message and timestamp.
func ResponseSigningBase(resp *Response) ([]byte, error) {
	data, err := Canonicalize(resp.Data)
	if err != nil {
		return nil, err
	}

	success := byte('0')
	if resp.Success {
		success = '1'
	}

	var buf bytes.Buffer
	buf.WriteString(resp.RequestID)
	buf.WriteByte('\n')
	buf.WriteByte(success)
	buf.WriteByte('\n')
	buf.Write(data)
	buf.WriteByte('\n')
	buf.WriteString(resp.ErrorMessage)
	buf.WriteByte('\n')
	buf.WriteString(resp.Timestamp)
	return buf.Bytes(), nil
}
