package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorCoversAllOperations(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	for _, op := range Operations {
		_, ok := v.schemas[op]
		assert.True(t, ok, "no schema for %s", op)
	}
}

func TestValidateParams(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name   string
		op     string
		params string
		valid  bool
	}{
		{"click ok", OpClick, `{"x":100,"y":200,"button":"left"}`, true},
		{"click no button", OpClick, `{"x":0,"y":0}`, true},
		{"click missing y", OpClick, `{"x":100}`, false},
		{"click float coordinate", OpClick, `{"x":1.5,"y":2}`, false},
		{"click bad button", OpClick, `{"x":1,"y":2,"button":"fourth"}`, false},
		{"click extra field", OpClick, `{"x":1,"y":2,"speed":"fast"}`, false},
		{"sendKeys ok", OpSendKeys, `{"keys":"hello world"}`, true},
		{"sendKeys with window", OpSendKeys, `{"keys":"hi","targetWindow":"Editor"}`, true},
		{"sendKeys empty keys", OpSendKeys, `{"keys":""}`, false},
		{"sendKeys missing keys", OpSendKeys, `{}`, false},
		{"registryRead ok", OpRegistryRead, `{"keyPath":"HKCU\\Software\\App","valueName":"v"}`, true},
		{"registryRead missing value", OpRegistryRead, `{"keyPath":"HKCU\\Software\\App"}`, false},
		{"registryWrite ok", OpRegistryWrite, `{"keyPath":"HKCU\\Software\\App","valueName":"v","value":42}`, true},
		{"registryWrite missing value", OpRegistryWrite, `{"keyPath":"HKCU\\Software\\App","valueName":"v"}`, false},
		{"processStart ok", OpProcessStart, `{"fileName":"notepad.exe","arguments":"a.txt"}`, true},
		{"processStart empty name", OpProcessStart, `{"fileName":""}`, false},
		{"processTerminate ok", OpProcessTerminate, `{"processId":4312}`, true},
		{"processTerminate string pid", OpProcessTerminate, `{"processId":"4312"}`, false},
		{"fileRead ok", OpFileRead, `{"filePath":"/tmp/x","encoding":"utf-8"}`, true},
		{"fileRead bad encoding", OpFileRead, `{"filePath":"/tmp/x","encoding":"ascii"}`, false},
		{"fileWrite ok", OpFileWrite, `{"filePath":"/tmp/x","content":"data"}`, true},
		{"fileWrite missing content", OpFileWrite, `{"filePath":"/tmp/x"}`, false},
		{"screenshot empty ok", OpTakeScreenshot, `{}`, true},
		{"screenshot extra field", OpTakeScreenshot, `{"display":1}`, false},
		{"getWindows empty ok", OpGetWindows, `{}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.op, json.RawMessage(tt.params))
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrBadParameters)
			}
		})
	}
}

func TestValidateUnknownOperation(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	err = v.Validate("rebootMachine", json.RawMessage(`{}`))
	assert.True(t, errors.Is(err, ErrUnknownOperation))
}

func TestValidateNilParams(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	// absent parameters count as {} for no-input operations
	assert.NoError(t, v.Validate(OpGetWindows, nil))
	assert.Error(t, v.Validate(OpClick, nil))
}
