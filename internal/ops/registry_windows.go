//go:build windows

package ops

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sys/windows/registry"

	"github.com/codefionn/pfortner/internal/protocol"
)

// splitKeyPath maps the wire key path (HKCU\Software\...) to a registry
// root handle and subkey.
func splitKeyPath(keyPath string) (registry.Key, string, error) {
	norm := strings.ReplaceAll(keyPath, "/", `\`)
	root, rest, _ := strings.Cut(norm, `\`)
	switch strings.ToUpper(root) {
	case "HKCU", "HKEY_CURRENT_USER":
		return registry.CURRENT_USER, rest, nil
	case "HKLM", "HKEY_LOCAL_MACHINE":
		return registry.LOCAL_MACHINE, rest, nil
	case "HKU", "HKEY_USERS":
		return registry.USERS, rest, nil
	case "HKCR", "HKEY_CLASSES_ROOT":
		return registry.CLASSES_ROOT, rest, nil
	default:
		return 0, "", fmt.Errorf("ops: unknown registry root %q", root)
	}
}

// RegistryRead reads one value. String kinds come back as strings, numeric
// kinds as integers.
func (l *Local) RegistryRead(ctx context.Context, p protocol.RegistryReadParams) (protocol.RegistryReadResult, error) {
	root, sub, err := splitKeyPath(p.KeyPath)
	if err != nil {
		return protocol.RegistryReadResult{}, err
	}

	key, err := registry.OpenKey(root, sub, registry.QUERY_VALUE)
	if err != nil {
		return protocol.RegistryReadResult{}, fmt.Errorf("ops: open key %s: %w", p.KeyPath, err)
	}
	defer key.Close()

	result := protocol.RegistryReadResult{KeyPath: p.KeyPath, ValueName: p.ValueName}

	if s, _, err := key.GetStringValue(p.ValueName); err == nil {
		result.Value = s
		return result, nil
	}
	if n, _, err := key.GetIntegerValue(p.ValueName); err == nil {
		result.Value = n
		return result, nil
	}
	if b, _, err := key.GetBinaryValue(p.ValueName); err == nil {
		result.Value = b
		return result, nil
	}
	return protocol.RegistryReadResult{}, fmt.Errorf("ops: read value %s\\%s: unsupported kind or missing", p.KeyPath, p.ValueName)
}

// RegistryWrite writes one value, creating the key path if needed. Strings
// write as REG_SZ, numbers as REG_DWORD/QWORD.
func (l *Local) RegistryWrite(ctx context.Context, p protocol.RegistryWriteParams) (protocol.RegistryWriteResult, error) {
	root, sub, err := splitKeyPath(p.KeyPath)
	if err != nil {
		return protocol.RegistryWriteResult{}, err
	}

	key, _, err := registry.CreateKey(root, sub, registry.SET_VALUE)
	if err != nil {
		return protocol.RegistryWriteResult{}, fmt.Errorf("ops: create key %s: %w", p.KeyPath, err)
	}
	defer key.Close()

	switch v := p.Value.(type) {
	case string:
		err = key.SetStringValue(p.ValueName, v)
	case float64:
		// JSON numbers arrive as float64.
		err = key.SetQWordValue(p.ValueName, uint64(v))
	case bool:
		var n uint32
		if v {
			n = 1
		}
		err = key.SetDWordValue(p.ValueName, n)
	default:
		err = fmt.Errorf("ops: unsupported registry value type %T", p.Value)
	}
	if err != nil {
		return protocol.RegistryWriteResult{}, fmt.Errorf("ops: write value %s\\%s: %w", p.KeyPath, p.ValueName, err)
	}
	return protocol.RegistryWriteResult{Written: true}, nil
}
