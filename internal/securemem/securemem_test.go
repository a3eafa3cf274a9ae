package securemem

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewString(t *testing.T) {
	plaintext := "test-secret-123"
	s := NewString(plaintext)
	defer s.Destroy()

	if s == nil {
		t.Fatal("NewString returned nil")
	}

	if s.String() != plaintext {
		t.Errorf("expected %q, got %q", plaintext, s.String())
	}

	if s.Len() != len(plaintext) {
		t.Errorf("expected length %d, got %d", len(plaintext), s.Len())
	}
}

func TestNewStringFromBytes(t *testing.T) {
	original := []byte{0x01, 0x02, 0x03, 0x04}
	expected := make([]byte, len(original))
	copy(expected, original) // Save expected values before memguard wipes the input
	s := NewStringFromBytes(original)
	defer s.Destroy()

	result := s.Bytes()
	if len(result) != len(expected) {
		t.Fatalf("expected length %d, got %d", len(expected), len(result))
	}

	for i := range expected {
		if result[i] != expected[i] {
			t.Errorf("byte %d: expected %x, got %x", i, expected[i], result[i])
		}
	}
}

func TestStringEqual(t *testing.T) {
	s1 := NewString("secret")
	defer s1.Destroy()

	if !s1.Equal("secret") {
		t.Error("Equal should return true for matching strings")
	}

	if s1.Equal("different") {
		t.Error("Equal should return false for non-matching strings")
	}
}

func TestStringClone(t *testing.T) {
	s1 := NewString("secret")
	clone := s1.Clone()
	defer clone.Destroy()

	s1.Destroy()

	if clone.String() != "secret" {
		t.Errorf("clone should survive the original's destruction, got %q", clone.String())
	}
}

func TestStringDestroy(t *testing.T) {
	s := NewString("secret")
	s.Destroy()

	if !s.IsEmpty() {
		t.Error("destroyed string should be empty")
	}
	if s.String() != "" {
		t.Error("destroyed string should stringify to empty")
	}

	// double destroy must not panic
	s.Destroy()
}

func TestWithBytes(t *testing.T) {
	s := NewString("key-material")
	defer s.Destroy()

	var seen []byte
	s.WithBytes(func(b []byte) {
		seen = make([]byte, len(b))
		copy(seen, b)
	})

	if string(seen) != "key-material" {
		t.Errorf("WithBytes passed %q", seen)
	}

	// value still intact afterwards
	if s.String() != "key-material" {
		t.Error("WithBytes must not consume the value")
	}
}

func TestGenerateSecret(t *testing.T) {
	s, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	defer s.Destroy()

	if s.Len() != SecretLen {
		t.Errorf("expected %d bytes, got %d", SecretLen, s.Len())
	}
}

func TestSecretFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")

	s, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret: %v", err)
	}
	want := s.Bytes()

	if err := WriteFile(path, s); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("secret file mode = %04o, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	defer loaded.Destroy()

	got := loaded.Bytes()
	if len(got) != len(want) {
		t.Fatalf("loaded %d bytes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d differs", i)
		}
	}
}

func TestLoadFileRejectsOpenPerms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("00112233445566778899aabbccddeeff\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile should reject a group/world-readable secret file")
	}
}

func TestLoadFileRejectsShortSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("00112233\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err != ErrSecretTooShort {
		t.Errorf("expected ErrSecretTooShort, got %v", err)
	}
}
