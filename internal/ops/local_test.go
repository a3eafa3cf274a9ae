package ops

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pfortner/internal/protocol"
)

func TestLocalFileRoundTrip(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.txt")

	written, err := l.FileWrite(ctx, protocol.FileWriteParams{FilePath: path, Content: "hello broker"})
	require.NoError(t, err)
	assert.Equal(t, len("hello broker"), written.BytesWritten)

	read, err := l.FileRead(ctx, protocol.FileReadParams{FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, "hello broker", read.Content)
	assert.Equal(t, protocol.EncodingUTF8, read.Encoding)
}

func TestLocalFileBase64(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "blob.bin")
	raw := []byte{0x00, 0xff, 0x10}

	_, err := l.FileWrite(ctx, protocol.FileWriteParams{
		FilePath: path,
		Content:  base64.StdEncoding.EncodeToString(raw),
		Encoding: protocol.EncodingBase64,
	})
	require.NoError(t, err)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, onDisk)

	read, err := l.FileRead(ctx, protocol.FileReadParams{FilePath: path, Encoding: protocol.EncodingBase64})
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), read.Content)
}

func TestLocalFileReadMissing(t *testing.T) {
	l := NewLocal()
	_, err := l.FileRead(context.Background(), protocol.FileReadParams{
		FilePath: filepath.Join(t.TempDir(), "missing.txt"),
	})
	assert.Error(t, err)
}

func TestLocalFileWriteBadBase64(t *testing.T) {
	l := NewLocal()
	_, err := l.FileWrite(context.Background(), protocol.FileWriteParams{
		FilePath: filepath.Join(t.TempDir(), "x"),
		Content:  "not base64!!!",
		Encoding: protocol.EncodingBase64,
	})
	assert.Error(t, err)
}

func TestLocalUnsupportedOperations(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	_, err := l.Click(ctx, protocol.ClickParams{X: 1, Y: 1})
	assert.True(t, errors.Is(err, ErrUnsupported))

	_, err = l.SendKeys(ctx, protocol.SendKeysParams{Keys: "hi"})
	assert.True(t, errors.Is(err, ErrUnsupported))

	_, err = l.Windows(ctx)
	assert.True(t, errors.Is(err, ErrUnsupported))

	_, err = l.Screenshot(ctx)
	assert.True(t, errors.Is(err, ErrUnsupported))
}

func TestLocalProcessStartAndTerminate(t *testing.T) {
	if _, err := os.Stat("/bin/sleep"); err != nil {
		t.Skip("needs /bin/sleep")
	}

	l := NewLocal()
	ctx := context.Background()

	started, err := l.ProcessStart(ctx, protocol.ProcessStartParams{
		FileName:  "/bin/sleep",
		Arguments: "30",
	})
	require.NoError(t, err)
	require.Greater(t, started.ProcessID, 0)

	term, err := l.ProcessTerminate(ctx, protocol.ProcessTerminateParams{ProcessID: started.ProcessID})
	require.NoError(t, err)
	assert.True(t, term.Terminated)
}

func TestLocalProcessStartMissingBinary(t *testing.T) {
	l := NewLocal()
	_, err := l.ProcessStart(context.Background(), protocol.ProcessStartParams{
		FileName: filepath.Join(t.TempDir(), "does-not-exist"),
	})
	assert.Error(t, err)
}
