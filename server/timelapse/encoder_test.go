package timelapse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestEncoderValidation(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.avi")
	_, err := newVideoEncoder(dest, 64, 48, 0)
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = newVideoEncoder(dest, 0, 48, 10)
	require.ErrorIs(t, err, ErrEncoding)
}

func TestEncoderAtomicFinish(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.avi")
	enc, err := newVideoEncoder(dest, 16, 16, 10)
	require.NoError(t, err)

	// While frames are being written, only the partial file exists.
	require.NoError(t, enc.addFrame(solidFrame(16, 16, red)))
	require.NoError(t, enc.addFrame(solidFrame(16, 16, green)))
	require.Equal(t, []string{"out.avi.partial"}, dirEntries(t, dir))

	art, err := enc.finish()
	require.NoError(t, err)
	require.Equal(t, 2, art.Frames)
	require.Equal(t, 16, art.Width)
	require.Equal(t, 16, art.Height)
	require.Greater(t, art.FileSize, int64(0))
	require.Equal(t, []string{"out.avi"}, dirEntries(t, dir))
}

func TestEncoderAbort(t *testing.T) {
	dir := t.TempDir()
	enc, err := newVideoEncoder(filepath.Join(dir, "out.avi"), 16, 16, 10)
	require.NoError(t, err)
	require.NoError(t, enc.addFrame(solidFrame(16, 16, red)))
	enc.abort()
	require.Empty(t, dirEntries(t, dir))
}

func TestEncoderEmptyFinish(t *testing.T) {
	dir := t.TempDir()
	enc, err := newVideoEncoder(filepath.Join(dir, "out.avi"), 16, 16, 10)
	require.NoError(t, err)
	_, err = enc.finish()
	require.ErrorIs(t, err, ErrEmptyInput)
	require.Empty(t, dirEntries(t, dir))
}

func TestEncoderRejectsMismatchedFrame(t *testing.T) {
	dir := t.TempDir()
	enc, err := newVideoEncoder(filepath.Join(dir, "out.avi"), 16, 16, 10)
	require.NoError(t, err)
	require.ErrorIs(t, enc.addFrame(solidFrame(32, 16, red)), ErrEncoding)
	enc.abort()
}
