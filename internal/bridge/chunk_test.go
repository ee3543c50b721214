package bridge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkFileRoundTrip(t *testing.T) {
	data := make([]byte, 8*1024*1024)
	for i := range data {
		data[i] = byte(i * 7)
	}

	path, err := WriteChunkFile("ab12cd", data)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(filepath.Base(path), ".CarlaChunk_ab12cd"),
		"basename must embed the shm suffix per spec §6, got %q", filepath.Base(path))

	got, err := ReadChunkFile(path)
	require.NoError(t, err)
	require.Equal(t, data, got)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "chunk file must be deleted after read")
}

func TestCustomDataFileRoundTrip(t *testing.T) {
	value := string(make([]byte, 20000))
	path, err := WriteCustomDataFile("ef34gh", value)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(filepath.Base(path), ".CarlaCustomData_ef34gh"),
		"basename must embed the shm suffix per spec §6, got %q", filepath.Base(path))

	got, err := ReadCustomDataFile(path)
	require.NoError(t, err)
	require.Equal(t, value, got)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "custom data file must be deleted after read")
}
