package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	The temp-file convention for plugin state chunks and
 *		oversized custom-data values, which never travel through a
 *		ring buffer.
 *
 * Description:	Chunk bytes are base64-encoded; oversized custom-data
 *		values are plain UTF-8. Both live under the host's temp
 *		directory, named with the owning bridge's audio-pool shm
 *		suffix so concurrent bridges never collide. The receiver
 *		always deletes the file once it has read it.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/strftime"
)

// chunkFileBasename and customDataFileBasename are the spec §6 basename
// prefixes; XXXXXX is the owning bridge's audio-pool shm suffix, not a
// timestamp. tempFileTimestampSuffix is a strftime template appended
// after the spec-mandated basename, so the filename also carries a
// timestamp component the way the original host-side save/restore
// tooling does, without disturbing the bit-exact prefix the wire
// protocol's receiver (and anything else watching the temp directory)
// expects.
const (
	chunkFileBasename       = ".CarlaChunk_"
	customDataFileBasename  = ".CarlaCustomData_"
	tempFileTimestampSuffix = "_%Y%m%d%H%M%S"
)

// WriteChunkFile base64-encodes data and writes it to a fresh temp file
// named per the chunk convention, scoped by shmSuffix (the bridge's
// audio-pool suffix). Returns the file's full path.
func WriteChunkFile(shmSuffix string, data []byte) (string, error) {
	return writeTempFile(shmSuffix, chunkFileBasename, base64.StdEncoding.EncodeToString(data))
}

// ReadChunkFile reads and base64-decodes path, then deletes it.
func ReadChunkFile(path string) ([]byte, error) {
	raw, err := readAndDeleteTempFile(path)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode chunk file %q: %w", path, err)
	}
	return data, nil
}

// WriteCustomDataFile writes value as plain UTF-8 to a fresh temp file
// named per the custom-data convention.
func WriteCustomDataFile(shmSuffix string, value string) (string, error) {
	return writeTempFile(shmSuffix, customDataFileBasename, value)
}

// ReadCustomDataFile reads path as UTF-8 and deletes it.
func ReadCustomDataFile(path string) (string, error) {
	return readAndDeleteTempFile(path)
}

func writeTempFile(shmSuffix string, basename string, contents string) (string, error) {
	stamp, err := strftime.Format(tempFileTimestampSuffix, time.Now())
	if err != nil {
		return "", fmt.Errorf("format temp file timestamp: %w", err)
	}
	name := basename + shmSuffix + stamp
	path := filepath.Join(os.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		return "", fmt.Errorf("write temp file %q: %w", path, err)
	}
	return path, nil
}

func readAndDeleteTempFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read temp file %q: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		shmLog.Warn("failed to remove temp file after read", "path", path, "err", err)
	}
	return string(raw), nil
}
