package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Named shared memory regions used for the audio pool and
 *		the three control channels.
 *
 * Description:	Exactly one side is the "owner": the server creates a
 *		region with a random 6-character suffix and hands the
 *		suffix to the child via ENGINE_BRIDGE_SHM_IDS; the child
 *		attaches by the same exact name. Only the owner unlinks
 *		on shutdown, but both sides always unmap their own view.
 *
 *		Platform specifics (POSIX shm_open/mmap vs Win32
 *		CreateFileMapping/MapViewOfFile) live in shm_unix.go and
 *		shm_windows.go; this file holds the name generation and
 *		retry logic that's the same on both.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/friendsincode/pluginbridge/internal/bridge/bridgeerr"
)

// Wrapping errShmCreate/errShmAttach/errShmMap (rather than
// bridgeerr.SetupFailure directly) lets callers errors.Is against
// either the specific shm failure or the general setup-failure kind.
var (
	errShmCreate = fmt.Errorf("%w: shm create", bridgeerr.SetupFailure)
	errShmAttach = fmt.Errorf("%w: shm attach", bridgeerr.SetupFailure)
	errShmMap    = fmt.Errorf("%w: shm map", bridgeerr.SetupFailure)
)

// Prefix identifies which of the four shared-memory regions a name
// belongs to. Per spec §6 these are fixed strings; Windows additionally
// namespaces them under "Local\" (handled in shm_windows.go).
type Prefix string

const (
	PrefixAudioPool     Prefix = "carla-bridge_shm_ap_"
	PrefixRtClient      Prefix = "carla-bridge_shm_rtC_"
	PrefixNonRtClient   Prefix = "carla-bridge_shm_nonrtC_"
	PrefixNonRtServer   Prefix = "carla-bridge_shm_nonrtS_"
	shmSuffixLen               = 6
	maxCreateTempRetries       = 64
)

// randomSuffix generates the 6-character suffix appended to a shm
// prefix. Entropy comes from a UUID rather than hand-rolled math/rand
// seeding, matching how the rest of the pack sources short random ids.
func randomSuffix() string {
	id := uuid.New()
	s := id.String()
	// Strip hyphens and take the first shmSuffixLen hex characters;
	// collisions are handled by the create-temp retry loop, not by
	// trying to guarantee uniqueness here.
	compact := make([]byte, 0, len(s))
	for _, c := range []byte(s) {
		if c != '-' {
			compact = append(compact, c)
		}
	}
	return string(compact[:shmSuffixLen])
}

// FullName returns the OS-level shared memory object name for a given
// prefix+suffix pair, e.g. "carla-bridge_shm_ap_a1b2c3" on POSIX.
func FullName(prefix Prefix, suffix string) string {
	return string(prefix) + suffix
}

// ShmIDs is the four 6-character suffixes in the fixed wire order the
// spec's ENGINE_BRIDGE_SHM_IDS environment variable requires: audio
// pool, rt-client, non-rt-client, non-rt-server.
type ShmIDs struct {
	AudioPool   string
	RtClient    string
	NonRtClient string
	NonRtServer string
}

// Encode concatenates the four suffixes into the 24-character
// ENGINE_BRIDGE_SHM_IDS value.
func (s ShmIDs) Encode() string {
	return s.AudioPool + s.RtClient + s.NonRtClient + s.NonRtServer
}

// DecodeShmIDs splits a 24-character ENGINE_BRIDGE_SHM_IDS value back
// into its four suffixes. Returns an error if the length is wrong.
func DecodeShmIDs(v string) (ShmIDs, error) {
	if len(v) != shmSuffixLen*4 {
		return ShmIDs{}, fmt.Errorf("ENGINE_BRIDGE_SHM_IDS must be %d characters, got %d", shmSuffixLen*4, len(v))
	}
	return ShmIDs{
		AudioPool:   v[0:6],
		RtClient:    v[6:12],
		NonRtClient: v[12:18],
		NonRtServer: v[18:24],
	}, nil
}

// NewShmIDs generates a fresh set of four random suffixes for a new
// bridge instance. Called once by the server before spawning a child.
func NewShmIDs() ShmIDs {
	return ShmIDs{
		AudioPool:   randomSuffix(),
		RtClient:    randomSuffix(),
		NonRtClient: randomSuffix(),
		NonRtServer: randomSuffix(),
	}
}
