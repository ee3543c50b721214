// Package bridgeerr enumerates the error kinds a plugin bridge can
// surface, per the error-handling design of the bridge core: setup
// failures, timeouts, crashes, and protocol violations are distinct
// categories that callers branch on with errors.Is, not types they
// need to type-switch on.
package bridgeerr

import "errors"

// Sentinel kinds. Wrap one of these with fmt.Errorf("...: %w", Kind)
// to attach context; callers compare with errors.Is.
var (
	// SetupFailure covers shm create/attach/map, semaphore init, spawn,
	// or handshake failure. Surfaced synchronously at bridge creation.
	SetupFailure = errors.New("bridge setup failure")

	// InitTimeout means no Ready was received within the configured
	// init timeout. Treated the same as SetupFailure by callers.
	InitTimeout = errors.New("bridge init timeout")

	// VersionMismatch is reported as SetupFailure with this as the
	// wrapped cause so callers can distinguish it if they want to.
	VersionMismatch = errors.New("bridge protocol version mismatch")

	// RtTimeout means a cycle's rendezvous exceeded its budget.
	// Non-fatal per cycle; repeated occurrence escalates to ProcessCrash
	// semantics at the ServerBridge's discretion.
	RtTimeout = errors.New("bridge rt rendezvous timeout")

	// ProcessCrash means the child exited non-zero (or was killed)
	// while Running. The bridge transitions to Dead.
	ProcessCrash = errors.New("bridge child process crashed")

	// ProtocolDesync means an opcode was unexpected or a framed
	// message was under-read. Fatal; treated as ProcessCrash.
	ProtocolDesync = errors.New("bridge protocol desync")

	// PayloadOversize means a ring message would exceed remaining
	// capacity even after back-pressure. Dropped for informational
	// opcodes, fatal for state-carrying ones.
	PayloadOversize = errors.New("bridge payload oversize")
)

// Dead is returned by any bridge operation attempted after the bridge
// has transitioned to the Dead state. Save-state and parameter writes
// are refused rather than silently dropped so callers notice.
var Dead = errors.New("bridge is dead")
