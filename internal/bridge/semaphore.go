package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	The "server-runs"/"client-runs" semaphore pair used for
 *		the real-time rendezvous between host and bridged plugin.
 *
 * Description:	Each semaphore is a plain uint32 post counter living in
 *		the shared memory region, touched only with atomic ops so
 *		it's safe between two separate OS processes on the same
 *		machine without needing a named kernel semaphore object.
 *		TimedWait polls with a short exponential backoff rather
 *		than blocking on a kernel primitive - the same pragmatic
 *		poll-and-back-off shape the ring buffer's back-pressure
 *		wait already uses, just with a much tighter floor since
 *		the RT rendezvous is latency-sensitive.
 *
 *------------------------------------------------------------------*/

import (
	"sync/atomic"
	"time"
)

// SemPairByteSize is the shared-memory footprint of one SemPair: two
// uint32 post counters.
const SemPairByteSize = 8

// SemPair is the two-semaphore RT rendezvous primitive: one side posts
// "server-runs" and waits on "client-runs", the other does the mirror.
type SemPair struct {
	buf []byte // must be exactly SemPairByteSize bytes
}

// NewSemPair wraps buf, which must be SemPairByteSize bytes taken from
// a shared memory region. The creating side zeroes it implicitly (a
// fresh shm mapping already reads as zero).
func NewSemPair(buf []byte) *SemPair {
	if len(buf) != SemPairByteSize {
		panic("bridge: SemPair buffer must be exactly SemPairByteSize bytes")
	}
	return &SemPair{buf: buf}
}

func (s *SemPair) serverCounter() *uint32 { return byteSliceUint32(s.buf, 0) }
func (s *SemPair) clientCounter() *uint32 { return byteSliceUint32(s.buf, 4) }

// PostServerRuns signals that the server has finished filling the
// cycle's input and the client may proceed.
func (s *SemPair) PostServerRuns() { atomic.AddUint32(s.serverCounter(), 1) }

// PostClientRuns signals that the client has finished the cycle and
// the server may resume.
func (s *SemPair) PostClientRuns() { atomic.AddUint32(s.clientCounter(), 1) }

// WaitServerRuns blocks (via polling) until a PostServerRuns call is
// pending, consuming one post. Returns false on timeout.
func (s *SemPair) WaitServerRuns(timeout time.Duration) bool {
	return timedWaitDecrement(s.serverCounter(), timeout)
}

// WaitClientRuns blocks until a PostClientRuns call is pending,
// consuming one post. Returns false on timeout.
func (s *SemPair) WaitClientRuns(timeout time.Duration) bool {
	return timedWaitDecrement(s.clientCounter(), timeout)
}

func timedWaitDecrement(counter *uint32, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	backoff := 50 * time.Microsecond
	const maxBackoff = 2 * time.Millisecond

	for {
		for {
			cur := atomic.LoadUint32(counter)
			if cur == 0 {
				break
			}
			if atomic.CompareAndSwapUint32(counter, cur, cur-1) {
				return true
			}
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(backoff)
		if backoff < maxBackoff {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}
