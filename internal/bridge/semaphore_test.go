package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemPairPostWait(t *testing.T) {
	s := NewSemPair(make([]byte, SemPairByteSize))

	assert.False(t, s.WaitServerRuns(10*time.Millisecond), "wait must time out with no post pending")

	s.PostServerRuns()
	assert.True(t, s.WaitServerRuns(time.Second))

	s.PostClientRuns()
	assert.True(t, s.WaitClientRuns(time.Second))
}

func TestSemPairRendezvous(t *testing.T) {
	s := NewSemPair(make([]byte, SemPairByteSize))

	serverDone := make(chan bool, 1)
	go func() {
		ok := s.WaitClientRuns(time.Second)
		serverDone <- ok
	}()

	require.True(t, s.WaitServerRuns(10*time.Millisecond) == false) // no post yet
	s.PostServerRuns()
	require.True(t, s.WaitServerRuns(time.Second))

	s.PostClientRuns()
	assert.True(t, <-serverDone)
}

func TestSemPairMultiplePosts(t *testing.T) {
	s := NewSemPair(make([]byte, SemPairByteSize))
	s.PostServerRuns()
	s.PostServerRuns()
	s.PostServerRuns()

	assert.True(t, s.WaitServerRuns(time.Second))
	assert.True(t, s.WaitServerRuns(time.Second))
	assert.True(t, s.WaitServerRuns(time.Second))
	assert.False(t, s.WaitServerRuns(10*time.Millisecond))
}
