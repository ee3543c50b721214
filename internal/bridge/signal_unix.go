//go:build !windows

package bridge

import (
	"os"
	"syscall"
)

// signalTerm returns the graceful-shutdown signal for this platform
// (spec §6: SIGTERM on non-Windows children).
func signalTerm() os.Signal { return syscall.SIGTERM }
