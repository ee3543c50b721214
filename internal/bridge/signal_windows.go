//go:build windows

package bridge

import "os"

// signalTerm returns the graceful-shutdown signal for this platform.
// Windows processes have no SIGTERM; os.Kill is the closest the
// standard library exposes through Process.Signal, so Shutdown's
// escalation to Kill happens almost immediately on this platform.
func signalTerm() os.Signal { return os.Kill }
