package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	ProcessHandle: the server's record of the spawned child,
 *		used to detect crashes independent of protocol heartbeat.
 *
 *------------------------------------------------------------------*/

import (
	"os"
	"time"
)

// ProcessHandle tracks the spawned child's OS identity and exit state.
type ProcessHandle struct {
	Pid       int
	StartedAt time.Time
	running   bool
	exitCode  int
	proc      *os.Process
}

// NewProcessHandle wraps a freshly started child process.
func NewProcessHandle(proc *os.Process, startedAt time.Time) *ProcessHandle {
	return &ProcessHandle{Pid: proc.Pid, StartedAt: startedAt, running: true, proc: proc}
}

// Running reports whether the last known state was alive. Becomes
// false only via MarkExited.
func (h *ProcessHandle) Running() bool { return h.running }

// ExitCode is valid once Running is false.
func (h *ProcessHandle) ExitCode() int { return h.exitCode }

// MarkExited records the child's termination, called once the
// supervisor's Wait goroutine observes the process has exited.
func (h *ProcessHandle) MarkExited(code int) {
	h.running = false
	h.exitCode = code
}

// Signal forwards an OS signal to the child, a no-op if it has already
// exited.
func (h *ProcessHandle) Signal(sig os.Signal) error {
	if !h.running {
		return nil
	}
	return h.proc.Signal(sig)
}

// Kill force-terminates the child.
func (h *ProcessHandle) Kill() error {
	if !h.running {
		return nil
	}
	return h.proc.Kill()
}
