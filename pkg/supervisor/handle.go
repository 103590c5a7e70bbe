// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// Handle records the upstream process the bridge is attached to.
type Handle struct {
	// Owned is true only when the bridge spawned the process.
	Owned bool

	cmd      *exec.Cmd
	done     chan struct{}
	exitCode int
	err      error
}

// Pid returns the process id of an owned upstream, 0 otherwise.
func (h *Handle) Pid() int {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Done is closed once an owned process has exited. It is nil (blocks
// forever) for a reused upstream.
func (h *Handle) Done() <-chan struct{} {
	if h == nil {
		return nil
	}
	return h.done
}

// ExitCode returns the exit status of an exited process; -1 while running,
// when killed by a signal, or for a reused upstream.
func (h *Handle) ExitCode() int {
	if h == nil || h.done == nil {
		return -1
	}
	select {
	case <-h.done:
		return h.exitCode
	default:
		return -1
	}
}

// Err returns the error reported by Wait once the process has exited.
func (h *Handle) Err() error {
	if h == nil || h.done == nil {
		return nil
	}
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Terminate sends SIGTERM to an owned, still running process. It is a no-op
// for reused upstreams.
func (h *Handle) Terminate() error {
	if h == nil || !h.Owned || h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	select {
	case <-h.done:
		return nil
	default:
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// ExitStatus is the status the bridge exits with when this process ends
// unexpectedly.
func (h *Handle) ExitStatus() int {
	return exitStatus(h.ExitCode())
}

// exitStatus maps a process exit code to the bridge's own exit status:
// the child's code when positive, 1 otherwise.
func exitStatus(code int) int {
	if code > 0 {
		return code
	}
	return 1
}
