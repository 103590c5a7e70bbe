// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package supervisor

import (
	"errors"
	"fmt"
)

// ErrReadinessTimeout reports that a spawned upstream never answered a probe.
var ErrReadinessTimeout = errors.New("timed out waiting for upstream to become ready")

// FatalError is a supervisor failure the bridge cannot recover from; Code
// is the exit status the process should terminate with.
type FatalError struct {
	Code int   // Code is the process exit status to use.
	Err  error // Err retains the original cause for logging.
}

// Error implements the error interface for FatalError.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal (exit %d): %v", e.Code, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As checks.
func (e *FatalError) Unwrap() error {
	return e.Err
}
