// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package hostio owns the host-facing output channel.
package hostio

import (
	"io"
	"sync"
)

// LineWriter serializes newline-terminated records onto a shared writer.
// Each record reaches the underlying writer through exactly one Write call.
type LineWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewLineWriter wraps out.
func NewLineWriter(out io.Writer) *LineWriter {
	return &LineWriter{out: out}
}

// WriteLine writes p followed by a newline.
func (w *LineWriter) WriteLine(p []byte) error {
	record := make([]byte, 0, len(p)+1)
	record = append(record, p...)
	record = append(record, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.out.Write(record)
	return err
}
