// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package frame segments raw byte streams into records: newline-delimited
// lines for the host channel and command responses, and (event, data) pairs
// for a text/event-stream body. It never interprets record contents.
package frame

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// DefaultEventType is the SSE event type used when a block has no event: line.
const DefaultEventType = "message"

const readChunkSize = 32 * 1024

// Event is one decoded SSE block.
type Event struct {
	Type string
	Data string
}

// LineReader accumulates chunks and yields complete, trimmed, non-empty lines.
type LineReader struct {
	buf []byte
}

// Feed appends chunk and returns the lines it completed.
func (r *LineReader) Feed(chunk []byte) []string {
	r.buf = append(r.buf, chunk...)

	var lines []string
	for {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSpace(string(r.buf[:idx]))
		r.buf = r.buf[idx+1:]
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(r.buf) == 0 {
		r.buf = nil
	}
	return lines
}

// Pending reports the number of buffered bytes not yet terminated by a newline.
func (r *LineReader) Pending() int {
	return len(r.buf)
}

// EventReader accumulates chunks of an SSE body and yields complete events.
// The pending event type and data survive across Feed calls.
type EventReader struct {
	buf       []byte
	eventType string
	data      string
}

// NewEventReader returns a reader with the default event type pending.
func NewEventReader() *EventReader {
	return &EventReader{eventType: DefaultEventType}
}

// Feed appends chunk and returns the events it completed.
func (r *EventReader) Feed(chunk []byte) []Event {
	if r.eventType == "" {
		r.eventType = DefaultEventType
	}
	r.buf = append(r.buf, chunk...)

	var events []Event
	for {
		idx := bytes.IndexByte(r.buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(string(r.buf[:idx]), "\r")
		r.buf = r.buf[idx+1:]

		switch {
		case strings.HasPrefix(line, "event:"):
			r.eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			r.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "" && r.data != "":
			events = append(events, Event{Type: r.eventType, Data: r.data})
			r.eventType = DefaultEventType
			r.data = ""
		}
	}
	if len(r.buf) == 0 {
		r.buf = nil
	}
	return events
}

// ReadLines pumps r through a LineReader and calls fn for every line. It
// returns nil once r is exhausted.
func ReadLines(r io.Reader, fn func(string)) error {
	lr := &LineReader{}
	return pump(r, func(chunk []byte) {
		for _, line := range lr.Feed(chunk) {
			fn(line)
		}
	})
}

// ReadEvents pumps r through an EventReader and calls fn for every event.
// It returns nil once r is exhausted.
func ReadEvents(r io.Reader, fn func(Event)) error {
	er := NewEventReader()
	return pump(r, func(chunk []byte) {
		for _, ev := range er.Feed(chunk) {
			fn(ev)
		}
	})
}

func pump(r io.Reader, feed func([]byte)) error {
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			feed(chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
