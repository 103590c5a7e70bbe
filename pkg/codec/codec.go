// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package codec validates and compacts the JSON messages the bridge relays.
package codec

import (
	"bytes"
	stdjson "encoding/json"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// ErrInvalidJSON reports input that is not strict RFC 8259 JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// Compact returns data with insignificant whitespace removed. Member order
// and number text are preserved.
func Compact(data []byte) ([]byte, error) {
	// goccy accepts malformed numbers such as 01 and 1.; the stdlib scanner
	// does not.
	if !stdjson.Valid(data) {
		return nil, ErrInvalidJSON
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return nil, fmt.Errorf("compact: %w", err)
	}
	return buf.Bytes(), nil
}

// Member returns the raw value of the exactly named top-level member of a
// JSON object. ok is false for non-objects and absent members.
func Member(msg []byte, name string) (json.RawMessage, bool) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(msg, &members); err != nil {
		return nil, false
	}
	raw, ok := members[name]
	if !ok || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}
