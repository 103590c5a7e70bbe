// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package frame

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedLines(input string, sizes ...int) []string {
	lr := &LineReader{}
	var out []string
	rest := []byte(input)
	for i := 0; len(rest) > 0; i++ {
		n := len(rest)
		if len(sizes) > 0 {
			n = sizes[i%len(sizes)]
			if n > len(rest) {
				n = len(rest)
			}
		}
		out = append(out, lr.Feed(rest[:n])...)
		rest = rest[n:]
	}
	return out
}

func feedEvents(input string, size int) []Event {
	er := NewEventReader()
	var out []Event
	rest := []byte(input)
	for len(rest) > 0 {
		n := size
		if n > len(rest) {
			n = len(rest)
		}
		out = append(out, er.Feed(rest[:n])...)
		rest = rest[n:]
	}
	return out
}

func TestLineReaderChunkBoundaryInvariance(t *testing.T) {
	input := "{\"id\":1}\n  \n{\"id\":\"two\",\"method\":\"ping\"}\r\n\n{\"héllo\":\"wörld\"}\npartial"
	whole := feedLines(input)
	require.Equal(t, []string{`{"id":1}`, `{"id":"two","method":"ping"}`, `{"héllo":"wörld"}`}, whole)

	for _, sizes := range [][]int{{1}, {2}, {3, 1}, {7}, {5, 11, 2}} {
		assert.Equal(t, whole, feedLines(input, sizes...), "sizes %v", sizes)
	}
}

func TestLineReaderRetainsPartialLine(t *testing.T) {
	lr := &LineReader{}
	assert.Empty(t, lr.Feed([]byte(`{"id":`)))
	assert.Equal(t, 6, lr.Pending())
	assert.Equal(t, []string{`{"id":1}`}, lr.Feed([]byte("1}\n")))
	assert.Zero(t, lr.Pending())
}

func TestEventReaderEmitsOneRecordPerBlock(t *testing.T) {
	input := strings.Join([]string{
		"event: endpoint",
		"data: /mcp?session=abc",
		"",
		"event: response",
		`data: {"id":1,"result":"ok"}`,
		"",
		`data: {"id":2}`,
		"",
		": keepalive comment",
		"",
		"event:notice",
		"data:   spaced   ",
		"",
		"event: trailing",
		"data: never flushed",
	}, "\n")

	want := []Event{
		{Type: "endpoint", Data: "/mcp?session=abc"},
		{Type: "response", Data: `{"id":1,"result":"ok"}`},
		{Type: DefaultEventType, Data: `{"id":2}`},
		{Type: "notice", Data: "spaced"},
	}

	for _, size := range []int{len(input), 1, 2, 3, 5, 13} {
		assert.Equal(t, want, feedEvents(input, size), "chunk size %d", size)
	}
}

func TestEventReaderStateSurvivesChunks(t *testing.T) {
	er := NewEventReader()
	assert.Empty(t, er.Feed([]byte("event: response\n")))
	assert.Empty(t, er.Feed([]byte("data: {\"a\":1}\n")))
	assert.Equal(t, []Event{{Type: "response", Data: `{"a":1}`}}, er.Feed([]byte("\n")))
}

func TestEventReaderHandlesCRLF(t *testing.T) {
	got := feedEvents("event: response\r\ndata: {\"a\":1}\r\n\r\n", 4)
	assert.Equal(t, []Event{{Type: "response", Data: `{"a":1}`}}, got)
}

func TestEventReaderLastDataLineWins(t *testing.T) {
	got := feedEvents("event: x\ndata: first\ndata: second\n\n", 64)
	assert.Equal(t, []Event{{Type: "x", Data: "second"}}, got)
}

func TestReadLinesUntilEOF(t *testing.T) {
	var got []string
	err := ReadLines(iotest.OneByteReader(strings.NewReader("a\nb\n\nc")), func(line string) {
		got = append(got, line)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestReadEventsPropagatesReadError(t *testing.T) {
	boom := errors.New("connection reset")
	var got []Event
	r := strings.NewReader("event: a\ndata: 1\n\n")
	err := ReadEvents(&failAfter{r: r, err: boom}, func(ev Event) {
		got = append(got, ev)
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []Event{{Type: "a", Data: "1"}}, got)
}

type failAfter struct {
	r     io.Reader
	err   error
	reads int
}

func (f *failAfter) Read(p []byte) (int, error) {
	f.reads++
	if f.reads > 1 {
		return 0, f.err
	}
	return f.r.Read(p)
}
