// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactPreservesOrderAndNumbers(t *testing.T) {
	out, err := Compact([]byte("{ \"z\": 1.50,\n \"a\": [1, 2e3, -0] }"))
	require.NoError(t, err)
	assert.Equal(t, `{"z":1.50,"a":[1,2e3,-0]}`, string(out))
}

func TestCompactRejectsInvalidJSON(t *testing.T) {
	cases := map[string]string{
		"leading zero":   `{"a":01}`,
		"trailing dot":   `{"id":5,"a":1.}`,
		"truncated":      `{"jsonrpc":"2.0","id":1,`,
		"bare word":      `keepalive`,
		"trailing comma": `[1,2,]`,
		"empty":          ``,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := Compact([]byte(in))
			assert.ErrorIs(t, err, ErrInvalidJSON)
			assert.Nil(t, out)
		})
	}
}

func TestMemberMatchesExactName(t *testing.T) {
	raw, ok := Member([]byte(`{"id":"req-1","method":"ping"}`), "id")
	require.True(t, ok)
	assert.Equal(t, `"req-1"`, string(raw))

	raw, ok = Member([]byte(`{"id":null}`), "id")
	require.True(t, ok)
	assert.Equal(t, `null`, string(raw))

	_, ok = Member([]byte(`{"ID":7,"method":"x"}`), "id")
	assert.False(t, ok)

	_, ok = Member([]byte(`[{"id":1}]`), "id")
	assert.False(t, ok)

	_, ok = Member([]byte(`"scalar"`), "id")
	assert.False(t, ok)
}
