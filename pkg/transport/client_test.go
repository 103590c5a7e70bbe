// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientAppliesOptions(t *testing.T) {
	c := NewClient(Options{Timeout: 3 * time.Second, InsecureSkipVerify: true})
	assert.Equal(t, 3*time.Second, c.Timeout)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, tr.TLSClientConfig.InsecureSkipVerify)
}

func TestIsTimeout(t *testing.T) {
	assert.False(t, IsTimeout(nil))
	assert.False(t, IsTimeout(errors.New("connection refused")))
	assert.True(t, IsTimeout(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(Options{Timeout: 50 * time.Millisecond})
	_, err := c.Get(srv.URL)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}
