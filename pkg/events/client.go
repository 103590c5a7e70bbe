// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package events keeps a subscription to the upstream event stream open for
// the lifetime of the bridge and relays JSON payloads to the host.
package events

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-core-stack/mcp-sse-bridge/pkg/codec"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/frame"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/hostio"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/metrics"
)

// endpointEventType announces the command endpoint; it is transport
// bookkeeping, never payload.
const endpointEventType = "endpoint"

// State is the subscription lifecycle stage.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateClosed
	StateErrored
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	case StateShutDown:
		return "shut_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures the subscription.
type Options struct {
	URL            *url.URL
	ReconnectDelay time.Duration
}

// Client owns the event stream connection.
type Client struct {
	opts     Options
	client   *http.Client
	out      *hostio.LineWriter
	logger   zerolog.Logger
	state    atomic.Int32
	attempts atomic.Int64
}

// New constructs a Client. The http.Client must not carry an overall
// timeout since the stream is long-lived.
func New(opts Options, client *http.Client, out *hostio.LineWriter) *Client {
	return &Client{
		opts:   opts,
		client: client,
		out:    out,
		logger: log.With().Str("component", "events").Str("url", opts.URL.String()).Logger(),
	}
}

// State reports the current lifecycle stage.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Attempts reports how many connections have been attempted so far.
func (c *Client) Attempts() int64 {
	return c.attempts.Load()
}

// Run connects and reconnects until ctx is cancelled. There is no retry
// ceiling.
func (c *Client) Run(ctx context.Context) {
	defer c.setState(StateShutDown)

	for {
		if ctx.Err() != nil {
			return
		}
		err := c.stream(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			c.setState(StateErrored)
			c.logger.Error().Err(err).Dur("retry_in", c.opts.ReconnectDelay).Msg("event stream error, reconnecting")
		} else {
			c.setState(StateClosed)
			c.logger.Warn().Dur("retry_in", c.opts.ReconnectDelay).Msg("event stream closed, reconnecting")
		}

		timer := time.NewTimer(c.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stream performs one connection attempt. A nil error means the upstream
// ended the stream cleanly.
func (c *Client) stream(ctx context.Context) error {
	c.setState(StateConnecting)
	attempt := c.attempts.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL.String(), nil)
	if err != nil {
		return fmt.Errorf("build event stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordStreamConnect(metrics.StreamFailed)
		return fmt.Errorf("connect event stream: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug().Err(closeErr).Msg("close event stream body failed")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordStreamConnect(metrics.StreamFailed)
		return &statusError{Status: resp.StatusCode}
	}

	metrics.RecordStreamConnect(metrics.StreamConnected)
	c.setState(StateStreaming)
	c.logger.Info().Int64("attempt", attempt).Msg("event stream connected")

	if err := frame.ReadEvents(resp.Body, c.relay); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("read event stream: %w", err)
	}
	return nil
}

// relay forwards one frame. Bookkeeping frames are dropped, and data that is
// not JSON is treated as keepalive noise.
func (c *Client) relay(ev frame.Event) {
	if ev.Type == frame.DefaultEventType || ev.Type == endpointEventType {
		metrics.RecordEvent(metrics.EventIgnored)
		return
	}

	compact, err := codec.Compact([]byte(ev.Data))
	if err != nil {
		metrics.RecordEvent(metrics.EventInvalid)
		return
	}

	if err := c.out.WriteLine(compact); err != nil {
		c.logger.Error().Err(err).Str("event", ev.Type).Msg("write event to host failed")
		return
	}
	metrics.RecordEvent(metrics.EventRelayed)
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// statusError reports a subscription answered with something other than 200.
type statusError struct {
	Status int
}

// Error implements the error interface for statusError.
func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}
