// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-core-stack/mcp-sse-bridge/pkg/codec"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/frame"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/hostio"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/metrics"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/transport"
)

// InternalErrorCode is the JSON-RPC code used for bridge-synthesized errors.
const InternalErrorCode = -32603

// maxLogBody limits how much of an upstream error body is logged.
const maxLogBody = 64 * 1024

// Options configures the forwarder.
type Options struct {
	// CommandURL receives one POST per host request.
	CommandURL *url.URL
}

// Forwarder relays host requests to the command endpoint.
type Forwarder struct {
	// opts keeps the target address.
	opts Options
	// client performs outbound HTTP requests with tuned transport settings.
	client *http.Client
	// out is the shared host output channel.
	out *hostio.LineWriter
	// logger emits structured logs for observability.
	logger zerolog.Logger
	// inflight tracks requests still awaiting a reply.
	inflight sync.WaitGroup
}

// New constructs a Forwarder.
func New(opts Options, client *http.Client, out *hostio.LineWriter) *Forwarder {
	return &Forwarder{
		opts:   opts,
		client: client,
		out:    out,
		logger: log.With().Str("component", "forwarder").Str("url", opts.CommandURL.String()).Logger(),
	}
}

// Run reads host lines from r and forwards each one concurrently. It returns
// when r is exhausted or fails; requests still in flight keep running.
func (f *Forwarder) Run(ctx context.Context, r io.Reader) error {
	err := frame.ReadLines(r, func(line string) {
		f.inflight.Add(1)
		go func() {
			defer f.inflight.Done()
			f.Handle(ctx, []byte(line))
		}()
	})
	if err != nil {
		return fmt.Errorf("read host input: %w", err)
	}
	return nil
}

// Wait blocks until every request started by Run has been answered.
func (f *Forwarder) Wait() {
	f.inflight.Wait()
}

// Handle forwards a single host line. Lines that are not JSON are logged and
// dropped without a reply since no request id can be trusted.
func (f *Forwarder) Handle(ctx context.Context, line []byte) {
	body, err := codec.Compact(line)
	if err != nil {
		metrics.RecordHostParseError()
		f.logger.Error().Err(err).Int("length", len(line)).Msg("failed to parse host message")
		return
	}

	id := requestID(body)
	event := f.logger.With().RawJSON("id", id).Logger()

	start := time.Now()
	payload, status, err := f.post(ctx, body)
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; pending requests are abandoned.
			return
		}
		metrics.RecordRequest(metrics.RequestTransportError, time.Since(start))
		event.Error().
			Err(err).
			Bool("timeout", transport.IsTimeout(err)).
			Dur("duration", time.Since(start)).
			Msg("request failed")
		f.reply(event, errorEnvelope(id, err))
		return
	}

	if status >= http.StatusBadRequest {
		logged := payload
		if len(logged) > maxLogBody {
			logged = logged[:maxLogBody]
		}
		event.Warn().
			Int("status", status).
			Bytes("upstream_body", logged).
			Msg("upstream returned error")
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		metrics.RecordRequest(metrics.RequestEmptyResponse, time.Since(start))
		event.Debug().Int("status", status).Dur("duration", time.Since(start)).Msg("request accepted without body")
		return
	}

	metrics.RecordRequest(metrics.RequestRelayed, time.Since(start))
	f.reply(event, trimmed)
	event.Debug().Int("status", status).Dur("duration", time.Since(start)).Msg("request proxied")
}

// post issues the command request and reads the full response body. A body
// read failure counts as a transport failure.
func (f *Forwarder) post(ctx context.Context, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.opts.CommandURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(body))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Debug().Err(closeErr).Msg("close upstream response body failed")
		}
	}()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read upstream response: %w", err)
	}
	return payload, resp.StatusCode, nil
}

func (f *Forwarder) reply(event zerolog.Logger, p []byte) {
	if err := f.out.WriteLine(p); err != nil {
		event.Error().Err(err).Msg("write reply to host failed")
	}
}

// requestID extracts the raw "id" member of a JSON-RPC object, or null when
// the message has none (notifications, batches, scalars).
func requestID(msg []byte) json.RawMessage {
	if id, ok := codec.Member(msg, "id"); ok {
		return id
	}
	return json.RawMessage("null")
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcErrorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   rpcError        `json:"error"`
}

// errorEnvelope builds the JSON-RPC reply for a failed round trip.
func errorEnvelope(id json.RawMessage, cause error) []byte {
	resp := rpcErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: rpcError{
			Code:    InternalErrorCode,
			Message: "Bridge error: " + cause.Error(),
		},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		// The envelope only holds strings, an int and an already valid id.
		return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":null,"error":{"code":%d,"message":"Bridge error"}}`, InternalErrorCode))
	}
	return data
}
