// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package bridge wires the supervisor, event stream client and request
// forwarder into one session bound to the process's standard streams.
package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-core-stack/mcp-sse-bridge/pkg/config"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/events"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/hostio"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/metrics"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/proxy"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/supervisor"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/transport"
)

const (
	upstreamLabel          = "serena"
	metricsShutdownTimeout = 2 * time.Second
)

// Session is the process-wide bridge state. Run is its only mutator: the
// shutdown flag is written once, from the coordinating goroutine.
type Session struct {
	cfg    config.Config
	stdin  io.Reader
	stdout io.Writer
	logger zerolog.Logger

	shuttingDown atomic.Bool

	// signals and launcher are replaced in tests.
	signals  <-chan os.Signal
	launcher func(name string, args ...string) *exec.Cmd
}

// New constructs a Session relaying between stdin/stdout and the upstream
// described by cfg.
func New(cfg config.Config, stdin io.Reader, stdout io.Writer) *Session {
	return &Session{
		cfg:    cfg,
		stdin:  stdin,
		stdout: stdout,
		logger: log.With().Str("component", "bridge").Logger(),
	}
}

// ShuttingDown reports whether a shutdown has begun.
func (s *Session) ShuttingDown() bool {
	return s.shuttingDown.Load()
}

// Run blocks until the session ends and returns the process exit status:
// 0 for a requested shutdown or closed host input, the supervisor's code for
// startup failures, and the upstream's code when an owned upstream dies.
func (s *Session) Run(ctx context.Context) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := s.signals
	if sigCh == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		sigCh = ch
	}

	if s.cfg.MetricsAddr != "" {
		stop := s.serveMetrics()
		defer stop()
	}

	streamClient := transport.NewClient(transport.Options{InsecureSkipVerify: s.cfg.Insecure})
	commandClient := transport.NewClient(transport.Options{
		Timeout:            s.cfg.RequestTimeout,
		InsecureSkipVerify: s.cfg.Insecure,
	})

	host, port := s.cfg.Endpoints.HostPort()
	sup := supervisor.New(supervisor.Options{
		EventsURL: s.cfg.Endpoints.Events,
		Host:      host,
		Port:      port,
		Command:   s.cfg.UpstreamCommand,
		Source:    s.cfg.UpstreamSource,
		Context:   s.cfg.UpstreamContext,
		Attempts:  s.cfg.StartupAttempts,
		Interval:  s.cfg.StartupInterval,
		Label:     upstreamLabel,
		Launcher:  s.launcher,
	}, streamClient)

	handle, code, done := s.ensureUpstream(ctx, cancel, sup, sigCh)
	if done {
		return code
	}
	metrics.SetUpstreamOwned(handle.Owned)

	out := hostio.NewLineWriter(s.stdout)
	eventClient := events.New(events.Options{
		URL:            s.cfg.Endpoints.Events,
		ReconnectDelay: s.cfg.ReconnectDelay,
	}, streamClient, out)
	forwarder := proxy.New(proxy.Options{CommandURL: s.cfg.Endpoints.Command}, commandClient, out)

	go eventClient.Run(ctx)

	inputDone := make(chan error, 1)
	go func() {
		inputDone <- forwarder.Run(ctx, s.stdin)
	}()

	var drained chan struct{}
	for {
		select {
		case sig := <-sigCh:
			s.logger.Info().Str("signal", sig.String()).Msg("termination requested")
			s.shutdown(cancel, handle)
			return 0

		case <-handle.Done():
			if s.ShuttingDown() {
				return 0
			}
			status := handle.ExitStatus()
			s.logger.Error().
				Int("pid", handle.Pid()).
				Int("exit_code", handle.ExitCode()).
				Msg("upstream exited unexpectedly")
			s.shuttingDown.Store(true)
			cancel()
			return status

		case err := <-inputDone:
			if err != nil {
				s.logger.Error().Err(err).Msg("host input failed")
			} else {
				s.logger.Info().Msg("host input closed; waiting for pending requests")
			}
			inputDone = nil
			drained = make(chan struct{})
			go func(ch chan struct{}) {
				forwarder.Wait()
				close(ch)
			}(drained)

		case <-drained:
			s.shutdown(cancel, handle)
			return 0
		}
	}
}

// ensureUpstream runs the supervisor while still honouring termination
// signals. done reports that Run must return code immediately.
func (s *Session) ensureUpstream(ctx context.Context, cancel context.CancelFunc, sup *supervisor.Supervisor, sigCh <-chan os.Signal) (*supervisor.Handle, int, bool) {
	type result struct {
		handle *supervisor.Handle
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		h, err := sup.Ensure(ctx)
		resCh <- result{handle: h, err: err}
	}()

	select {
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("termination requested during startup")
		s.shuttingDown.Store(true)
		cancel()
		// Ensure terminates a child it spawned when its context ends.
		res := <-resCh
		if res.handle != nil {
			if err := res.handle.Terminate(); err != nil {
				s.logger.Error().Err(err).Msg("terminate upstream failed")
			}
		}
		return nil, 0, true

	case res := <-resCh:
		if res.err == nil {
			return res.handle, 0, false
		}
		var fatal *supervisor.FatalError
		if errors.As(res.err, &fatal) {
			s.logger.Error().Err(fatal.Err).Int("exit_code", fatal.Code).Msg("upstream unavailable")
			return nil, fatal.Code, true
		}
		if errors.Is(res.err, context.Canceled) {
			return nil, 0, true
		}
		s.logger.Error().Err(res.err).Msg("upstream unavailable")
		return nil, 1, true
	}
}

// shutdown flags the session, stops every component and signals an owned
// upstream. In-flight command requests are abandoned.
func (s *Session) shutdown(cancel context.CancelFunc, handle *supervisor.Handle) {
	s.shuttingDown.Store(true)
	cancel()
	if handle.Owned {
		s.logger.Info().Int("pid", handle.Pid()).Msg("stopping upstream")
	}
	if err := handle.Terminate(); err != nil {
		s.logger.Error().Err(err).Msg("terminate upstream failed")
	}
}

// serveMetrics exposes /metrics on the configured address and returns a
// function stopping the listener.
func (s *Session) serveMetrics() func() {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{
		Addr:              s.cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info().Str("listen_addr", s.cfg.MetricsAddr).Msg("serving metrics")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server exited unexpectedly")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error().Err(err).Msg("graceful metrics shutdown failed; forcing close")
			if closeErr := srv.Close(); closeErr != nil {
				s.logger.Error().Err(closeErr).Msg("forced close failed")
			}
		}
	}
}
