// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package supervisor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-core-stack/mcp-sse-bridge/pkg/frame"
)

const probeTimeout = 5 * time.Second

// Options describes the upstream to probe and, if needed, launch.
type Options struct {
	// EventsURL is probed for liveness.
	EventsURL *url.URL
	// Host and Port are embedded in the spawn arguments.
	Host string
	Port string
	// Command is the launcher executable, Source the package it runs.
	Command string
	Source  string
	Context string
	// Attempts and Interval bound the readiness wait.
	Attempts int
	Interval time.Duration
	// Label tags forwarded child output.
	Label string
	// Launcher builds the child command; exec.Command when nil.
	Launcher func(name string, args ...string) *exec.Cmd
}

// Supervisor probes the upstream and owns any process it had to spawn.
type Supervisor struct {
	opts    Options
	client  *http.Client
	logger  zerolog.Logger
	command func(name string, args ...string) *exec.Cmd
}

// New constructs a Supervisor; client is used for liveness probes.
func New(opts Options, client *http.Client) *Supervisor {
	if opts.Label == "" {
		opts.Label = "upstream"
	}
	command := opts.Launcher
	if command == nil {
		command = exec.Command
	}
	return &Supervisor{
		opts:    opts,
		client:  client,
		logger:  log.With().Str("component", "supervisor").Logger(),
		command: command,
	}
}

// Args returns the launcher arguments for the configured host and port.
func (s *Supervisor) Args() []string {
	return []string{
		"--from", s.opts.Source,
		"serena-mcp-server",
		"--host", s.opts.Host,
		"--port", s.opts.Port,
		"--context", s.opts.Context,
		"--open-web-dashboard", "false",
	}
}

// Probe reports whether anything answers HTTP on the event address. Any
// status code counts as alive; only a transport failure counts as down.
func (s *Supervisor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.EventsURL.String(), nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug().Err(err).Msg("liveness probe failed")
		return false
	}
	if closeErr := resp.Body.Close(); closeErr != nil {
		s.logger.Debug().Err(closeErr).Msg("close probe response body failed")
	}
	return true
}

// Ensure returns a handle to a reachable upstream, spawning one when the
// probe finds nothing listening. Spawn failures, early child exits and
// readiness timeouts are returned as *FatalError. Nothing is spawned once
// ctx is done.
func (s *Supervisor) Ensure(ctx context.Context) (*Handle, error) {
	if s.Probe(ctx) {
		s.logger.Info().
			Str("url", s.opts.EventsURL.String()).
			Msg("connected to existing upstream")
		return &Handle{Owned: false}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h, err := s.spawn()
	if err != nil {
		return nil, &FatalError{Code: 1, Err: fmt.Errorf("start upstream: %w", err)}
	}

	if err := s.waitReady(ctx, h); err != nil {
		if termErr := h.Terminate(); termErr != nil {
			s.logger.Error().Err(termErr).Int("pid", h.Pid()).Msg("terminate upstream failed")
		}
		return nil, err
	}
	return h, nil
}

func (s *Supervisor) spawn() (*Handle, error) {
	args := s.Args()
	s.logger.Info().
		Str("command", s.opts.Command).
		Strs("args", args).
		Str("host", s.opts.Host).
		Str("port", s.opts.Port).
		Msg("starting upstream")

	cmd := s.command(s.opts.Command, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	h := &Handle{Owned: true, cmd: cmd, done: make(chan struct{})}
	procLog := s.logger.With().Str("source", s.opts.Label).Int("pid", cmd.Process.Pid).Logger()

	var pumps sync.WaitGroup
	pumps.Add(2)
	go func() {
		defer pumps.Done()
		forward(stderr, func(line string) { procLog.Info().Msg(line) })
	}()
	go func() {
		defer pumps.Done()
		forward(stdout, func(line string) { procLog.Debug().Msg(line) })
	}()

	// Wait may only run once both pipes have been drained.
	go func() {
		pumps.Wait()
		h.err = cmd.Wait()
		h.exitCode = -1
		if cmd.ProcessState != nil {
			h.exitCode = cmd.ProcessState.ExitCode()
		}
		procLog.Warn().Int("exit_code", h.exitCode).AnErr("wait_err", h.err).Msg("upstream exited")
		close(h.done)
	}()

	return h, nil
}

func (s *Supervisor) waitReady(ctx context.Context, h *Handle) error {
	s.logger.Info().Int("attempts", s.opts.Attempts).Dur("interval", s.opts.Interval).Msg("waiting for upstream to be ready")

	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		if s.Probe(ctx) {
			s.logger.Info().Int("attempt", attempt).Int("pid", h.Pid()).Msg("upstream is ready")
			return nil
		}

		timer := time.NewTimer(s.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-h.Done():
			timer.Stop()
			return &FatalError{
				Code: exitStatus(h.ExitCode()),
				Err:  fmt.Errorf("upstream exited during startup with code %d", h.ExitCode()),
			}
		case <-timer.C:
		}
	}

	return &FatalError{Code: 1, Err: ErrReadinessTimeout}
}

func forward(r io.Reader, emit func(string)) {
	// Read errors only mean the pipe closed with the child.
	_ = frame.ReadLines(r, emit)
}
