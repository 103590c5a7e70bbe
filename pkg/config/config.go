// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

const (
	DefaultSSEURL = "http://localhost:12341/sse"

	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// ErrHelp is returned by Load when usage was requested and already printed.
var ErrHelp = errors.New("help requested")

// Options mirrors the command line; every flag can also come from the
// environment.
type Options struct {
	URL             string        `short:"u" long:"url" env:"BRIDGE_SSE_URL" default:"http://localhost:12341/sse" description:"upstream SSE URL"`
	LogLevel        string        `long:"log-level" env:"BRIDGE_LOG_LEVEL" default:"info" description:"log level (trace, debug, info, warn, error)"`
	LogFormat       string        `long:"log-format" env:"BRIDGE_LOG_FORMAT" default:"console" description:"log format (console, json)"`
	UpstreamCommand string        `long:"upstream-command" env:"BRIDGE_UPSTREAM_COMMAND" default:"uvx" description:"executable used to launch the upstream"`
	UpstreamSource  string        `long:"upstream-source" env:"BRIDGE_UPSTREAM_SOURCE" default:"git+https://github.com/oraios/serena" description:"package source passed to --from"`
	UpstreamContext string        `long:"upstream-context" env:"BRIDGE_UPSTREAM_CONTEXT" default:"ide" description:"context passed to the upstream server"`
	StartupAttempts int           `long:"startup-attempts" env:"BRIDGE_STARTUP_ATTEMPTS" default:"30" description:"readiness probes before giving up"`
	StartupInterval time.Duration `long:"startup-interval" env:"BRIDGE_STARTUP_INTERVAL" default:"1s" description:"delay between readiness probes"`
	ReconnectDelay  time.Duration `long:"reconnect-delay" env:"BRIDGE_RECONNECT_DELAY" default:"1s" description:"delay before reconnecting the event stream"`
	RequestTimeout  time.Duration `long:"request-timeout" env:"BRIDGE_REQUEST_TIMEOUT" default:"5m" description:"timeout for command requests (0 disables)"`
	Insecure        bool          `long:"insecure" env:"BRIDGE_UPSTREAM_INSECURE" description:"skip TLS verification of the upstream"`
	MetricsAddr     string        `long:"metrics-addr" env:"BRIDGE_METRICS_ADDR" description:"listen address for /metrics (disabled when empty)"`

	Positional struct {
		SSEURL string `positional-arg-name:"sse-url"`
	} `positional-args:"yes"`
}

// Config captures runtime settings for the bridge.
type Config struct {
	Endpoints       Endpoints
	LogLevel        string
	LogFormat       string
	UpstreamCommand string
	UpstreamSource  string
	UpstreamContext string
	StartupAttempts int
	StartupInterval time.Duration
	ReconnectDelay  time.Duration
	RequestTimeout  time.Duration
	Insecure        bool
	MetricsAddr     string
}

// Load parses args (without the program name) and the environment and
// validates the result.
func Load(args []string) (Config, error) {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.Default)
	parser.Usage = "[OPTIONS] [sse-url]"
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return Config{}, ErrHelp
		}
		return Config{}, fmt.Errorf("parse arguments: %w", err)
	}
	return opts.Config()
}

// Config validates the options and derives the upstream endpoints.
func (o *Options) Config() (Config, error) {
	raw := strings.TrimSpace(o.Positional.SSEURL)
	if raw == "" {
		raw = strings.TrimSpace(o.URL)
	}
	if raw == "" {
		raw = DefaultSSEURL
	}

	events, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("invalid SSE URL: %w", err)
	}
	if !events.IsAbs() || events.Host == "" {
		return Config{}, errors.New("SSE URL must be absolute (scheme://host)")
	}
	if events.Scheme != "http" && events.Scheme != "https" {
		return Config{}, fmt.Errorf("unsupported SSE URL scheme %q", events.Scheme)
	}

	if o.StartupAttempts <= 0 {
		return Config{}, errors.New("startup attempts must be positive")
	}
	if o.StartupInterval <= 0 {
		return Config{}, errors.New("startup interval must be positive")
	}
	if o.ReconnectDelay <= 0 {
		return Config{}, errors.New("reconnect delay must be positive")
	}
	if o.RequestTimeout < 0 {
		return Config{}, errors.New("request timeout must not be negative")
	}

	format := strings.ToLower(strings.TrimSpace(o.LogFormat))
	if format != LogFormatConsole && format != LogFormatJSON {
		return Config{}, fmt.Errorf("unsupported log format %q", o.LogFormat)
	}

	cfg := Config{
		Endpoints:       DeriveEndpoints(events),
		LogLevel:        strings.ToLower(strings.TrimSpace(o.LogLevel)),
		LogFormat:       format,
		UpstreamCommand: strings.TrimSpace(o.UpstreamCommand),
		UpstreamSource:  strings.TrimSpace(o.UpstreamSource),
		UpstreamContext: strings.TrimSpace(o.UpstreamContext),
		StartupAttempts: o.StartupAttempts,
		StartupInterval: o.StartupInterval,
		ReconnectDelay:  o.ReconnectDelay,
		RequestTimeout:  o.RequestTimeout,
		Insecure:        o.Insecure,
		MetricsAddr:     strings.TrimSpace(o.MetricsAddr),
	}
	if cfg.UpstreamCommand == "" {
		return Config{}, errors.New("upstream command must not be empty")
	}

	return cfg, nil
}
