// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-core-stack/mcp-sse-bridge/pkg/bridge"
	"github.com/go-core-stack/mcp-sse-bridge/pkg/config"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	// stdout carries protocol traffic; diagnostics only ever go to stderr.
	log.Logger = zerolog.New(consoleWriter()).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			os.Exit(0)
		}
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("log_level", cfg.LogLevel).Msg("invalid log level")
	}

	var sink io.Writer = consoleWriter()
	if cfg.LogFormat == config.LogFormatJSON {
		sink = os.Stderr
	}
	log.Logger = zerolog.New(sink).
		Level(level).
		With().
		Timestamp().
		Str("session", uuid.NewString()).
		Logger()

	log.Info().
		Str("sse_url", cfg.Endpoints.Events.String()).
		Str("command_url", cfg.Endpoints.Command.String()).
		Msg("starting MCP SSE bridge")

	code := bridge.New(cfg, os.Stdin, os.Stdout).Run(context.Background())

	log.Info().Int("exit_code", code).Msg("bridge stopped")
	os.Exit(code)
}

func consoleWriter() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
}
