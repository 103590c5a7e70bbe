// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package config

import (
	"net/url"
	"strings"
)

const (
	eventsSegment  = "/sse"
	commandSegment = "/mcp"

	defaultHost = "0.0.0.0"
	defaultPort = "12341"
)

// Endpoints holds the two upstream addresses derived from the configured
// SSE URL. They differ only in path.
type Endpoints struct {
	Events  *url.URL
	Command *url.URL
}

// DeriveEndpoints builds the command address by replacing the first /sse
// path segment of the event-subscription address with /mcp.
func DeriveEndpoints(events *url.URL) Endpoints {
	ev := cloneURL(events)
	cmd := cloneURL(events)
	cmd.Path = strings.Replace(cmd.Path, eventsSegment, commandSegment, 1)
	if cmd.RawPath != "" {
		cmd.RawPath = strings.Replace(cmd.RawPath, eventsSegment, commandSegment, 1)
	}
	return Endpoints{Events: ev, Command: cmd}
}

// HostPort returns the host and port to hand to a spawned upstream.
func (e Endpoints) HostPort() (string, string) {
	host := e.Events.Hostname()
	if host == "" {
		host = defaultHost
	}
	port := e.Events.Port()
	if port == "" {
		port = defaultPort
	}
	return host, port
}

// cloneURL makes a shallow copy of the provided URL pointer.
func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{}
	}
	clone := *u
	return &clone
}
