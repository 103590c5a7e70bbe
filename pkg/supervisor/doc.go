// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package supervisor guarantees a reachable upstream MCP server. It reuses an
// instance already listening on the event-subscription address, or spawns
// one as a child process, forwards its diagnostics to the bridge log, and
// waits for it to answer on the same HTTP transport the bridge uses
// afterwards. Only processes the bridge spawned are ever signalled.
package supervisor
