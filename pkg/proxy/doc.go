// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package proxy relays JSON-RPC requests read from the host's standard input
// to the upstream command endpoint and writes each response back as one line.
// When the upstream cannot be reached it answers the host itself with a
// correlated JSON-RPC internal error, so every parseable request gets exactly
// one reply.
package proxy
