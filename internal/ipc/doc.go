// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// It owns socket lifecycle management and the request DTOs. Results reuse the
// api package envelopes so the CLI, the HTTP API and the UI all see the same
// success/outcome/message shape.
package ipc
