// Package server implements the HTTP API over the engine
//
// This package provides REST endpoints for planning, starting, inspecting,
// and cancelling runs, and a WebSocket stream of run snapshots
package server
