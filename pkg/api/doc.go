// Package api defines the core data types shared by the workflow engine
//
// This package contains the step graph definitions, run and step execution
// state, and the HTTP and WebSocket messages exchanged with callers
package api
