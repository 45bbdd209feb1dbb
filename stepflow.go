// Package stepflow identifies the service in logs and health responses
package stepflow

const (
	Name    = "stepflow"
	Version = "1.0.0"
)
