// Package builder provides a fluent API for assembling step graphs and a
// client for submitting them to a running stepflow server
package builder
