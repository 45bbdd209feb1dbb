// Package archive copies finished runs out of the engine's bounded store
// into durable sinks, so they remain retrievable after eviction
package archive
