// Package engine executes workflow graphs. Each run walks its steps in
// topological order on its own goroutine, dispatching every step to the
// handler registered for its type and threading outputs forward as the
// context seen by later steps. Snapshots of every run are kept in a
// bounded store and pushed to subscribers after each state change
package engine
