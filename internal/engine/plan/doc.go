// Package plan derives the execution order of a step graph
package plan
