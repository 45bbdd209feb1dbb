// Package util provides small generic data structures shared by the engine
// and its callers
package util
