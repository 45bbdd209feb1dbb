// Package util holds internal generic helpers: a bounded LRU cache and
// state transition tables
package util
