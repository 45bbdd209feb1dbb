// Package kv provides the key/value backends used by the store action
package kv
