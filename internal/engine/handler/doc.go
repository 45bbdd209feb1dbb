// Package handler maps step types to the code that executes them. The
// registry is populated at startup and is read-only while runs execute
package handler
