// Package components holds the components compiled into paramforge: their
// embedded declarations, Go capacity models and artifact emitters, and the
// writer that puts an emitted artifact on disk.
package components
