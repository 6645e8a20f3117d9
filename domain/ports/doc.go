// Package ports defines the interfaces the host drives but does not implement.
// The metadata store, the bundle parser and unit binaries are reached only
// through these abstractions; infrastructure adapters implement them.
package ports
