// Package state implements persistence for the launcher session Record.
//
// The FileRepository stores and loads the record as YAML on disk and exposes
// a Repository interface that the CLI commands depend on.
package state
