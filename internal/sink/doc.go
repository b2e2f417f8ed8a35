// Package sink serializes launcher output into a daily server log file and
// fans out events (log lines, server readiness) to the presentation layer.
//
// Appends from the child's concurrent stdout/stderr readers and from command
// handlers go through a single mutex, so partial lines never interleave in
// the file or in the emitted event stream.
package sink
