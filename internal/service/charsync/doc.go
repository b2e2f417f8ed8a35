// Package charsync runs the one-shot character content sync bundled with
// the vendored application. Output is streamed line by line to the log
// sink so the UI shows live progress; failure is reported, never fatal.
package charsync
