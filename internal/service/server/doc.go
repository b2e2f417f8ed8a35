// Package server supervises the bundled web application process.
//
// A start request walks Preparing, Installing (policy-driven), Starting and
// Probing before the server is declared Ready. The supervised child is the
// only shared mutable resource in the launcher; its handle lives in State
// behind one lock shared with the shutdown path, so a close request and a
// start-in-progress can never race into two live children or a stale kill.
package server
