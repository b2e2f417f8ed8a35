// Package update drives the vendor checkout through the fetch/merge
// workflow: plain pulls, the destructive stash-then-reset overwrite path,
// stash finalization, and manual ref pinning.
//
// Git is an external collaborator here. The controller relies only on exit
// codes and combined output, classifies every result into an Outcome, and
// writes a diagnostic log next to the application when an attempt fails.
package update
