// Package execx runs external tools and captures their combined output.
//
// A non-zero exit is ordinary data returned to the caller for
// classification; only the inability to launch the program at all is
// reported as an error (wrapped in ErrLaunch). The Runner interface exists
// so services can be exercised in tests without spawning real processes.
package execx
