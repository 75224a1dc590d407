//go:build !stdlog && !nolog

package build

// LoggingType writes to stdout and to the rotating log file once the
// command has opened it.
const LoggingType = LogTypeDefault
