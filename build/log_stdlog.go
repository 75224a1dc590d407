//go:build stdlog

package build

// LoggingType writes to stdout only. Tests build with this tag to see
// package logs without a log file.
const LoggingType = LogTypeStdOut
