//go:build nolog

package build

// LoggingType discards every log line.
const LoggingType = LogTypeNone
