//go:build debug

package build

// LogLevel is the default level of every subsystem in debug builds.
var LogLevel = "debug"
