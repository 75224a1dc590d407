//go:build !debug

package build

// LogLevel is the default level of every subsystem.
var LogLevel = "info"
