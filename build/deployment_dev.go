//go:build dev

package build

// Deployment marks a development build. Subsystem loggers then follow the
// logging type selected by the stdlog and nolog tags.
const Deployment = Development
