//go:build !dev

package build

// Deployment marks a production build, the default.
const Deployment = Production
