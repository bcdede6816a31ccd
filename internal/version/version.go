// Package version exposes the ghostcrew build version.
package version

// version is overridden at build time via
// -ldflags "-X github.com/spectralhq/ghostcrew/internal/version.version=...".
var version = "0.1.0-dev"

// Get returns the current version.
func Get() string {
	return version
}
