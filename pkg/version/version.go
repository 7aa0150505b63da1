// Package version carries the build version stamped at link time.
package version

import "fmt"

// Set via -ldflags "-X github.com/kioskbus/kioskbus-go/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns the human-readable build identity.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
