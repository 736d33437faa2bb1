// Package version carries build metadata, stamped with
// -ldflags "-X github.com/banshee-data/sensevis/internal/version.Version=...".
package version

import "fmt"

var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for `sensevis version`.
func String() string {
	return fmt.Sprintf("sensevis %s (%s) built %s", Version, GitSHA, BuildTime)
}
