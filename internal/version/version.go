// Package version carries build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	// Version is the current release
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for startup log lines.
func String() string {
	return fmt.Sprintf("headtrack %s (%s, built %s)", Version, GitSHA, BuildTime)
}
