// Package version holds build information set at link time.
package version

import "fmt"

// These variables are set at build time via ldflags.
var (
	// Release is the release version (e.g., "v1.0.0-abc1234").
	Release = "dev"
	// GitCommit is the short git commit hash.
	GitCommit = "unknown"
)

// Name is the program name.
const Name = "callflow"

// Full returns the program name with its release and commit.
func Full() string {
	return fmt.Sprintf("%s/%s (%s)", Name, Release, GitCommit)
}
