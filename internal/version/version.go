// Package version holds build-time version information.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X agentctl/internal/version.Version=1.0.0 -X agentctl/internal/version.Commit=$(git rev-parse HEAD)"
var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns "Version (Commit)".
func String() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
