// Package version reports which mlsearch build is running. The release
// build sets the variables with -ldflags "-X".
package version

import "fmt"

//nolint:gochecknoglobals // written by the linker
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String is the line printed by mlsearch --version.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
