// Package version holds build metadata set with -ldflags -X.
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func String() string {
	return Version + " (commit " + Commit + ", built " + BuildDate + ")"
}
