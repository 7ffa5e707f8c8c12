// Package version exposes build metadata injected at link time.
package version

// version is overridden with -ldflags "-X github.com/rshade/bulkops/pkg/version.version=v1.2.3".
//
//nolint:gochecknoglobals // Set by the linker.
var version = "dev"

// gitCommit is overridden with -ldflags at release time.
//
//nolint:gochecknoglobals // Set by the linker.
var gitCommit = ""

// GetVersion returns the build version, "dev" for local builds.
func GetVersion() string {
	return version
}

// GetGitCommit returns the commit the binary was built from, if known.
func GetGitCommit() string {
	return gitCommit
}
