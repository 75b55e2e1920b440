// Package version holds build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the release tag, or "dev" for local builds
	Version = "dev"

	GitCommit = "unknown"

	BuildDate = "unknown"
)

// Info is the version block reported by `uiverify version` and /healthz.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

func GetInfo() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String formats as "v1.2.0 (abc1234)".
func String() string {
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}

// Full includes the build date and toolchain.
func Full() string {
	return fmt.Sprintf("uiverify %s (%s) built %s with %s", Version, GitCommit, BuildDate, runtime.Version())
}
