// Package version provides version and build information for the service.
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the semantic version of the service.
const Version = "0.3.0"

// Linker-injected variables. Set via:
//
//	go build -ldflags "-X github.com/nicozefrench/diveteacher/internal/version.gitCommit=VALUE"
var (
	gitCommit string
	buildDate string
)

// Info represents version and build information.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
	GoVersion string
}

// String formats Info for human-readable display.
func (i Info) String() string {
	return fmt.Sprintf("Version:    %s\nGit Commit: %s\nBuild Date: %s\nGo Version: %s",
		i.Version, i.GitCommit, i.BuildDate, i.GoVersion)
}

// Get returns the populated Info struct.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: gitCommit,
		BuildDate: buildDate,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		if info.GitCommit == "" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && len(s.Value) >= 7 {
					info.GitCommit = s.Value[:7]
				}
			}
		}
	}

	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}

	return info
}
