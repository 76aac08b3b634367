// Package versions provides version information for the briefdesk service.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknownStr = "unknown"

// Version information set by build using -ldflags
var (
	// Version is the current version of briefdesk
	Version = "dev"
	// Commit is the git commit hash of the build
	Commit = unknownStr
	// BuildDate is the date the binary was built
	BuildDate = unknownStr
)

// VersionInfo represents the version information of the service.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersionInfo returns the version information of the service.
func GetVersionInfo() VersionInfo {
	version := Version
	commit := Commit
	buildDate := BuildDate

	// If built without ldflags, try to get version info from build info
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && commit == unknownStr {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					commit = setting.Value
				case "vcs.time":
					if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
						buildDate = t.Format(time.RFC3339)
					}
				}
			}
		}

		// Use the commit as a pseudo version when no release version is set.
		if commit != unknownStr && len(commit) >= 8 {
			version = "build-" + commit[:8]
		} else {
			version = "build-" + unknownStr
		}
	}

	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// UserAgent returns the User-Agent string used for outbound HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("BriefDesk/%s", GetVersionInfo().Version)
}
