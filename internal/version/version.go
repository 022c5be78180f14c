// Package version reports avtool build information.
package version

import (
	"runtime"
	"runtime/debug"
	"time"
)

// Name is the program name printed by the version command.
const Name = "avtool"

// These variables will be set at build time via -ldflags
var (
	// Version represents the application version (from git tags)
	Version = "dev"
	// BuildTime is the time when the binary was built
	BuildTime = "unknown"
	// CommitID is the git commit hash
	CommitID = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Name          string
	Version       string
	GitCommit     string
	BuildTime     string
	FormattedTime string
	GoVersion     string
	OS            string
	Arch          string
}

// formatBuildTime returns a nicely formatted build time
func formatBuildTime(buildTime string) string {
	if buildTime == "unknown" {
		return buildTime
	}

	t, err := time.Parse(time.RFC3339, buildTime)
	if err != nil {
		return buildTime
	}

	return t.Format("Mon Jan 2 15:04:05 2006")
}

// Info returns the build information. Values left unset by ldflags are taken
// from the module build info when `go install` recorded it.
func Info() BuildInfo {
	info := BuildInfo{
		Name:      Name,
		Version:   Version,
		GitCommit: CommitID,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromModule(&info, bi)
	}
	info.FormattedTime = formatBuildTime(info.BuildTime)
	return info
}

func fillFromModule(info *BuildInfo, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.GitCommit == "unknown":
			info.GitCommit = s.Value
		case s.Key == "vcs.time" && info.BuildTime == "unknown":
			info.BuildTime = s.Value
		}
	}
}
