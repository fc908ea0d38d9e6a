// Package version reports build metadata stamped via -ldflags.
package version

import (
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the version line printed by `promptvoice version`.
//
// Unstamped builds fall back to the module version and VCS revision recorded
// by `go install`.
func String() string {
	version, commit := Version, Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		version, commit = fromBuildInfo(info, version, commit)
	}
	return "promptvoice " + version + " (commit=" + commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

func fromBuildInfo(info *debug.BuildInfo, version, commit string) (string, string) {
	if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		version = info.Main.Version
	}
	if commit == "none" {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" && setting.Value != "" {
				commit = setting.Value
			}
		}
	}
	return version, commit
}
