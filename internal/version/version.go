// Package version reports the sockpacket build: release version, VCS commit
// and the Go toolchain it was built with. The CLI prints it from the version
// command and sends it as the WebSocket User-Agent.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Release builds stamp these via ldflags:
//
//	go build -ldflags="-X github.com/muurk/sockpacket/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/sockpacket/internal/version.Commit=abc123"
//
// Unstamped builds fall back to VCS build info, then to "dev-<timestamp>".
var (
	// Version is the sockpacket release, e.g. v1.2.3
	Version = ""
	// Commit is the short VCS revision, suffixed -dirty for modified trees
	Commit = ""
	// GoVersion is the toolchain that built the binary
	GoVersion = runtime.Version()
)

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			fromBuildInfo(info)
		}
	}
	if Version == "" {
		Version = fmt.Sprintf("dev-%s", time.Now().Format("20060102-150405"))
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildInfo fills the unset fields from the vcs.* build settings.
func fromBuildInfo(info *debug.BuildInfo) {
	if info.GoVersion != "" {
		GoVersion = info.GoVersion
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	if rev := settings["vcs.revision"]; Commit == "" && rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if settings["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		Commit = rev
	}

	// Build info carries no tags, so dev builds are named by commit date.
	if Version == "" {
		if t, err := time.Parse(time.RFC3339, settings["vcs.time"]); err == nil {
			Version = fmt.Sprintf("dev-%s", t.Format("20060102"))
		}
	}
}

// Full returns the version with its commit and toolchain
func Full() string {
	return fmt.Sprintf("%s (commit: %s, %s)", Version, Commit, GoVersion)
}

// UserAgent returns the identifier sent in WebSocket handshakes
func UserAgent() string {
	return "sockpacket/" + Version
}
