package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestFallbacksPopulated(t *testing.T) {
	if Version == "" {
		t.Error("Version should never be empty after init")
	}
	if Commit == "" {
		t.Error("Commit should never be empty after init")
	}
}

func TestFull(t *testing.T) {
	got := Full()
	if !strings.Contains(got, Version) || !strings.Contains(got, "commit: "+Commit) || !strings.Contains(got, GoVersion) {
		t.Errorf("Full() = %q", got)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "sockpacket/"+Version {
		t.Errorf("UserAgent() = %q", got)
	}
}

func TestFromBuildInfo(t *testing.T) {
	tests := []struct {
		name        string
		settings    map[string]string
		wantVersion string
		wantCommit  string
	}{
		{
			name:        "clean tree",
			settings:    map[string]string{"vcs.revision": "0123456789abcdef", "vcs.time": "2024-03-05T10:00:00Z"},
			wantVersion: "dev-20240305",
			wantCommit:  "0123456",
		},
		{
			name:        "modified tree",
			settings:    map[string]string{"vcs.revision": "abc", "vcs.modified": "true"},
			wantVersion: "",
			wantCommit:  "abc-dirty",
		},
		{
			name:     "no vcs info",
			settings: map[string]string{},
		},
	}

	savedVersion, savedCommit, savedGo := Version, Commit, GoVersion
	defer func() { Version, Commit, GoVersion = savedVersion, savedCommit, savedGo }()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit = "", ""
			info := &debug.BuildInfo{GoVersion: "go1.24.0"}
			for k, v := range tt.settings {
				info.Settings = append(info.Settings, debug.BuildSetting{Key: k, Value: v})
			}

			fromBuildInfo(info)
			if Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", Version, tt.wantVersion)
			}
			if Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", Commit, tt.wantCommit)
			}
			if GoVersion != "go1.24.0" {
				t.Errorf("GoVersion = %q", GoVersion)
			}
		})
	}
}
