package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetInfo(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	defer func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	}()

	Version = "1.0.0"
	Commit = "abc123def456"
	Date = "2024-01-01T12:00:00Z"

	info := GetInfo()
	if info.Version != "1.0.0" || info.Commit != "abc123def456" || info.Date != "2024-01-01T12:00:00Z" {
		t.Errorf("GetInfo() = %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %v, want %v", info.GoVersion, runtime.Version())
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %v", info.Platform)
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		commit string
		want   string
	}{
		{"abc123def456", "(abc123de)"},
		{"abc", "(abc)"},
	}

	for _, tt := range tests {
		info := Info{Version: "1.2.3", Commit: tt.commit, Date: "today", GoVersion: "go1.24", Platform: "linux/amd64"}
		s := info.String()
		if !strings.HasPrefix(s, "pmteam 1.2.3 ") || !strings.Contains(s, tt.want) {
			t.Errorf("String() = %q, want it to contain %q", s, tt.want)
		}
	}
}

func TestUserAgent(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "2.1.0"
	if got := UserAgent(); !strings.HasPrefix(got, "pmteam/2.1.0 (") {
		t.Errorf("UserAgent() = %q", got)
	}
}
