package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGetPrefersLinkerValues(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version = "v1.2.0"
	GitCommit = "3f2a9c1d5e"

	info := Get()
	if info.Version != "v1.2.0" || info.GitCommit != "3f2a9c1d5e" {
		t.Errorf("Get() = %+v", info)
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
	if s := String(); !strings.HasPrefix(s, "v1.2.0 (3f2a9c1") {
		t.Errorf("String() = %q", s)
	}
}
