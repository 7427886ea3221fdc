package process

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/smazurov/xpathnode/internal/locator"
)

func TestModuleName(t *testing.T) {
	base := filepath.FromSlash("/srv/app")

	tests := []struct {
		name   string
		script string
		want   string
		wantOK bool
	}{
		{"nested module", "/srv/app/modules/capture_xpath.py", "modules.capture_xpath", true},
		{"top level", "/srv/app/capture.py", "capture", true},
		{"outside base", "/opt/other/capture.py", "", false},
		{"not python", "/srv/app/capture.sh", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := moduleName(base, filepath.FromSlash(tt.script))
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("moduleName() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBuildArgs(t *testing.T) {
	base := filepath.FromSlash("/srv/app")
	art := locator.Artifacts{
		Runtime: "/usr/bin/python3",
		Script:  filepath.Join(base, "modules", "capture_xpath.py"),
		Driver:  "/srv/app/drivers/msedgedriver",
	}

	got, err := buildArgs(base, art, "edge", `--profile "Default Profile" --headless`)
	if err != nil {
		t.Fatalf("buildArgs() error = %v", err)
	}
	want := []string{
		"-m", "modules.capture_xpath",
		"--browser", "edge",
		"--driver", "/srv/app/drivers/msedgedriver",
		"--profile", "Default Profile", "--headless",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildArgs() = %v, want %v", got, want)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{"", nil, false},
		{`--a b`, []string{"--a", "b"}, false},
		{`hello\ world`, []string{"hello world"}, false},
		{`'it"s' x`, []string{`it"s`, "x"}, false},
		{`"unclosed`, nil, true},
	}

	for _, tt := range tests {
		got, err := parseCommand(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseCommand(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommand(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
