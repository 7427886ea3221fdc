package locator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// touch creates an executable file at path, making parent dirs as needed.
func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestLocator(opts Options, pathEntries map[string]string, env map[string]string) *Locator {
	l := New(opts)
	l.lookPath = func(name string) (string, error) {
		if p, ok := pathEntries[name]; ok {
			return p, nil
		}
		return "", errors.New("executable file not found in $PATH")
	}
	l.getenv = func(key string) string { return env[key] }
	return l
}

func TestRuntimeFallbackOrder(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "app")

	configured := touch(t, filepath.Join(root, "custom", "python"))
	venv := filepath.Join(root, "venv")
	venvPython := touch(t, filepath.Join(venv, venvBinDir(), executableName("python")))
	project := touch(t, filepath.Join(root, ".venv", venvBinDir(), executableName("python")))
	onPath := touch(t, filepath.Join(root, "usr", "bin", "python3"))

	tests := []struct {
		name string
		opts Options
		env  map[string]string
		path map[string]string
		want string
	}{
		{
			name: "configured runtime wins",
			opts: Options{BaseDir: base, Runtime: configured},
			env:  map[string]string{"VIRTUAL_ENV": venv},
			path: map[string]string{"python3": onPath},
			want: configured,
		},
		{
			name: "virtualenv interpreter when nothing configured",
			opts: Options{BaseDir: base},
			env:  map[string]string{"VIRTUAL_ENV": venv},
			path: map[string]string{"python3": onPath},
			want: venvPython,
		},
		{
			name: "project runtime when current is missing",
			opts: Options{BaseDir: base, Runtime: filepath.Join(root, "gone", "python")},
			path: map[string]string{"python3": onPath},
			want: project,
		},
		{
			name: "PATH lookup last",
			opts: Options{BaseDir: base, ProjectRuntime: filepath.Join(root, "nope", "python")},
			path: map[string]string{"python3": onPath},
			want: onPath,
		},
		{
			name: "bare configured name resolved through PATH",
			opts: Options{BaseDir: base, Runtime: "python3"},
			path: map[string]string{"python3": onPath},
			want: onPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLocator(tt.opts, tt.path, tt.env)
			got, err := l.Runtime()
			if err != nil {
				t.Fatalf("Runtime() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Runtime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRuntimeNotFound(t *testing.T) {
	l := newTestLocator(Options{BaseDir: t.TempDir()}, nil, nil)

	_, err := l.Runtime()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Artifact != ArtifactRuntime {
		t.Errorf("Artifact = %q, want %q", cfgErr.Artifact, ArtifactRuntime)
	}
}

func TestLocateDistinctArtifactErrors(t *testing.T) {
	base := t.TempDir()
	python := touch(t, filepath.Join(base, "bin", "python3"))
	pathEntries := map[string]string{"python3": python}

	// No script yet
	l := newTestLocator(Options{BaseDir: base}, pathEntries, nil)
	_, err := l.Locate()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Artifact != ArtifactScript {
		t.Fatalf("expected missing script error, got %v", err)
	}

	touch(t, filepath.Join(base, "modules", "capture_xpath.py"))
	_, err = l.Locate()
	if !errors.As(err, &cfgErr) || cfgErr.Artifact != ArtifactDriver {
		t.Fatalf("expected missing driver error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Edge WebDriver not found") {
		t.Errorf("error message %q should name the driver artifact", err.Error())
	}

	driver := touch(t, filepath.Join(base, "drivers", executableName("msedgedriver")))
	got, err := l.Locate()
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if got.Runtime != python || got.Driver != driver {
		t.Errorf("Locate() = %+v", got)
	}
	if !filepath.IsAbs(got.Script) {
		t.Errorf("Script path %q should be absolute", got.Script)
	}
}

func TestDirectoryIsNotAnArtifact(t *testing.T) {
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "drivers", executableName("msedgedriver")), 0o755); err != nil {
		t.Fatal(err)
	}

	l := newTestLocator(Options{BaseDir: base}, nil, nil)
	if _, err := l.Driver(); !IsConfigurationError(err) {
		t.Errorf("expected ConfigurationError for directory, got %v", err)
	}
}
