// Package locator resolves the files needed to launch the capture subprocess:
// the runtime that executes the capture script, the script itself, and the
// WebDriver binary the script drives the browser with.
package locator

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Artifact names used in ConfigurationError messages.
const (
	ArtifactRuntime = "Python executable"
	ArtifactScript  = "Capture script"
	ArtifactDriver  = "Edge WebDriver"
)

// ConfigurationError reports a required executable, script or driver that is missing.
// It is fatal to the launch attempt only.
type ConfigurationError struct {
	Artifact string
	Path     string
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s not found", e.Artifact)
	}
	return fmt.Sprintf("%s not found at %s", e.Artifact, e.Path)
}

// Artifacts are the absolute paths required to start a capture.
type Artifacts struct {
	Runtime string
	Script  string
	Driver  string
}

// Options configures the locator. Zero values fall back to conventional
// locations under BaseDir.
type Options struct {
	BaseDir string

	// Runtime is the interpreter preferred above all others. When empty the
	// active virtualenv interpreter (VIRTUAL_ENV) is used if there is one.
	Runtime string

	// ProjectRuntime overrides the project-local runtime path.
	ProjectRuntime string

	// SearchNames are looked up on PATH, in order, as the last resort.
	SearchNames []string

	Script string
	Driver string
}

// Locator resolves Artifacts with an ordered fallback chain.
type Locator struct {
	opts     Options
	lookPath func(string) (string, error)
	getenv   func(string) string
}

// New creates a Locator.
func New(opts Options) *Locator {
	if len(opts.SearchNames) == 0 {
		opts.SearchNames = []string{"python3", "python"}
	}
	return &Locator{
		opts:     opts,
		lookPath: exec.LookPath,
		getenv:   os.Getenv,
	}
}

// Locate resolves all artifacts, failing on the first missing one.
func (l *Locator) Locate() (Artifacts, error) {
	rt, err := l.Runtime()
	if err != nil {
		return Artifacts{}, err
	}
	script, err := l.Script()
	if err != nil {
		return Artifacts{}, err
	}
	driver, err := l.Driver()
	if err != nil {
		return Artifacts{}, err
	}
	return Artifacts{Runtime: rt, Script: script, Driver: driver}, nil
}

// Runtime resolves the interpreter. First success wins:
//  1. the configured (or virtualenv) interpreter, if it exists
//  2. the project-local runtime
//  3. the first SearchNames entry found on PATH
func (l *Locator) Runtime() (string, error) {
	var candidates []string
	if current := l.currentRuntime(); current != "" {
		candidates = append(candidates, current)
	}
	candidates = append(candidates, l.projectRuntime())

	for _, candidate := range candidates {
		if resolved, ok := l.resolveExecutable(candidate); ok {
			return resolved, nil
		}
	}

	for _, name := range l.opts.SearchNames {
		if found, err := l.lookPath(name); err == nil {
			if resolved, ok := l.resolveExecutable(found); ok {
				return resolved, nil
			}
		}
	}

	return "", &ConfigurationError{Artifact: ArtifactRuntime}
}

// Script resolves the capture entry point.
func (l *Locator) Script() (string, error) {
	path := l.opts.Script
	if path == "" {
		path = filepath.Join("modules", "capture_xpath.py")
	}
	return l.requireFile(ArtifactScript, path)
}

// Driver resolves the WebDriver binary.
func (l *Locator) Driver() (string, error) {
	path := l.opts.Driver
	if path == "" {
		path = filepath.Join("drivers", executableName("msedgedriver"))
	}
	return l.requireFile(ArtifactDriver, path)
}

func (l *Locator) currentRuntime() string {
	if l.opts.Runtime != "" {
		return l.opts.Runtime
	}
	if venv := l.getenv("VIRTUAL_ENV"); venv != "" {
		return filepath.Join(venv, venvBinDir(), executableName("python"))
	}
	return ""
}

func (l *Locator) projectRuntime() string {
	if l.opts.ProjectRuntime != "" {
		return l.abs(l.opts.ProjectRuntime)
	}
	return filepath.Join(l.opts.BaseDir, "..", ".venv", venvBinDir(), executableName("python"))
}

// resolveExecutable makes candidate absolute (bare names go through PATH)
// and reports whether it names an existing regular file.
func (l *Locator) resolveExecutable(candidate string) (string, bool) {
	if candidate == "" {
		return "", false
	}
	path := candidate
	if !filepath.IsAbs(path) && filepath.Base(path) == path {
		found, err := l.lookPath(path)
		if err != nil {
			return "", false
		}
		path = found
	}
	path = l.abs(path)
	if !isFile(path) {
		return "", false
	}
	return path, true
}

func (l *Locator) requireFile(artifact, path string) (string, error) {
	path = l.abs(path)
	if !isFile(path) {
		return "", &ConfigurationError{Artifact: artifact, Path: path}
	}
	return path, nil
}

func (l *Locator) abs(path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.opts.BaseDir, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

func venvBinDir() string {
	if runtime.GOOS == "windows" {
		return "Scripts"
	}
	return "bin"
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
