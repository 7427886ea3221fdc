package process

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/smazurov/xpathnode/internal/locator"
)

// buildArgs returns the runtime arguments for the capture entry point.
// Scripts inside baseDir run as modules (-m pkg.mod) so package-relative
// imports resolve; anything else runs as a plain script path.
func buildArgs(baseDir string, art locator.Artifacts, browser, extra string) ([]string, error) {
	var args []string
	if mod, ok := moduleName(baseDir, art.Script); ok {
		args = append(args, "-m", mod)
	} else {
		args = append(args, art.Script)
	}
	args = append(args, "--browser", browser, "--driver", art.Driver)

	extraArgs, err := parseCommand(extra)
	if err != nil {
		return nil, fmt.Errorf("parse extra args: %w", err)
	}
	return append(args, extraArgs...), nil
}

// moduleName maps <base>/modules/capture_xpath.py to modules.capture_xpath.
func moduleName(baseDir, script string) (string, bool) {
	if baseDir == "" {
		return "", false
	}
	rel, err := filepath.Rel(baseDir, script)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if filepath.Ext(rel) != ".py" {
		return "", false
	}
	rel = strings.TrimSuffix(rel, ".py")
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "."), true
}

// parseCommand parses a command string into arguments
// Handles quoted strings and basic escaping.
func parseCommand(command string) ([]string, error) {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)

	command = strings.TrimSpace(command)
	runes := []rune(command)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"' || r == '\'':
			switch {
			case !inQuote:
				inQuote = true
				quoteChar = r
			case r == quoteChar:
				inQuote = false
				quoteChar = 0
			default:
				current.WriteRune(r)
			}
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		case r == '\\' && i+1 < len(runes):
			i++
			current.WriteRune(runes[i])
		default:
			current.WriteRune(r)
		}
	}

	if current.Len() > 0 {
		args = append(args, current.String())
	}

	if inQuote {
		return nil, fmt.Errorf("unclosed quote in command")
	}

	return args, nil
}
