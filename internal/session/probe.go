package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
)

// URLProbe reports the page the capture subprocess is currently on.
type URLProbe interface {
	CurrentURL(ctx context.Context) (string, error)
}

// urlLine matches the navigation lines printed by the capture script.
var urlLine = regexp.MustCompile(`(?:URL:\s*|current_url=)(\S+)`)

// defaultTailBytes bounds how much of the log a probe reads.
const defaultTailBytes = 64 << 10

// LogTailProbe finds the most recent URL line in the subprocess stdout log.
type LogTailProbe struct {
	Path     string
	MaxBytes int64
}

// CurrentURL scans the tail of the log backwards for the latest URL line.
func (p *LogTailProbe) CurrentURL(ctx context.Context) (string, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return "", fmt.Errorf("open capture log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat capture log: %w", err)
	}

	limit := p.MaxBytes
	if limit <= 0 {
		limit = defaultTailBytes
	}
	offset := max(info.Size()-limit, 0)

	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return "", fmt.Errorf("read capture log: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lines := bytes.Split(buf, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if m := urlLine.FindSubmatch(lines[i]); m != nil {
			return string(m[1]), nil
		}
	}
	return "", ErrNoURL
}
