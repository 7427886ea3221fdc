// Package browser opens the control UI in the desktop browser and tries to
// identify the browser process that shows it, so that process can be
// excluded from capture cleanup.
package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/browser"

	"github.com/smazurov/xpathnode/internal/cleanup"
)

// Finder locates a browser process started after since whose command line
// contains marker.
type Finder interface {
	FindProtectable(ctx context.Context, since time.Time, marker string) (cleanup.ProcessInfo, bool, error)
}

// Protector records the process to keep alive.
type Protector interface {
	SetProtected(pid int, openedAt time.Time)
}

// Options configures an Opener.
type Options struct {
	// Attempts and Interval bound the search for the UI browser process.
	Attempts int
	Interval time.Duration
}

// Opener opens URLs and protects the resulting browser process.
type Opener struct {
	open      func(url string) error
	finder    Finder
	protector Protector
	logger    *slog.Logger
	opts      Options
}

// New creates an Opener. finder may be nil, in which case no process is
// protected automatically.
func New(finder Finder, protector Protector, logger *slog.Logger, opts Options) *Opener {
	if opts.Attempts <= 0 {
		opts.Attempts = 10
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	// Keep launcher chatter out of the service output
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return &Opener{
		open:      browser.OpenURL,
		finder:    finder,
		protector: protector,
		logger:    logger,
		opts:      opts,
	}
}

// Open opens url and then searches for the browser process showing it until
// it is found or the attempts run out. A found process is recorded through
// the Protector. Failing to find one is not an error.
func (o *Opener) Open(ctx context.Context, url string) error {
	openedAt := time.Now()
	if err := o.open(url); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	o.logger.Info("Opened UI in browser", "url", url)

	if o.finder == nil || o.protector == nil {
		return nil
	}

	ticker := time.NewTicker(o.opts.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= o.opts.Attempts; attempt++ {
		proc, found, err := o.finder.FindProtectable(ctx, openedAt, url)
		if err != nil {
			o.logger.Debug("Cannot identify UI browser process", "error", err)
			return nil
		}
		if found {
			o.logger.Info("Protecting UI browser process", "pid", proc.PID, "name", proc.Name)
			o.protector.SetProtected(proc.PID, openedAt)
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}

	// Typically the URL was handed to an already running browser instance
	o.logger.Info("UI browser process not identified, nothing protected", "url", url)
	return nil
}
