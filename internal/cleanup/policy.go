// Package cleanup selects and terminates the OS processes that belong to a
// capture session: WebDriver binaries and automation-controlled browsers
// started after the session began, and processes the session owns.
//
// Browser matching is a heuristic. An automation browser started by another
// tool after the session began is indistinguishable from the session's own
// and will be matched too.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"syscall"
	"time"
)

// Reason explains why a process was selected.
type Reason string

// Selection reasons.
const (
	ReasonDriver  Reason = "driver"
	ReasonBrowser Reason = "browser"
	ReasonOwned   Reason = "owned"
)

// Default name and command line markers.
var (
	DefaultDriverNames       = []string{"chromedriver", "msedgedriver", "geckodriver"}
	DefaultBrowserNames      = []string{"chrome", "msedge", "firefox"}
	DefaultAutomationMarkers = []string{"--remote-debugging-port", "selenium"}
)

// Request parameterises a sweep.
type Request struct {
	// Since is the session start. Drivers and browsers created at or before it
	// are kept.
	Since time.Time
	// ProtectedPID is never terminated. Zero means none.
	ProtectedPID int
	// OwnedPIDs are terminated regardless of name, provided they were
	// created after Since.
	OwnedPIDs []int
	// RootPID is the live session subprocess. Its descendants created after
	// Since are owned; the root itself is left to the caller. Zero means none.
	RootPID int
	// IncludeStaleDrivers selects driver processes created at or before Since
	// too. Only the emergency path sets it.
	IncludeStaleDrivers bool
}

// Victim is a process selected for termination.
type Victim struct {
	PID    int
	Name   string
	Reason Reason
}

// Outcome records a termination that did not succeed.
type Outcome struct {
	Victim
	Err error
}

// Gone reports whether the process had already exited.
func (o Outcome) Gone() bool {
	return errors.Is(o.Err, syscall.ESRCH) || errors.Is(o.Err, os.ErrProcessDone)
}

// Result summarises a sweep.
type Result struct {
	Terminated []Victim
	// Names are the distinct lower-cased names of terminated processes in
	// termination order.
	Names    []string
	Failures []Outcome
}

// Policy applies the selection rules.
type Policy struct {
	lister  Lister
	killer  Killer
	logger  *slog.Logger
	selfPID int

	driverNames       []string
	browserNames      []string
	automationMarkers []string
}

// Option configures a Policy.
type Option func(*Policy)

// WithDriverNames replaces DefaultDriverNames.
func WithDriverNames(names ...string) Option {
	return func(p *Policy) { p.driverNames = lower(names) }
}

// WithBrowserNames replaces DefaultBrowserNames.
func WithBrowserNames(names ...string) Option {
	return func(p *Policy) { p.browserNames = lower(names) }
}

// WithAutomationMarkers replaces DefaultAutomationMarkers.
func WithAutomationMarkers(markers ...string) Option {
	return func(p *Policy) { p.automationMarkers = lower(markers) }
}

// New creates a Policy.
func New(lister Lister, killer Killer, logger *slog.Logger, opts ...Option) *Policy {
	p := &Policy{
		lister:            lister,
		killer:            killer,
		logger:            logger,
		selfPID:           os.Getpid(),
		driverNames:       DefaultDriverNames,
		browserNames:      DefaultBrowserNames,
		automationMarkers: DefaultAutomationMarkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan returns the processes a sweep with req would terminate, drivers
// first, then browsers, then owned processes.
func (p *Policy) Plan(ctx context.Context, req Request) ([]Victim, error) {
	procs, err := p.lister.List(ctx)
	if err != nil {
		return nil, err
	}
	return p.selectVictims(procs, req), nil
}

// Sweep terminates every process Plan selects. Termination failures are
// recorded in Result.Failures and never abort the sweep. If processes
// cannot be enumerated nothing is terminated: without creation times no
// process can be shown to belong to the session.
func (p *Policy) Sweep(ctx context.Context, req Request) Result {
	var res Result
	victims, err := p.Plan(ctx, req)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			p.logger.Warn("Process enumeration unsupported, skipping sweep")
		} else {
			p.logger.Warn("Process enumeration failed, skipping sweep", "error", err)
		}
		return res
	}

	seen := make(map[string]bool)
	for _, v := range victims {
		if err := p.killer.Kill(v.PID); err != nil {
			out := Outcome{Victim: v, Err: err}
			if out.Gone() {
				p.logger.Debug("Process already gone", "pid", v.PID, "name", v.Name)
			} else {
				p.logger.Warn("Failed to terminate process", "pid", v.PID, "name", v.Name, "error", err)
			}
			res.Failures = append(res.Failures, out)
			continue
		}

		p.logger.Info("Terminated process", "pid", v.PID, "name", v.Name, "reason", v.Reason)
		res.Terminated = append(res.Terminated, v)
		if name := strings.ToLower(v.Name); name != "" && !seen[name] {
			seen[name] = true
			res.Names = append(res.Names, name)
		}
	}
	return res
}

// FindProtectable returns the earliest browser process created after since
// whose command line contains marker. It is used to identify the browser
// window showing the control UI.
func (p *Policy) FindProtectable(ctx context.Context, since time.Time, marker string) (ProcessInfo, bool, error) {
	procs, err := p.lister.List(ctx)
	if err != nil {
		return ProcessInfo{}, false, fmt.Errorf("find protectable browser: %w", err)
	}

	var best ProcessInfo
	found := false
	for _, proc := range procs {
		if proc.PID == p.selfPID || !proc.CreatedAt.After(since) {
			continue
		}
		name := strings.ToLower(proc.Name)
		if containsAny(name, p.driverNames) || !containsAny(name, p.browserNames) {
			continue
		}
		if !strings.Contains(proc.CommandLine(), marker) {
			continue
		}
		if !found || proc.CreatedAt.Before(best.CreatedAt) {
			best = proc
			found = true
		}
	}
	return best, found, nil
}

func (p *Policy) selectVictims(procs []ProcessInfo, req Request) []Victim {
	owned := make(map[int]bool, len(req.OwnedPIDs))
	for _, pid := range req.OwnedPIDs {
		owned[pid] = true
	}
	if req.RootPID > 0 {
		for _, pid := range descendants(procs, req.RootPID) {
			owned[pid] = true
		}
	}

	var drivers, browsers, others []Victim
	for _, proc := range procs {
		if proc.PID <= 0 || proc.PID == p.selfPID || proc.PID == req.RootPID {
			continue
		}
		if req.ProtectedPID > 0 && proc.PID == req.ProtectedPID {
			continue
		}

		name := strings.ToLower(proc.Name)
		fresh := proc.CreatedAt.After(req.Since)
		switch {
		case containsAny(name, p.driverNames) && (fresh || req.IncludeStaleDrivers):
			drivers = append(drivers, Victim{PID: proc.PID, Name: proc.Name, Reason: ReasonDriver})
		case containsAny(name, p.browserNames) && !containsAny(name, p.driverNames) && fresh && p.isAutomated(proc):
			browsers = append(browsers, Victim{PID: proc.PID, Name: proc.Name, Reason: ReasonBrowser})
		case owned[proc.PID] && fresh:
			others = append(others, Victim{PID: proc.PID, Name: proc.Name, Reason: ReasonOwned})
		}
	}

	victims := append(drivers, browsers...)
	return append(victims, others...)
}

func (p *Policy) isAutomated(proc ProcessInfo) bool {
	return containsAny(strings.ToLower(proc.CommandLine()), p.automationMarkers)
}

// descendants returns every transitive child of root.
func descendants(procs []ProcessInfo, root int) []int {
	children := make(map[int][]int)
	for _, proc := range procs {
		children[proc.PPID] = append(children[proc.PPID], proc.PID)
	}

	var out []int
	visited := map[int]bool{root: true}
	queue := []int{root}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, child := range children[pid] {
			if visited[child] {
				continue
			}
			visited[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	return slices.ContainsFunc(needles, func(n string) bool {
		return n != "" && strings.Contains(s, n)
	})
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
