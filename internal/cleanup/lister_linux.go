//go:build linux

package cleanup

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/procfs"
)

// ProcLister enumerates processes from /proc.
type ProcLister struct {
	fs procfs.FS
}

// NewSystemLister returns the Lister for the running platform.
func NewSystemLister() (Lister, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &ProcLister{fs: fs}, nil
}

// List returns every process whose stat could be read. Processes that exit
// during the scan are skipped.
func (l *ProcLister) List(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := l.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stat, err := p.Stat()
		if err != nil {
			continue
		}

		var createdAt time.Time
		if start, err := stat.StartTime(); err == nil {
			sec, frac := math.Modf(start)
			createdAt = time.Unix(int64(sec), int64(frac*float64(time.Second)))
		}

		// Comm is truncated to 15 bytes; prefer the executable name when readable
		name := stat.Comm
		if exe, err := p.Executable(); err == nil && exe != "" {
			name = filepath.Base(exe)
		}

		proc := p
		out = append(out, NewProcessInfo(p.PID, stat.PPID, name, createdAt, func() (string, error) {
			args, err := proc.CmdLine()
			if err != nil {
				return "", err
			}
			return strings.Join(args, " "), nil
		}))
	}
	return out, nil
}

// isZombie reports whether pid has exited but not been reaped yet.
func isZombie(pid int) bool {
	p, err := procfs.NewProc(pid)
	if err != nil {
		return false
	}
	stat, err := p.Stat()
	return err == nil && stat.State == "Z"
}
