// Package process spawns the capture subprocess and controls its lifecycle.
//
// Launcher starts the automation runtime with its output redirected to log
// files under the logs directory, a fixed environment overlay and its own
// process group. The returned Handle supports:
//   - Terminate: graceful stop request to the whole group
//   - Kill: forced stop of the whole group
//   - Stop: Terminate, bounded wait, then Kill with a secondary wait so it
//     never hangs
//
// Example:
//
//	l := process.NewLauncher(process.Options{BaseDir: base, LogsDir: logs}, logger)
//	h, err := l.Launch(ctx, artifacts)
//	if err != nil {
//	    return err
//	}
//	forced := h.Stop(5 * time.Second)
package process
