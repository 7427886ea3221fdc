package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/xpathnode/internal/cleanup"
	"github.com/smazurov/xpathnode/internal/logging"
)

// CreateSweepCmd creates the sweep command.
func CreateSweepCmd() *cobra.Command {
	var (
		within       time.Duration
		protect      int
		staleDrivers bool
		kill         bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "List or terminate stray capture processes",
		Long: `Applies the capture cleanup rules to the running processes. Without --kill it only ` +
			`prints what a stop would terminate. Use it to clean up after a supervisor that was killed ` +
			`without running its shutdown hook.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "info", Format: "text"})
			logger := logging.GetLogger("cleanup")

			lister, err := cleanup.NewSystemLister()
			if err != nil {
				return err
			}
			policy := cleanup.New(lister, cleanup.SignalKiller(), logger)

			req := cleanup.Request{
				ProtectedPID:        protect,
				IncludeStaleDrivers: staleDrivers,
			}
			if within > 0 {
				req.Since = time.Now().Add(-within)
			}
			return runSweep(cmd.Context(), cmd.OutOrStdout(), policy, req, kill)
		},
	}

	cmd.Flags().DurationVar(&within, "within", 0, "Only consider processes started within this window (0 = any age)")
	cmd.Flags().IntVar(&protect, "protect", 0, "PID to never terminate")
	cmd.Flags().BoolVar(&staleDrivers, "stale-drivers", false, "Include driver processes older than the window")
	cmd.Flags().BoolVar(&kill, "kill", false, "Terminate the selected processes instead of listing them")
	return cmd
}

type sweepPolicy interface {
	Plan(ctx context.Context, req cleanup.Request) ([]cleanup.Victim, error)
	Sweep(ctx context.Context, req cleanup.Request) cleanup.Result
}

func runSweep(ctx context.Context, w io.Writer, policy sweepPolicy, req cleanup.Request, kill bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !kill {
		victims, err := policy.Plan(ctx, req)
		if err != nil {
			return fmt.Errorf("listing processes: %w", err)
		}
		if len(victims) == 0 {
			fmt.Fprintln(w, "no matching processes")
			return nil
		}
		for _, v := range victims {
			fmt.Fprintf(w, "%d\t%s\t%s\n", v.PID, v.Name, v.Reason)
		}
		return nil
	}

	res := policy.Sweep(ctx, req)
	for _, v := range res.Terminated {
		fmt.Fprintf(w, "terminated %d\t%s\t%s\n", v.PID, v.Name, v.Reason)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "failed     %d\t%s\t%v\n", f.PID, f.Name, f.Err)
	}
	if len(res.Terminated) == 0 && len(res.Failures) == 0 {
		fmt.Fprintln(w, "no matching processes")
	}
	return nil
}
