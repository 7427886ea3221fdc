package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/xpathnode/internal/config"
	"github.com/smazurov/xpathnode/internal/locator"
)

// captureOptions is the subset of the service configuration the
// subcommands need. Tags match the root command's options.
type captureOptions struct {
	Config  string
	BaseDir string `toml:"capture.base_dir" env:"CAPTURE_BASE_DIR"`
	Runtime string `toml:"capture.runtime" env:"CAPTURE_RUNTIME"`
	Script  string `toml:"capture.script" env:"CAPTURE_SCRIPT"`
	Driver  string `toml:"capture.driver" env:"CAPTURE_DRIVER"`
}

func (o *captureOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Config, "config", "c", "config.toml", "Path to configuration file")
	cmd.Flags().StringVar(&o.BaseDir, "base-dir", ".", "Capture project directory")
	cmd.Flags().StringVar(&o.Runtime, "runtime", "", "Interpreter to prefer")
	cmd.Flags().StringVar(&o.Script, "script", "", "Capture entry point")
	cmd.Flags().StringVar(&o.Driver, "driver", "", "WebDriver binary")
}

func (o *captureOptions) load(cmd *cobra.Command) error {
	return config.LoadConfig(o, cmd)
}

func (o *captureOptions) locatorOptions() locator.Options {
	return locator.Options{
		BaseDir: o.BaseDir,
		Runtime: o.Runtime,
		Script:  o.Script,
		Driver:  o.Driver,
	}
}

// CreateLocateCmd creates the locate command.
func CreateLocateCmd() *cobra.Command {
	var opts captureOptions

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Print the resolved capture artifacts",
		Long: `Resolves the interpreter, capture script and WebDriver exactly as a capture start would, ` +
			`and prints them. Exits non-zero naming the first missing artifact.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.load(cmd); err != nil {
				return err
			}
			return runLocate(cmd.OutOrStdout(), locator.New(opts.locatorOptions()))
		},
	}
	opts.bind(cmd)
	return cmd
}

type artifactLocator interface {
	Locate() (locator.Artifacts, error)
}

func runLocate(w io.Writer, loc artifactLocator) error {
	art, err := loc.Locate()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "runtime: %s\n", art.Runtime)
	fmt.Fprintf(w, "script:  %s\n", art.Script)
	fmt.Fprintf(w, "driver:  %s\n", art.Driver)
	return nil
}
