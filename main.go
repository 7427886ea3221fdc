package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/xpathnode/cmd"
	"github.com/smazurov/xpathnode/internal/api"
	"github.com/smazurov/xpathnode/internal/browser"
	"github.com/smazurov/xpathnode/internal/cleanup"
	"github.com/smazurov/xpathnode/internal/config"
	"github.com/smazurov/xpathnode/internal/events"
	"github.com/smazurov/xpathnode/internal/locator"
	"github.com/smazurov/xpathnode/internal/logging"
	"github.com/smazurov/xpathnode/internal/metrics/exporters"
	"github.com/smazurov/xpathnode/internal/process"
	"github.com/smazurov/xpathnode/internal/session"
	"github.com/smazurov/xpathnode/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":5005" toml:"server.port" env:"SERVER_PORT"`

	// Capture settings
	CaptureBaseDir               string `help:"Capture project directory" default:"." toml:"capture.base_dir" env:"CAPTURE_BASE_DIR"`
	CaptureRuntime               string `help:"Interpreter to prefer over the project virtualenv" toml:"capture.runtime" env:"CAPTURE_RUNTIME"`
	CaptureScript                string `help:"Capture entry point (default modules/capture_xpath.py)" toml:"capture.script" env:"CAPTURE_SCRIPT"`
	CaptureDriver                string `help:"WebDriver binary (default drivers/msedgedriver)" toml:"capture.driver" env:"CAPTURE_DRIVER"`
	CaptureBrowser               string `help:"Browser passed to the capture script" default:"edge" toml:"capture.browser" env:"CAPTURE_BROWSER"`
	CaptureExtraArgs             string `help:"Extra arguments for the capture script" toml:"capture.extra_args" env:"CAPTURE_EXTRA_ARGS"`
	CaptureLogsDir               string `help:"Directory for capture output logs (default <base_dir>/logs)" toml:"capture.logs_dir" env:"CAPTURE_LOGS_DIR"`
	CaptureGracefulTimeout       string `help:"Wait before force-killing the capture process" default:"5s" toml:"capture.graceful_timeout" env:"CAPTURE_GRACEFUL_TIMEOUT"`
	CaptureEmergencyGrace        string `help:"Wait for an in-flight start or stop on shutdown" default:"2s" toml:"capture.emergency_grace" env:"CAPTURE_EMERGENCY_GRACE"`
	CaptureEmergencyStaleDrivers bool   `help:"Also kill older WebDriver processes on shutdown" default:"false" toml:"capture.emergency_stale_drivers" env:"CAPTURE_EMERGENCY_STALE_DRIVERS"`

	// UI settings
	UIOpenBrowser bool   `help:"Open the UI in the desktop browser at startup" default:"true" toml:"ui.open_browser" env:"UI_OPEN_BROWSER"`
	UIURL         string `help:"URL to open (default http://localhost<port>)" toml:"ui.url" env:"UI_URL"`

	// Auth settings, disabled unless both are set
	AuthUsername string `help:"Basic auth username" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession string `help:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingCapture string `help:"Capture process output logging level" default:"info" toml:"logging.capture" env:"LOGGING_CAPTURE"`
	LoggingCleanup string `help:"Cleanup logging level" default:"info" toml:"logging.cleanup" env:"LOGGING_CLEANUP"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP    string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func parseDuration(name, value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("Invalid duration, using default", "option", name, "value", value, "default", fallback)
		return fallback
	}
	return d
}

func uiURL(opts *Options) string {
	if opts.UIURL != "" {
		return opts.UIURL
	}
	if strings.HasPrefix(opts.Port, ":") {
		return "http://localhost" + opts.Port
	}
	return "http://" + opts.Port
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"session": opts.LoggingSession,
				"capture": opts.LoggingCapture,
				"cleanup": opts.LoggingCleanup,
				"api":     opts.LoggingAPI,
				"http":    opts.LoggingHTTP,
			},
		})
		logger := logging.GetLogger("main")

		// Event bus for in-process event handling; log entries feed /api/logs/stream
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEntryToEvent(entry))
		})

		baseDir, err := filepath.Abs(opts.CaptureBaseDir)
		if err != nil {
			logger.Error("Invalid capture base directory", "error", err)
			os.Exit(1)
		}
		logsDir := opts.CaptureLogsDir
		if logsDir == "" {
			logsDir = filepath.Join(baseDir, "logs")
		}

		// One supervisor per project, so one capture session per project
		instanceLock, err := session.AcquireInstanceLock(filepath.Join(logsDir, session.LockFileName))
		if err != nil {
			logger.Error("Cannot start supervisor", "error", err)
			os.Exit(1)
		}

		loc := locator.New(locator.Options{
			BaseDir: baseDir,
			Runtime: opts.CaptureRuntime,
			Script:  opts.CaptureScript,
			Driver:  opts.CaptureDriver,
		})
		launcher := process.NewLauncher(process.Options{
			BaseDir:   baseDir,
			LogsDir:   logsDir,
			Browser:   opts.CaptureBrowser,
			ExtraArgs: opts.CaptureExtraArgs,
			Output:    process.LogOutput{Logger: logging.GetLogger("capture")},
		}, logging.GetLogger("session"))

		cleanupLogger := logging.GetLogger("cleanup")
		lister, err := cleanup.NewSystemLister()
		if err != nil {
			cleanupLogger.Warn("Process enumeration unavailable, stop only terminates the capture process", "error", err)
			listErr := err
			lister = cleanup.ListerFunc(func(context.Context) ([]cleanup.ProcessInfo, error) {
				return nil, listErr
			})
		}
		policy := cleanup.New(lister, cleanup.SignalKiller(), cleanupLogger)

		manager := session.New(session.Deps{
			Locator:  loc,
			Launcher: launcher,
			Sweeper:  policy,
			Probe:    &session.LogTailProbe{Path: launcher.StdoutLogPath()},
			Bus:      eventBus,
		}, session.Options{
			GracefulTimeout:       parseDuration("capture.graceful_timeout", opts.CaptureGracefulTimeout, session.DefaultGracefulTimeout),
			EmergencyGrace:        parseDuration("capture.emergency_grace", opts.CaptureEmergencyGrace, session.DefaultEmergencyGrace),
			EmergencyStaleDrivers: opts.CaptureEmergencyStaleDrivers,
			Exit: func(code int) {
				if releaseErr := instanceLock.Release(); releaseErr != nil {
					logger.Warn("Failed to release instance lock", "error", releaseErr)
				}
				os.Exit(code)
			},
		}, logging.GetLogger("session"))

		// Reload logging levels and the graceful timeout when the config file changes
		watcher := config.NewWatcher(opts.Config, logging.GetLogger("config"))
		watcher.OnReload(func(settings config.RuntimeSettings) {
			logging.UpdateLevels(settings.Logging)
			manager.SetGracefulTimeout(settings.GracefulTimeout)
			logger.Info("Runtime settings reloaded", "graceful_timeout", settings.GracefulTimeout)
		})

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Session:           manager,
			EventBus:          eventBus,
			PrometheusHandler: exporters.HTTPHandler(),
		})

		hooks.OnStart(func() {
			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Config watcher disabled", "error", startErr)
			}

			ln, listenErr := server.Listen(opts.Port)
			if listenErr != nil {
				logger.Error("Failed to start HTTP server", "error", listenErr)
				os.Exit(1)
			}

			if sent, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Warn("Failed to notify systemd", "error", notifyErr)
			} else if sent {
				logger.Debug("Notified systemd of readiness")
			}

			if opts.UIOpenBrowser {
				url := uiURL(opts)
				opener := browser.New(policy, manager, logging.GetLogger("browser"), browser.Options{})
				go func() {
					if openErr := opener.Open(context.Background(), url); openErr != nil {
						logger.Warn("Failed to open UI", "url", url, "error", openErr)
					}
				}()
			}

			logger.Info("Starting HTTP server", "port", opts.Port, "base_dir", baseDir)
			if serveErr := server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				logger.Error("HTTP server failed", "error", serveErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}

			// Cleans up the capture session and exits the process
			manager.EmergencyShutdown()
		})
	})

	cli.Root().Use = "xpathnode"
	cli.Root().Short = "Capture session supervisor"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreateLocateCmd())
	cli.Root().AddCommand(cmd.CreateSweepCmd())

	cli.Run()
}
