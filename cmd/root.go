package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/kws-go/cmd/config"
	"github.com/tphakala/kws-go/cmd/devices"
	"github.com/tphakala/kws-go/cmd/file"
	"github.com/tphakala/kws-go/cmd/history"
	"github.com/tphakala/kws-go/cmd/monitor"
	"github.com/tphakala/kws-go/cmd/realtime"
	"github.com/tphakala/kws-go/internal/conf"
	"github.com/tphakala/kws-go/internal/errors"
	"github.com/tphakala/kws-go/internal/logger"
)

var (
	configFile    string
	centralLogger *logger.CentralLogger
	sentryEnabled bool
)

// RootCommand creates and returns the root command. settings is filled from
// the configuration file before any subcommand runs.
func RootCommand(settings *conf.Settings, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kws",
		Short:         "Keyword spotting CLI",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		panic(err)
	}

	devicesCmd := devices.Command()

	rootCmd.AddCommand(
		realtime.Command(settings),
		file.Command(settings),
		monitor.Command(settings),
		history.Command(settings),
		config.Command(settings),
		devicesCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// listing devices needs neither config nor logging setup
		if cmd.Name() == devicesCmd.Name() {
			return nil
		}
		return initialize(settings, version)
	}

	return rootCmd
}

// initialize loads the settings, then sets up logging and error telemetry.
func initialize(settings *conf.Settings, version string) error {
	loaded, err := conf.LoadFrom(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
	}
	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	logger.SetGlobal(cl)
	centralLogger = cl

	if settings.Sentry.Enabled {
		errors.SetPrivacyScrubber(logger.RedactSensitiveData)
		reporter, err := errors.InitSentry(settings.Sentry.DSN, version)
		if err != nil {
			logger.Global().Module("main").Warn("error telemetry disabled", logger.Error(err))
		} else {
			errors.SetTelemetryReporter(reporter)
			sentryEnabled = true
		}
	}

	return nil
}

// Shutdown flushes error telemetry and closes log files.
func Shutdown() {
	if sentryEnabled {
		errors.FlushSentry(2 * time.Second)
	}
	if centralLogger != nil {
		_ = centralLogger.Close()
	}
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to the configuration file")
	flags.BoolVarP(&settings.Debug, "debug", "d", false, "Enable debug output")
	flags.StringVar(&settings.Model.Path, "model", "", "Path to the .tflite keyword model")
	flags.IntVar(&settings.Model.Threads, "threads", 0, "Inference threads, 0 selects from the CPU topology")
	flags.IntVar(&settings.Detection.PerFrameThreshold, "threshold", 0, "Per-frame detection threshold, 0 to 255")
	flags.DurationVar(&settings.Detection.Suppression, "suppression", 0, "Suppression period after a detection")

	bindings := map[string]string{
		"debug":                       "debug",
		"model.path":                  "model",
		"model.threads":               "threads",
		"detection.perframethreshold": "threshold",
		"detection.suppression":       "suppression",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}

	return nil
}
