package realtime

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/kws-go/internal/analysis"
	"github.com/tphakala/kws-go/internal/conf"
)

// Command creates a new command for live keyword spotting.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Spot keywords in live audio",
		Long:  "Capture from a sound card and report keywords to the configured sinks until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.RealtimeAnalysis(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	flags := cmd.Flags()
	flags.StringVar(&settings.Audio.Source, "source", "", "Audio capture device (\"\" for the system default)")
	flags.BoolVar(&settings.Metrics.Enabled, "metrics", false, "Serve Prometheus metrics and the state API")
	flags.StringVar(&settings.Metrics.Listen, "listen", "", "Listen address of the metrics endpoint")
	flags.BoolVar(&settings.Indicator.Enabled, "indicator", false, "Log indicator color changes")
	flags.StringVar(&settings.DebugOut.Output, "debugout", "", "Write classifier telemetry packets to this file, - for stdout")

	bindings := map[string]string{
		"audio.source":       "source",
		"metrics.enabled":    "metrics",
		"metrics.listen":     "listen",
		"indicator.enabled":  "indicator",
		"debugstream.output": "debugout",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}

	// an explicit output turns the stream on
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("debugout") {
			settings.DebugOut.Enabled = true
		}
	}

	return nil
}
