package file

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/kws-go/internal/analysis"
	"github.com/tphakala/kws-go/internal/conf"
)

// Command creates a new file command for replaying a single WAV or FLAC file.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file [input.wav|input.flac]",
		Short: "Spot keywords in a WAV or FLAC file",
		Long:  "Replay a WAV or FLAC file recorded at the pipeline sample rate through the keyword spotter and print the detections with their offsets.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.InputFile = args[0]
			_, err := analysis.FileAnalysis(cmd.Context(), settings)
			return err
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}

	return cmd
}

// setupFlags configures flags specific to the file command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().BoolVar(&settings.Store.Enabled, "store", false, "Save detections to the history database")
	if err := viper.BindPFlag("store.enabled", cmd.Flags().Lookup("store")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
