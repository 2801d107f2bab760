package config

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/kws-go/internal/conf"
)

// Command creates the config command printing the effective configuration.
func Command(settings *conf.Settings) *cobra.Command {
	var defaults bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  "Print the configuration in use as YAML with secrets masked, or the built-in defaults with --default.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				out []byte
				err error
			)
			if defaults {
				out, err = conf.DefaultConfigYAML()
			} else {
				out, err = conf.MarshalYAML(settings)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	cmd.Flags().BoolVar(&defaults, "default", false, "Print the built-in default configuration")
	return cmd
}
