package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tgbridge/internal/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, meta, err := opts.load(config.Overrides{})
			if err != nil {
				return err
			}
			out, err := cfg.RedactedYAML()
			if err != nil {
				return err
			}
			if file := meta.ConfigFile(); file != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", file)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
