package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func configCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Load, validate and provision a configuration without starting it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			logger, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a, err := buildApp(path, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			mods := a.Modules()
			fmt.Fprintf(out, "Configuration OK (%d modules)\n", len(mods))
			for _, id := range mods {
				fmt.Fprintf(out, "  %s\n", id)
			}
			return nil
		},
	})
	return cmd
}
