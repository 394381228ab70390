package main

import (
	"github.com/flemzord/chatrelay/internal/config"
	"github.com/flemzord/chatrelay/pkg/app"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func startCmd(g *globals) *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start chatrelay with all configured modules",
		Long: "Start chatrelay. Without -c, ./" + config.DefaultPath + " is used when present;\n" +
			"otherwise the configuration is built from environment variables.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := buildApp(cfgPath, logger)
			if err != nil {
				return err
			}
			return errors.Wrap(a.Run(cmd.Context()), "running chatrelay")
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	return cmd
}

// buildApp discovers the configuration and provisions every module.
func buildApp(cfgPath string, logger zerolog.Logger) (*app.App, error) {
	cfg, source, err := config.Discover(cfgPath)
	if err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}
	logger.Info().Str("source", source).Msg("configuration loaded")

	a, err := app.Build(app.Params{Config: cfg, Logger: logger})
	if err != nil {
		return nil, errors.Wrapf(err, "building chatrelay from %s", source)
	}
	return a, nil
}
