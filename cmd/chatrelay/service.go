package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const serviceName = "chatrelay"

// program adapts the app lifecycle to the system service manager.
type program struct {
	cfgPath string
	logger  zerolog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

var _ service.Interface = (*program)(nil)

// Start builds the app and runs it in the background. Configuration errors
// are returned here so the service manager reports them.
func (p *program) Start(service.Service) error {
	a, err := buildApp(p.cfgPath, p.logger)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(gctx) })
	p.cancel = cancel
	p.group = g
	return nil
}

// Stop cancels the run and waits for shutdown to finish.
func (p *program) Stop(service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	err := p.group.Wait()
	p.cancel = nil
	return err
}

func newService(cfgPath string, prg service.Interface) (service.Service, error) {
	args := []string{"service", "run"}
	if cfgPath != "" {
		abs, err := filepath.Abs(cfgPath)
		if err != nil {
			return nil, errors.Wrap(err, "resolving config path")
		}
		args = append(args, "-c", abs)
	}
	svc, err := service.New(prg, &service.Config{
		Name:        serviceName,
		DisplayName: "chatrelay",
		Description: "Telegram to LLM relay bot",
		Arguments:   args,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating service")
	}
	return svc, nil
}

func serviceCmd(g *globals) *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage chatrelay as a system service",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")

	for _, action := range []struct{ name, short string }{
		{"install", "Install the system service"},
		{"uninstall", "Remove the system service"},
		{"start", "Start the installed service"},
		{"stop", "Stop the running service"},
		{"restart", "Restart the running service"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   action.name,
			Short: action.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := newService(cfgPath, &program{})
				if err != nil {
					return err
				}
				if err := service.Control(svc, action.name); err != nil {
					return errors.Wrapf(err, "service %s", action.name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action.name)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(cfgPath, &program{})
			if err != nil {
				return err
			}
			status, err := svc.Status()
			if errors.Is(err, service.ErrNotInstalled) {
				fmt.Fprintln(cmd.OutOrStdout(), "not installed")
				return nil
			}
			if err != nil {
				return errors.Wrap(err, "service status")
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusText(status))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			svc, err := newService(cfgPath, &program{cfgPath: cfgPath, logger: logger})
			if err != nil {
				return err
			}
			return errors.Wrap(svc.Run(), "service run")
		},
	})
	return cmd
}

func statusText(s service.Status) string {
	switch s {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
