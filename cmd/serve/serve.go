package servecmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sacctcollapse/command"
	"sacctcollapse/daemon"
)

func New(env *command.Env, version string) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP collapse service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := env.Config()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			stopTracing, err := env.StartTracing(cfg)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, stopTracing(context.Background())) }()

			srv, err := daemon.New(cfg, version, env.Log)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address; default from config")
	return cmd
}
