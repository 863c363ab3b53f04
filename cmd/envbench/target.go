package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"envbench/internal/cli"
	"envbench/internal/logging"
	"envbench/internal/target"
)

func newTargetCmd(v *viper.Viper) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "target",
		Short: "Serve the demo target service for local trials",
		Long: `Serve a small HTTP service with endpoints of known cost:
/health, /fast, /slow, /async-light, /heavy, /json-large, /error,
/delay/{ms} and /status/{code}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(v.GetString("log.level"), v.GetString("log.format"))
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

			cli.Infof("Target listening on %s", addr)
			return target.New(logger).Start(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "listen address")
	return cmd
}
