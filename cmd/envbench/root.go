package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"envbench/internal/config"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(config.EnvKeyReplacer())
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "envbench",
		Short: "Compare HTTP throughput and latency of one service across deployment environments",
		Long: `envbench runs the same HTTP trials against one service deployed in several
environments (bare host, container, VM, ...) and reports how each environment
performs, how stable the results are and how much overhead a candidate
environment adds over a baseline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringP("config", "c", config.DefaultConfigFile, "config file (YAML or JSON)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	mustBind(v, "config", flags.Lookup("config"))
	mustBind(v, "log.level", flags.Lookup("log-level"))
	mustBind(v, "log.format", flags.Lookup("log-format"))

	root.AddCommand(
		newRunCmd(v),
		newTargetCmd(v),
		newHistoryCmd(v),
		newVersionCmd(),
	)
	return root
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func configFile(v *viper.Viper) string {
	if f := v.GetString("config"); f != "" {
		return f
	}
	return config.DefaultConfigFile
}

func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}
