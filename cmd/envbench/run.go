package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"envbench/internal/cli"
	"envbench/internal/client"
	"envbench/internal/config"
	"envbench/internal/history"
	"envbench/internal/influx"
	"envbench/internal/logging"
	"envbench/internal/metrics"
	"envbench/internal/orchestrator"
	"envbench/internal/resources"
	"envbench/internal/summary"
	"envbench/internal/trial"
)

type runFlags struct {
	environments string
	endpoints    string
	noResources  bool
	noPrompt     bool
}

var runFlagKeys = []struct {
	flag string
	key  string
}{
	{"repetitions", "run.repetitions"},
	{"concurrency", "run.concurrency"},
	{"requests", "run.requests"},
	{"timeout", "run.request_timeout"},
	{"deadline", "run.trial_deadline"},
	{"cooldown", "run.cooldown"},
	{"abort-threshold", "run.abort_threshold"},
	{"rate-limit", "run.rate_limit"},
	{"warmup", "run.warmup"},
	{"results-dir", "output.results_dir"},
	{"request-detail", "output.request_detail"},
	{"influx", "influx.enabled"},
	{"history", "history.enabled"},
	{"metrics-listen", "metrics.listen"},
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every configured trial and print the comparison",
		Example: `  envbench run
  envbench run -c bench.yaml --env host,docker --endpoint health
  ENVBENCH_RUN_CONCURRENCY=20 envbench run --no-prompt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompt := !rf.noPrompt && interactive() &&
				!cmd.Flags().Changed("env") && !cmd.Flags().Changed("endpoint")
			return runBenchmark(cmd.Context(), v, rf, prompt)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&rf.environments, "env", "e", "", "comma-separated environments to run (default all)")
	f.StringVarP(&rf.endpoints, "endpoint", "p", "", "comma-separated endpoints to run (default all)")
	f.BoolVar(&rf.noResources, "no-resources", false, "disable host resource sampling")
	f.BoolVar(&rf.noPrompt, "no-prompt", false, "never ask interactively")

	f.IntP("repetitions", "n", config.DefaultRepetitions, "repetitions per environment and endpoint")
	f.Int("concurrency", config.DefaultConcurrency, "maximum in-flight requests per trial")
	f.Int("requests", config.DefaultRequests, "default requests per trial")
	f.String("timeout", config.DefaultRequestTimeout, "per-request timeout")
	f.String("deadline", config.DefaultTrialDeadline, "per-trial deadline")
	f.String("cooldown", config.DefaultCooldown, "pause between trials")
	f.Int("abort-threshold", config.DefaultAbortThreshold, "consecutive connection errors that abort a trial (0 disables)")
	f.Float64("rate-limit", 0, "requests per second per trial (0 disables)")
	f.Int("warmup", 0, "warmup requests before the first repetition of each endpoint")
	f.String("results-dir", config.DefaultResultsDir, "directory for JSON results")
	f.Bool("request-detail", false, "keep per-request samples in exported trials")
	f.Bool("influx", false, "export points to InfluxDB")
	f.Bool("history", false, "store the run in the SQLite history")
	f.String("metrics-listen", "", "serve Prometheus metrics on this address during the run")

	for _, b := range runFlagKeys {
		mustBind(v, b.key, f.Lookup(b.flag))
	}
	return cmd
}

func runBenchmark(ctx context.Context, v *viper.Viper, rf runFlags, prompt bool) error {
	cfg, err := config.Load(configFile(v), v)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // stderr sync errors are not actionable

	opts := cli.DefaultOptions()
	opts.Resources = !rf.noResources
	if prompt {
		cli.PrintBanner()
		chosen, err := cli.PromptOptions(cfg.EnvironmentNames(), cfg.EndpointNames())
		if err != nil {
			return fmt.Errorf("failed to get options: %w", err)
		}
		opts = *chosen
		cli.PrintSummary(&opts, len(cfg.Environments), len(cfg.Endpoints))
	} else {
		opts.Environments = config.ParseList(rf.environments)
		opts.Endpoints = config.ParseList(rf.endpoints)
	}
	if !opts.Warmup {
		cfg.Run.Warmup = 0
	}

	unknown, err := config.ApplySelection(cfg, config.Selection{
		Environments: opts.Environments,
		Endpoints:    opts.Endpoints,
	})
	if len(unknown) > 0 {
		cli.Warnf("Unknown names ignored: %s", strings.Join(unknown, ", "))
	}
	if err != nil {
		return err
	}

	cfg.Print()

	httpClient := client.NewHTTPClient(cfg.Run.Concurrency)
	dispatcher, err := client.NewDispatcher(httpClient, cfg.Run.RequestTimeoutDuration)
	if err != nil {
		return err
	}

	var spinner *cli.ProgressSpinner
	if interactive() {
		spinner = cli.NewProgressSpinner()
	}
	observers := []orchestrator.Observer{
		summary.NewConsole(cfg, spinner),
		summary.NewWriter(cfg),
	}

	if cfg.Metrics.Listen != "" {
		recorder := metrics.NewRecorder()
		observers = append(observers, recorder)
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if err := recorder.Serve(metricsCtx, cfg.Metrics.Listen, logger); err != nil {
				cli.Warnf("Metrics endpoint failed: %v", err)
			}
		}()
	}

	if cfg.Influx.Enabled {
		sink, err := influx.NewClient(ctx, influx.ConfigFrom(&cfg.Influx), logger)
		if err != nil {
			cli.Warnf("InfluxDB export disabled: %v", err)
		} else {
			observers = append(observers, sink)
			defer func() {
				sink.Close()
				if n := sink.Failed(); n > 0 {
					cli.Warnf("%d InfluxDB writes failed", n)
				}
			}()
		}
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, logger)
		if err != nil {
			cli.Warnf("Run history disabled: %v", err)
		} else {
			observers = append(observers, store)
			defer store.Close()
		}
	}

	var source resources.Source
	if opts.Resources {
		source = resources.NewHostSource()
	}

	orch := orchestrator.New(cfg, orchestrator.Deps{
		Runner:     trial.NewRunner(dispatcher, logger),
		HTTPClient: httpClient,
		Source:     source,
		Observers:  observers,
		Logger:     logger,
	})

	report, err := orch.Run(ctx)
	if err != nil {
		if report != nil && errors.Is(err, context.Canceled) {
			cli.Warnf("Run interrupted, partial results were saved")
			logger.Info("run interrupted", zap.String("run_id", report.RunID))
		}
		return err
	}
	return nil
}
