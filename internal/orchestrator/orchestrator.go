package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"envbench/internal/client"
	"envbench/internal/config"
	"envbench/internal/resources"
	"envbench/internal/trial"
)

// TrialRunner runs single trials. *trial.Runner implements it.
type TrialRunner interface {
	Run(ctx context.Context, spec trial.Spec) *trial.Result
	Warmup(ctx context.Context, target string, n, concurrency int) int
}

type Deps struct {
	Runner     TrialRunner
	HTTPClient *http.Client
	// Source is sampled during every trial; nil disables resource sampling.
	Source    resources.Source
	Observers []Observer
	Logger    *zap.Logger
}

type Orchestrator struct {
	cfg        *config.Config
	runner     TrialRunner
	httpClient *http.Client
	source     resources.Source
	observers  observers
	logger     *zap.Logger
}

func New(cfg *config.Config, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		runner:     deps.Runner,
		httpClient: deps.HTTPClient,
		source:     deps.Source,
		observers:  deps.Observers,
		logger:     logger,
	}
}

// Validate checks the trial matrix. It is the only source of errors that
// stop a run before any trial starts.
func Validate(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: configuration is nil", config.ErrInvalid)
	}
	var errs []error
	if len(cfg.Environments) == 0 {
		errs = append(errs, errors.New("no environments configured"))
	}
	if len(cfg.Endpoints) == 0 {
		errs = append(errs, errors.New("no endpoints configured"))
	}
	if n := cfg.Run.RepetitionCount(); n <= 0 {
		errs = append(errs, fmt.Errorf("repetitions must be positive, got %d", n))
	}
	if cfg.Run.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", cfg.Run.Concurrency))
	}
	if cfg.Run.RequestTimeoutDuration <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	for _, ep := range cfg.Endpoints {
		if ep.Requests <= 0 {
			errs = append(errs, fmt.Errorf("endpoint %q: requests must be positive, got %d", ep.Name, ep.Requests))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return nil
}

// Run executes every (environment, endpoint, repetition) slot in declared
// order. The report always holds one trial per slot. When ctx is cancelled
// the remaining slots are recorded as skipped and the partial report is
// returned together with ctx.Err().
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	if err := Validate(o.cfg); err != nil {
		return nil, err
	}
	if o.runner == nil || o.httpClient == nil {
		return nil, errors.New("orchestrator requires a trial runner and an http client")
	}

	report := newReport(o.cfg)
	o.logger.Info("run started",
		zap.String("run_id", report.RunID),
		zap.Int("environments", len(o.cfg.Environments)),
		zap.Int("endpoints", len(o.cfg.Endpoints)),
		zap.Int("repetitions", o.cfg.Run.RepetitionCount()))
	o.observers.RunStarted(report)

	ranTrial := false
	for _, env := range o.cfg.Environments {
		state := newEnvironmentState(env)
		report.Environments = append(report.Environments, state)

		if ctx.Err() == nil {
			state.probe(ctx, o.httpClient, o.cfg.Health)
			o.logger.Debug("environment probed",
				zap.String("environment", state.Name),
				zap.String("reachability", string(state.Reachability)),
				zap.String("reason", state.Reason))
		}
		o.observers.EnvironmentProbed(*state)

		for _, ep := range o.cfg.Endpoints {
			results := make([]*trial.Result, 0, o.cfg.Run.RepetitionCount())
			url := client.JoinURL(env.BaseURL, ep.Path)
			warmedUp := false

			for rep := 1; rep <= o.cfg.Run.RepetitionCount(); rep++ {
				spec := o.spec(env, ep, rep, url)

				var result *trial.Result
				switch {
				case ctx.Err() != nil:
					result = trial.Skipped(spec, ReasonInterrupted)
				case !state.Usable():
					result = trial.Skipped(spec, state.Reason)
				default:
					result = o.execute(ctx, spec, ranTrial, &warmedUp)
					ranTrial = ranTrial || result.Status != trial.StatusSkipped
					if result.Aborted {
						state.markAborted()
					}
				}
				if result.Status == trial.StatusSkipped {
					trial.Summarize(result)
				}

				results = append(results, result)
				report.Trials = append(report.Trials, result)
				o.observers.TrialFinished(result)
			}

			group := Aggregate(env.Name, ep.Name, results)
			report.Groups = append(report.Groups, group)
			o.observers.GroupFinished(group)
		}
	}

	report.FinishedAt = time.Now()
	report.Interrupted = ctx.Err() != nil
	o.observers.RunFinished(report)

	o.logger.Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
		zap.Bool("interrupted", report.Interrupted))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (o *Orchestrator) spec(env config.Environment, ep config.Endpoint, rep int, url string) trial.Spec {
	spec := trial.Spec{
		Environment:    env.Name,
		Endpoint:       ep.Name,
		Repetition:     rep,
		URL:            url,
		Requests:       ep.Requests,
		Concurrency:    o.cfg.Run.Concurrency,
		Deadline:       o.cfg.Run.TrialDeadlineDuration,
		AbortThreshold: o.cfg.Run.AbortAfter(),
		RateLimit:      o.cfg.Run.RateLimit,
	}
	spec.OnSample = func(s client.RequestSample) {
		o.observers.RequestCompleted(spec, s)
	}
	return spec
}

// execute runs one trial: cooldown after the previous trial, warmup before
// the first repetition of an endpoint, then the trial itself with the
// resource sampler running alongside.
func (o *Orchestrator) execute(ctx context.Context, spec trial.Spec, afterTrial bool, warmedUp *bool) *trial.Result {
	if afterTrial {
		if err := wait(ctx, o.cfg.Run.CooldownDuration); err != nil {
			return trial.Skipped(spec, ReasonInterrupted)
		}
	}

	if !*warmedUp && o.cfg.Run.Warmup > 0 {
		ok := o.runner.Warmup(ctx, spec.URL, o.cfg.Run.Warmup, o.cfg.Run.Concurrency)
		o.logger.Debug("warmup finished",
			zap.String("environment", spec.Environment),
			zap.String("endpoint", spec.Endpoint),
			zap.Int("requests", o.cfg.Run.Warmup),
			zap.Int("successful", ok))
		if ctx.Err() != nil {
			return trial.Skipped(spec, ReasonInterrupted)
		}
	}
	*warmedUp = true

	o.observers.TrialStarted(spec)

	var sampler *resources.Sampler
	if o.source != nil {
		sampler = resources.NewSampler(o.source, o.cfg.Run.SampleIntervalDuration, spec.Deadline, o.logger)
		sampler.Start(ctx)
	}

	result := o.runner.Run(ctx, spec)

	if sampler != nil {
		result.Resources = sampler.Stop()
		trial.Summarize(result)
	}

	// a trial cut short by the run being cancelled is not comparable with
	// full repetitions; its samples stay in the record
	if result.Interrupted {
		result.Status = trial.StatusSkipped
		result.SkipReason = ReasonInterrupted
	}

	o.logger.Debug("trial finished",
		zap.String("environment", spec.Environment),
		zap.String("endpoint", spec.Endpoint),
		zap.Int("repetition", spec.Repetition),
		zap.String("status", string(result.Status)),
		zap.Float64("rps", result.RPS),
		zap.Float64("error_rate", result.ErrorRate))
	return result
}
