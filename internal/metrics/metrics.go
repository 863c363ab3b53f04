package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"envbench/internal/client"
	"envbench/internal/orchestrator"
	"envbench/internal/trial"
)

const namespace = "envbench"

// Recorder exposes the progress of a run as Prometheus metrics.
type Recorder struct {
	orchestrator.BaseObserver

	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	trials        *prometheus.CounterVec
	trialDuration *prometheus.HistogramVec
	trialRPS      *prometheus.GaugeVec
	running       prometheus.Gauge
	reachable     *prometheus.GaugeVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Dispatched requests by environment, endpoint and outcome",
		}, []string{"environment", "endpoint", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time to response headers of completed requests",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
		}, []string{"environment", "endpoint"}),
		trials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_total",
			Help:      "Finished trials by status",
		}, []string{"environment", "endpoint", "status"}),
		trialDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trial_duration_seconds",
			Help:      "Wall-clock duration of executed trials",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"environment", "endpoint"}),
		trialRPS: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trial_rps",
			Help:      "Requests per second of the last finished trial",
		}, []string{"environment", "endpoint"}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trial_running",
			Help:      "1 while a trial is executing",
		}),
		reachable: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "environment_reachable",
			Help:      "Probe result per environment (1 reachable, 0 unreachable)",
		}, []string{"environment"}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) EnvironmentProbed(state orchestrator.EnvironmentState) {
	v := 0.0
	if state.Usable() {
		v = 1
	}
	r.reachable.WithLabelValues(state.Name).Set(v)
}

func (r *Recorder) TrialStarted(trial.Spec) {
	r.running.Set(1)
}

func (r *Recorder) RequestCompleted(spec trial.Spec, sample client.RequestSample) {
	r.requests.WithLabelValues(spec.Environment, spec.Endpoint, sample.Outcome.String()).Inc()
	if sample.HasLatency() {
		r.latency.WithLabelValues(spec.Environment, spec.Endpoint).Observe(sample.Latency.Seconds())
	}
}

func (r *Recorder) TrialFinished(result *trial.Result) {
	r.trials.WithLabelValues(result.Environment, result.Endpoint, string(result.Status)).Inc()
	if result.Status == trial.StatusSkipped {
		return
	}
	r.running.Set(0)
	r.trialDuration.WithLabelValues(result.Environment, result.Endpoint).Observe(result.DurationSeconds)
	r.trialRPS.WithLabelValues(result.Environment, result.Endpoint).Set(result.RPS)
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("metrics endpoint listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
