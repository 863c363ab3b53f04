package trial

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"envbench/internal/client"
)

const (
	reasonDeadline  = "trial deadline exceeded"
	reasonCancelled = "trial cancelled"
)

// Dispatcher sends one request and reports its outcome. It must not block
// past ctx.
type Dispatcher interface {
	Dispatch(ctx context.Context, target string) client.RequestSample
}

// Spec describes one trial.
type Spec struct {
	Environment string
	Endpoint    string
	Repetition  int
	URL         string

	Requests       int
	Concurrency    int
	Deadline       time.Duration
	AbortThreshold int
	RateLimit      float64

	// OnSample, when set, is called from the collector goroutine for
	// every recorded sample.
	OnSample func(client.RequestSample)
}

type Runner struct {
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewRunner(dispatcher Dispatcher, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{dispatcher: dispatcher, logger: logger}
}

type collected struct {
	samples []client.RequestSample
	aborted bool
}

// Run executes spec.Requests dispatches with at most spec.Concurrency in
// flight. The returned result is summarized except for resource metrics,
// which the caller attaches before calling Summarize again.
func (r *Runner) Run(ctx context.Context, spec Spec) *Result {
	result := &Result{
		Environment: spec.Environment,
		Endpoint:    spec.Endpoint,
		Repetition:  spec.Repetition,
		URL:         spec.URL,
		Status:      StatusCompleted,
		StartedAt:   time.Now(),
	}
	if spec.Requests <= 0 {
		Summarize(result)
		return result
	}

	concurrency := max(1, min(spec.Concurrency, spec.Requests))

	var trialCtx context.Context
	var cancel context.CancelFunc
	if spec.Deadline > 0 {
		trialCtx, cancel = context.WithTimeout(ctx, spec.Deadline)
	} else {
		trialCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var limiter *rate.Limiter
	if spec.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(spec.RateLimit), 1)
	}

	resultsCh := make(chan client.RequestSample, concurrency)
	doneCh := make(chan collected, 1)
	go collect(spec, resultsCh, doneCh, cancel)

	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	var first time.Time
	issued := 0

	for issued < spec.Requests {
		if limiter != nil {
			if err := limiter.Wait(trialCtx); err != nil {
				break
			}
		}
		if err := sem.Acquire(trialCtx, 1); err != nil {
			break
		}
		if trialCtx.Err() != nil {
			sem.Release(1)
			break
		}
		if issued == 0 {
			first = time.Now()
		}
		issued++

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			resultsCh <- r.dispatcher.Dispatch(trialCtx, spec.URL)
		}()
	}

	wg.Wait()
	close(resultsCh)
	out := <-doneCh
	end := time.Now()

	samples := out.samples
	if out.aborted {
		result.Status = StatusAborted
		result.Aborted = true
		r.logger.Warn("trial aborted after consecutive connection errors",
			zap.String("environment", spec.Environment),
			zap.String("endpoint", spec.Endpoint),
			zap.Int("repetition", spec.Repetition),
			zap.Int("issued", issued),
			zap.Int("threshold", spec.AbortThreshold))
	} else if missing := spec.Requests - issued; missing > 0 {
		reason := reasonDeadline
		if errors.Is(ctx.Err(), context.Canceled) {
			reason = reasonCancelled
		}
		for range missing {
			s := client.TimeoutSample(end, reason)
			samples = append(samples, s)
			if spec.OnSample != nil {
				spec.OnSample(s)
			}
		}
		r.logger.Debug("requests not issued before trial ended",
			zap.String("environment", spec.Environment),
			zap.String("endpoint", spec.Endpoint),
			zap.Int("missing", missing),
			zap.String("reason", reason))
	}

	if !out.aborted && errors.Is(ctx.Err(), context.Canceled) {
		result.Interrupted = cutShort(spec.Requests-issued, samples)
	}

	result.Requests = samples
	if !first.IsZero() {
		result.StartedAt = first
		result.Duration = end.Sub(first)
	}
	Summarize(result)
	return result
}

// cutShort reports whether cancellation cost the trial any request: some
// were never issued or an issued one resolved as a timeout.
func cutShort(missing int, samples []client.RequestSample) bool {
	if missing > 0 {
		return true
	}
	for i := range samples {
		if samples[i].Outcome == client.OutcomeTimeout {
			return true
		}
	}
	return false
}

// collect owns the sample buffer. It cancels the trial once threshold
// consecutive connection errors have been seen in completion order.
func collect(spec Spec, resultsCh <-chan client.RequestSample, doneCh chan<- collected, cancel context.CancelFunc) {
	out := collected{samples: make([]client.RequestSample, 0, spec.Requests)}
	consecutive := 0

	for s := range resultsCh {
		out.samples = append(out.samples, s)
		if spec.OnSample != nil {
			spec.OnSample(s)
		}

		if s.Outcome != client.OutcomeConnectionError {
			consecutive = 0
			continue
		}
		consecutive++
		if spec.AbortThreshold > 0 && consecutive >= spec.AbortThreshold && !out.aborted {
			out.aborted = true
			cancel()
		}
	}

	doneCh <- out
}

// Warmup dispatches n requests that are not recorded, at most concurrency
// at a time.
func (r *Runner) Warmup(ctx context.Context, target string, n, concurrency int) int {
	if n <= 0 {
		return 0
	}
	sem := semaphore.NewWeighted(int64(max(1, concurrency)))
	var ok atomic.Int64
	var wg sync.WaitGroup
	for range n {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			if s := r.dispatcher.Dispatch(ctx, target); s.Succeeded() {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()
	return int(ok.Load())
}
