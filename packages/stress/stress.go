package stress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
)

// Target is a named request the runner dispatches. Resolve is called for
// every dispatch and must be safe for concurrent use.
type Target struct {
	Name    string
	Weight  int
	Resolve func() (*forge.Request, error)
}

// BuilderTarget returns a target that resolves b with args on every
// dispatch.
func BuilderTarget[A any](name string, weight int, b *forge.Builder[A], args A) *Target {
	return &Target{
		Name:   name,
		Weight: weight,
		Resolve: func() (*forge.Request, error) {
			return b.Resolve(args)
		},
	}
}

// Runner executes stress runs
type Runner struct {
	config    *Config
	transport forge.Transport
	scheduler *Scheduler
	metrics   *Metrics
	reporter  *Reporter
	log       zerolog.Logger
	label     string
	version   string
}

type RunnerOption func(*Runner)

func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

func WithLogger(log zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = log
	}
}

// WithLabel names the run in the report header, typically the definition
// file.
func WithLabel(label, version string) RunnerOption {
	return func(r *Runner) {
		r.label = label
		r.version = version
	}
}

func NewRunner(config *Config, transport forge.Transport, opts ...RunnerOption) *Runner {
	r := &Runner{
		config:    config,
		transport: transport,
		metrics:   NewMetrics(),
		scheduler: NewScheduler(config),
		log:       zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.reporter == nil {
		r.reporter = NewReporter()
	}

	return r
}

// Add registers targets to dispatch.
func (r *Runner) Add(targets ...*Target) {
	for _, t := range targets {
		r.scheduler.Add(t)
	}
}

// Run dispatches targets until the configured duration elapses or ctx is
// done, then summarizes the run and evaluates its thresholds.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if r.transport == nil {
		return nil, forge.ErrNoTransport
	}
	if r.scheduler.Len() == 0 {
		return nil, fmt.Errorf("no requests to dispatch")
	}

	r.reporter.Header(r.version, r.label, r.config)
	r.log.Debug().
		Float64("rate", r.config.Rate).
		Dur("duration", r.config.Duration).
		Int("targets", r.scheduler.Len()).
		Msg("Stress run started")

	r.metrics.Start()

	ctx, cancel := context.WithTimeout(ctx, r.config.Duration)
	defer cancel()

	progressDone := make(chan struct{})
	progressStopped := make(chan struct{})
	go func() {
		defer close(progressStopped)
		r.progressLoop(progressDone)
	}()

	r.dispatchLoop(ctx)

	r.metrics.Stop()
	close(progressDone)
	<-progressStopped
	r.reporter.ClearProgress()

	summary := r.metrics.GetSummary()
	result := &Result{Summary: summary, Passed: true}
	if r.config.Thresholds.HasThresholds() {
		result.Thresholds = summary.EvaluateThresholds(r.config.Thresholds)
	}
	result.Passed = !result.HasThresholdFailures()

	r.log.Debug().
		Int64("requests", summary.TotalRequests).
		Int64("errors", summary.ErrorCount).
		Bool("passed", result.Passed).
		Msg("Stress run finished")

	return result, nil
}

// Report prints the human-readable summary of result.
func (r *Runner) Report(result *Result) {
	r.reporter.Summary(result, r.config)
}

func (r *Runner) dispatchLoop(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	start := time.Now()
	var ramp <-chan time.Time
	if r.config.RampUp > 0 {
		ticker := time.NewTicker(rampTick)
		defer ticker.Stop()
		ramp = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ramp:
			r.scheduler.SetRate(r.scheduler.RateAt(time.Since(start)))
		default:
		}

		if err := r.scheduler.Wait(ctx); err != nil {
			return
		}

		target := r.scheduler.Next()
		if target == nil {
			return
		}

		if err := r.scheduler.Acquire(ctx); err != nil {
			return
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer r.scheduler.Release()
			_ = r.dispatch(ctx, target)
		}()
	}
}

// dispatch resolves a fresh request for t, sends it and records the outcome.
// Responses outside the 2xx range count as errors.
func (r *Runner) dispatch(ctx context.Context, t *Target) error {
	req, err := t.Resolve()
	if err != nil {
		r.metrics.RecordFailure(t.Name)
		r.log.Debug().Err(err).Str("request", t.Name).Msg("Resolving request failed")
		return err
	}

	r.metrics.Begin()
	defer r.metrics.End()

	start := time.Now()
	resp, err := r.transport.Do(ctx, req)
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			r.metrics.RecordTimeout(t.Name)
		} else {
			r.metrics.Record(t.Name, duration, err)
		}
		return err
	}

	r.metrics.RecordStatus(resp.StatusCode)

	var recordErr error
	if !resp.IsSuccess() {
		recordErr = fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	r.metrics.Record(t.Name, duration, recordErr)
	return recordErr
}

func (r *Runner) progressLoop(done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.reporter.Progress(r.metrics.GetCurrentStats(), r.config.Duration)
			r.metrics.AddTimePoint(r.metrics.Snapshot())
		}
	}
}

// Result holds the final result of a stress run
type Result struct {
	Summary    *Summary
	Thresholds []ThresholdResult
	Passed     bool
}

// HasThresholdFailures returns true if any thresholds failed
func (r *Result) HasThresholdFailures() bool {
	for _, tr := range r.Thresholds {
		if !tr.Passed {
			return true
		}
	}
	return false
}
