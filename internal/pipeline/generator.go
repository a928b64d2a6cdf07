// Package pipeline orchestrates report generation: rendering session, navigation,
// chart waits, PDF capture, upload and job status, with retries and fallbacks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jonathan/report-renderer/internal/browser"
	"github.com/jonathan/report-renderer/internal/db"
	"github.com/jonathan/report-renderer/internal/observability"
	"github.com/jonathan/report-renderer/internal/storage"
	"github.com/jonathan/report-renderer/internal/types"
)

// Options holds the tunables of a Generator.
type Options struct {
	MaxRetries                int
	RetryDelay                time.Duration
	NavigationTimeout         time.Duration
	FallbackNavigationTimeout time.Duration
	PostNavigationDelay       time.Duration
	FallbackSettleDelay       time.Duration
	PageReadyTimeout          time.Duration
	ChartWaitTimeout          time.Duration
	ChartBatchSize            int
	ChartBatchPause           time.Duration
	MinChartSuccessPercent    int
	SettleDelay               time.Duration
	PDFTimeout                time.Duration
	UploadRetries             int
	UploadRetryDelay          time.Duration
	MaxConcurrentJobs         int
	InlineParams              bool
	RenderPath                string
	StoragePrefix             string
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:                2,
		RetryDelay:                10 * time.Second,
		NavigationTimeout:         120 * time.Second,
		FallbackNavigationTimeout: 60 * time.Second,
		PostNavigationDelay:       3 * time.Second,
		FallbackSettleDelay:       10 * time.Second,
		PageReadyTimeout:          60 * time.Second,
		ChartWaitTimeout:          60 * time.Second,
		ChartBatchSize:            3,
		ChartBatchPause:           time.Second,
		MinChartSuccessPercent:    70,
		SettleDelay:               3 * time.Second,
		PDFTimeout:                180 * time.Second,
		UploadRetries:             3,
		UploadRetryDelay:          2 * time.Second,
		MaxConcurrentJobs:         2,
		RenderPath:                DefaultRenderPath,
		StoragePrefix:             storage.DefaultPrefix,
	}
}

// PDFVariants are tried in order until one renders.
var PDFVariants = []browser.PDFOptions{
	{Name: "full", PrintBackground: true, PreferCSSPageSize: true, MarginInches: 0},
	{Name: "reduced", PrintBackground: true, PreferCSSPageSize: false, MarginInches: 0.4},
	{Name: "minimal", PrintBackground: false, PreferCSSPageSize: false, MarginInches: 0.4},
}

type navVariant struct {
	strategy browser.Strategy
	timeout  time.Duration
	settle   time.Duration
}

// Request describes one report to generate.
type Request struct {
	JobID   string
	BaseURL string
	Params  types.ReportParams
	// Selectors replaces the default chart names when non-empty.
	Selectors []string
}

// Result is a successful generation.
type Result struct {
	URL          string   `json:"url"`
	Attempts     int      `json:"attempts"`
	LoadedCharts []string `json:"loadedCharts"`
	FailedCharts []string `json:"failedCharts"`
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithMetrics records attempts, durations, chart failures and uploads.
func WithMetrics(m *observability.Metrics) GeneratorOption {
	return func(g *Generator) { g.metrics = m }
}

// WithLogger sets the generator's logger.
func WithLogger(l *observability.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// WithProgressCallback registers a callback for every recorded milestone.
func WithProgressCallback(cb ProgressCallback) GeneratorOption {
	return func(g *Generator) { g.onProgress = cb }
}

// Generator runs report generations. It bounds how many run at once and can
// stop accepting work and drain the ones in flight.
type Generator struct {
	sessions   SessionFactory
	artifacts  ArtifactStore
	jobs       JobStore
	opts       Options
	metrics    *observability.Metrics
	logger     *observability.Logger
	onProgress ProgressCallback

	sem      *semaphore.Weighted
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// NewGenerator creates a Generator. Zero-valued options fall back to DefaultOptions.
func NewGenerator(sessions SessionFactory, artifacts ArtifactStore, jobs JobStore, opts Options, options ...GeneratorOption) *Generator {
	opts = withDefaults(opts)
	g := &Generator{
		sessions:  sessions,
		artifacts: artifacts,
		jobs:      jobs,
		opts:      opts,
		logger:    observability.NewNopLogger(),
		sem:       semaphore.NewWeighted(int64(opts.MaxConcurrentJobs)),
	}
	for _, o := range options {
		o(g)
	}
	g.logger = g.logger.Component("generator")
	return g
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = def.NavigationTimeout
	}
	if opts.FallbackNavigationTimeout <= 0 {
		opts.FallbackNavigationTimeout = def.FallbackNavigationTimeout
	}
	if opts.PageReadyTimeout <= 0 {
		opts.PageReadyTimeout = def.PageReadyTimeout
	}
	if opts.ChartWaitTimeout <= 0 {
		opts.ChartWaitTimeout = def.ChartWaitTimeout
	}
	if opts.ChartBatchSize <= 0 {
		opts.ChartBatchSize = def.ChartBatchSize
	}
	if opts.PDFTimeout <= 0 {
		opts.PDFTimeout = def.PDFTimeout
	}
	if opts.UploadRetries <= 0 {
		opts.UploadRetries = def.UploadRetries
	}
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = def.MaxConcurrentJobs
	}
	if opts.RenderPath == "" {
		opts.RenderPath = def.RenderPath
	}
	if opts.StoragePrefix == "" {
		opts.StoragePrefix = def.StoragePrefix
	}
	return opts
}

// Options returns the effective options.
func (g *Generator) Options() Options {
	return g.opts
}

// InFlight returns the number of generations currently running or waiting for a slot.
func (g *Generator) InFlight() int64 {
	return g.inFlight.Load()
}

// Draining reports whether BeginShutdown has been called.
func (g *Generator) Draining() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.draining
}

// BeginShutdown makes every later Generate call fail with ErrShuttingDown.
func (g *Generator) BeginShutdown() {
	g.mu.Lock()
	g.draining = true
	g.mu.Unlock()
}

// Wait blocks until all accepted generations finish or ctx is done.
func (g *Generator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%d report generation(s) still running: %w", g.InFlight(), ctx.Err())
	}
}

func (g *Generator) enter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draining {
		return false
	}
	g.wg.Add(1)
	return true
}

// Generate renders, uploads and records the report for req. A refused run
// (ErrShuttingDown) leaves the job untouched. Once admitted, the job is marked
// Processing at the accepted milestone and always ends Download or Failed,
// unless that first write or the final Download write fails.
// Terminal failures are written to the job and returned as *GenerationError.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	if !g.enter() {
		return nil, ErrShuttingDown
	}
	defer g.wg.Done()

	g.inFlight.Add(1)
	g.metrics.IncInFlight()
	defer func() {
		g.inFlight.Add(-1)
		g.metrics.DecInFlight()
	}()

	log := g.logger.With("job_id", req.JobID)

	// An unusable key fails every attempt the same way, so it is checked once up front.
	key, err := storage.ReportKey(g.opts.StoragePrefix, req.Params.BrandID, req.JobID)
	if err != nil {
		keyErr := &UploadError{Message: "invalid artifact key", Cause: err}
		g.metrics.ObserveAttempt(observability.OutcomeFailed)
		log.Error("rejecting report generation", "error", keyErr)
		g.recordFailure(ctx, req.JobID, keyErr.Error(), log)
		return nil, &GenerationError{Message: keyErr.Error(), Cause: keyErr}
	}

	if err := g.jobs.UpdateJob(ctx, req.JobID, types.ProcessingUpdate(MilestoneProgress[StepAccepted])); err != nil {
		var perr *db.PersistenceError
		if !errors.As(err, &perr) {
			err = &db.PersistenceError{Op: "update job", Message: "could not mark job processing", Cause: err}
		}
		return nil, err
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		message := "waiting for a generation slot: " + err.Error()
		g.recordFailure(ctx, req.JobID, message, log)
		return nil, &GenerationError{Message: message, Cause: err}
	}
	defer g.sem.Release(1)

	start := time.Now()
	defer func() { g.metrics.ObserveDuration(time.Since(start)) }()

	tracker := newProgressTracker(g.jobs, req.JobID, MilestoneProgress[StepAccepted], log, g.onProgress)
	charts := ChartSelectors(req.Params.Level, req.Selectors, req.Params.CampaignIDs, req.Params.LocationIDs)
	log.Info("starting report generation", "charts", len(charts), "level", req.Params.Level.Normalize())

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= g.opts.MaxRetries; attempt++ {
		attempts = attempt
		tracker.setAttempt(attempt)

		result, err := g.attempt(ctx, req, key, attempt, charts, tracker)
		if err == nil {
			g.metrics.ObserveAttempt(observability.OutcomeSuccess)
			result.Attempts = attempt
			log.Info("report generated", "attempt", attempt, "url", result.URL, "failed_charts", len(result.FailedCharts))
			return result, nil
		}
		lastErr = err

		// The artifact is already uploaded; only the final status write failed.
		var perr *db.PersistenceError
		if errors.As(err, &perr) {
			g.metrics.ObserveAttempt(observability.OutcomeFailed)
			log.Error("failed to record completed report", "attempt", attempt, "error", err)
			return nil, &GenerationError{Message: err.Error(), Attempts: attempt, Cause: err}
		}

		if attempt >= g.opts.MaxRetries {
			g.metrics.ObserveAttempt(observability.OutcomeFailed)
			log.Error("attempt failed", "attempt", attempt, "error", err)
			break
		}
		g.metrics.ObserveAttempt(observability.OutcomeRetry)

		delay := g.opts.RetryDelay
		if isNavigationClass(err) {
			delay = g.opts.RetryDelay * time.Duration(attempt+1)
		}
		log.Warn("attempt failed, retrying", "attempt", attempt, "max_retries", g.opts.MaxRetries, "delay", delay, "error", err)
		if waitErr := sleep(ctx, delay); waitErr != nil {
			log.Warn("retry wait aborted", "error", waitErr)
			break
		}
	}

	message := lastErr.Error()
	g.recordFailure(ctx, req.JobID, message, log)
	return nil, &GenerationError{Message: message, Attempts: attempts, Cause: lastErr}
}

// recordFailure writes the Failed state, even when the caller's context is gone.
func (g *Generator) recordFailure(ctx context.Context, jobID, message string, log *observability.Logger) {
	if err := g.jobs.UpdateJob(context.WithoutCancel(ctx), jobID, types.FailedUpdate(message)); err != nil {
		log.Error("failed to record job failure", "error", err)
	}
}

// attempt runs the generation steps once with a fresh session.
func (g *Generator) attempt(ctx context.Context, req Request, key string, attempt int, charts []string, tracker *progressTracker) (*Result, error) {
	log := g.logger.With("job_id", req.JobID, "attempt", attempt)

	session, err := g.sessions.NewSession(ctx)
	if err != nil {
		return nil, &AcquisitionError{Message: "failed to launch browser", Cause: err}
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := session.Close(); err != nil {
			log.Warn("failed to close browser", "error", err)
		}
	}
	defer release()

	reportURL, err := BuildReportURL(req.BaseURL, g.opts.RenderPath, req.JobID, req.Params, g.opts.InlineParams)
	if err != nil {
		return nil, &NavigationError{Message: "could not build report url", Cause: err}
	}
	tracker.report(ctx, StepNavigating)

	if err := g.navigate(ctx, session, reportURL, log); err != nil {
		return nil, err
	}
	if err := g.awaitReady(ctx, session, log); err != nil {
		return nil, err
	}
	tracker.report(ctx, StepPageReady)

	chartResult, err := g.awaitCharts(ctx, session, charts, log)
	if err != nil {
		return nil, err
	}
	tracker.report(ctx, StepChartsReady)

	if err := sleep(ctx, g.opts.SettleDelay); err != nil {
		return nil, &RenderError{Message: "interrupted before printing", Cause: err}
	}
	pdf, err := g.renderPDF(ctx, session, log)
	if err != nil {
		return nil, err
	}
	tracker.report(ctx, StepPDFRendered)
	release()

	url, err := g.upload(ctx, key, pdf, log)
	if err != nil {
		return nil, err
	}
	tracker.report(ctx, StepUploaded)

	if err := g.jobs.UpdateJob(ctx, req.JobID, types.DownloadUpdate(url)); err != nil {
		var perr *db.PersistenceError
		if !errors.As(err, &perr) {
			err = &db.PersistenceError{Op: "update job", Message: "final status write failed", Cause: err}
		}
		return nil, err
	}
	tracker.complete()

	return &Result{URL: url, LoadedCharts: chartResult.Loaded, FailedCharts: chartResult.Failed}, nil
}

func (g *Generator) navigate(ctx context.Context, session Session, reportURL string, log *observability.Logger) error {
	variants := []navVariant{
		{strategy: browser.StrategyLoad, timeout: g.opts.NavigationTimeout, settle: g.opts.PostNavigationDelay},
		{strategy: browser.StrategyCommit, timeout: g.opts.FallbackNavigationTimeout, settle: g.opts.FallbackSettleDelay},
	}

	log.Info("opening report", "url", reportURL)
	used, _, err := TryInOrder(ctx, variants, func(ctx context.Context, _ int, v navVariant) error {
		navCtx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()
		if err := session.Navigate(navCtx, reportURL, v.strategy); err != nil {
			log.Warn("navigation strategy failed", "strategy", v.strategy, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		return &NavigationError{Message: "all navigation strategies failed", Cause: err}
	}

	if err := sleep(ctx, used.settle); err != nil {
		return &NavigationError{Message: "interrupted while the page settled", Cause: err}
	}
	return nil
}

func (g *Generator) awaitReady(ctx context.Context, session Session, log *observability.Logger) error {
	perSelector := g.opts.PageReadyTimeout / time.Duration(len(ReadySelectors))

	for _, selector := range ReadySelectors {
		waitCtx, cancel := context.WithTimeout(ctx, perSelector)
		err := session.WaitFor(waitCtx, selector)
		cancel()
		if err == nil {
			log.Debug("page ready", "selector", selector)
			return nil
		}
		if ctx.Err() != nil {
			return &PageLoadError{Message: "interrupted while waiting for the page", Cause: ctx.Err()}
		}
		log.Debug("ready selector not found", "selector", selector)
	}

	probeCtx, cancel := context.WithTimeout(ctx, perSelector)
	defer cancel()
	hasContent, err := session.HasContent(probeCtx)
	if err == nil && hasContent {
		log.Debug("page has content without a ready selector")
		return nil
	}
	return &PageLoadError{Message: "page failed to load - no valid content found", Cause: err}
}

func (g *Generator) awaitCharts(ctx context.Context, session Session, charts []string, log *observability.Logger) (ChartWaitResult, error) {
	result, err := waitForCharts(ctx, session, charts, g.opts.ChartBatchSize, g.opts.ChartBatchPause, g.opts.ChartWaitTimeout,
		func(id string, err error) {
			log.Warn("chart did not load", "chart", id, "error", err)
		})
	if err != nil {
		return ChartWaitResult{}, &ChartLoadError{Failed: charts, Total: len(charts), Cause: err}
	}

	g.metrics.AddChartFailures(len(result.Failed))
	log.Info("charts loaded", "loaded", len(result.Loaded), "total", len(charts))

	if !meetsThreshold(len(result.Loaded), len(charts), g.opts.MinChartSuccessPercent) {
		return ChartWaitResult{}, &ChartLoadError{Failed: result.Failed, Loaded: len(result.Loaded), Total: len(charts)}
	}
	return result, nil
}

func (g *Generator) renderPDF(ctx context.Context, session Session, log *observability.Logger) ([]byte, error) {
	var pdf []byte
	_, _, err := TryInOrder(ctx, PDFVariants, func(ctx context.Context, _ int, v browser.PDFOptions) error {
		pdfCtx, cancel := context.WithTimeout(ctx, g.opts.PDFTimeout)
		defer cancel()
		data, err := session.PrintPDF(pdfCtx, v)
		if err != nil {
			log.Warn("pdf variant failed", "variant", v.Name, "error", err)
			return err
		}
		log.Info("pdf generated", "variant", v.Name, "bytes", len(data))
		pdf = data
		return nil
	})
	if err != nil {
		return nil, &RenderError{Message: "all pdf variants failed", Cause: err}
	}
	return pdf, nil
}

func (g *Generator) upload(ctx context.Context, key string, pdf []byte, log *observability.Logger) (string, error) {
	var lastErr error
	for i := 1; i <= g.opts.UploadRetries; i++ {
		if i > 1 {
			if err := sleep(ctx, g.opts.UploadRetryDelay); err != nil {
				return "", &UploadError{Message: "interrupted between upload attempts", Cause: errors.Join(lastErr, err)}
			}
		}
		if err := g.artifacts.Put(ctx, key, pdf, storage.ContentTypePDF); err != nil {
			lastErr = err
			g.metrics.ObserveUpload(observability.OutcomeFailed)
			log.Warn("upload failed", "key", key, "try", i, "error", err)
			continue
		}
		g.metrics.ObserveUpload(observability.OutcomeSuccess)
		return g.artifacts.PublicURL(key), nil
	}
	return "", &UploadError{Message: fmt.Sprintf("upload failed after %d tries", g.opts.UploadRetries), Cause: lastErr}
}
