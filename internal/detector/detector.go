// Package detector counts capuchin calls with a two-stage sliding window.
//
// Stage 1 classifies each non-overlapping outer window as a whole. Windows
// that triage positive are rescanned in short inner chunks (Stage 2); a
// window with at least one positive chunk yields one call event spanning the
// outer window.
package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/capuchin-go/internal/classifier"
	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/features"
	"github.com/tphakala/capuchin-go/internal/logger"
	"github.com/tphakala/capuchin-go/internal/myaudio"
	"github.com/tphakala/capuchin-go/internal/observability/metrics"
)

// GetLogger returns the detector package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("detector")
}

// ProgressFunc is called after each outer window with the number of windows
// finished and the total.
type ProgressFunc func(done, total int)

// Detector runs two-stage scans. It is safe for concurrent use when its
// classifier is.
type Detector struct {
	cfg        Config
	stage1     classifier.Classifier
	stage2     classifier.Classifier
	extractor  *features.Extractor
	metrics    *metrics.DetectorMetrics
	clsMetrics *metrics.ClassifierMetrics
	progress   ProgressFunc
	log        logger.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithMetrics records scan counters to m.
func WithMetrics(m *metrics.DetectorMetrics) Option {
	return func(d *Detector) { d.metrics = m }
}

// WithClassifierMetrics records per-stage inference metrics to m.
func WithClassifierMetrics(m *metrics.ClassifierMetrics) Option {
	return func(d *Detector) { d.clsMetrics = m }
}

// WithProgress installs a progress callback. In parallel scans it is called
// from worker goroutines, one call at a time.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Detector) { d.progress = fn }
}

// WithLogger replaces the package logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) { d.log = l }
}

// New validates cfg and returns a Detector. A nil classifier is a
// configuration error.
func New(cfg Config, c classifier.Classifier, opts ...Option) (*Detector, error) {
	if c == nil {
		return nil, configError(fmt.Errorf("classifier is not available"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		cfg:       cfg,
		extractor: features.NewExtractor(),
		log:       GetLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.stage1 = classifier.Instrument(c, d.clsMetrics, metrics.StageOne)
	d.stage2 = classifier.Instrument(c, d.clsMetrics, metrics.StageTwo)

	return d, nil
}

// Config returns the scan parameters.
func (d *Detector) Config() Config {
	return d.cfg
}

// windowResult is the outcome of scanning one outer window.
type windowResult struct {
	done  bool
	event *Event
	log   []string
	stats Stats
}

func (r *windowResult) logf(format string, args ...any) {
	r.log = append(r.log, fmt.Sprintf(format, args...))
}

// Detect scans a waveform. Feature and classification failures on single
// segments count as "no call" and the scan continues; when the share of
// failed classifications exceeds MaxFailureRate the scan fails instead of
// reporting a misleading count. When ctx is cancelled between outer windows
// the events found so far are returned in a partial report together with a
// cancellation error.
func (d *Detector) Detect(ctx context.Context, w *myaudio.Waveform) (*Report, error) {
	if w == nil {
		return nil, configError(fmt.Errorf("waveform is nil"))
	}
	smp, err := d.cfg.resolve(w.SampleRate)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	windows := OuterWindows(len(w.Samples), w.SampleRate, d.cfg.OuterWindowDuration)
	runID := logger.RunIDFromContext(ctx)
	log := d.log.WithContext(ctx)

	log.Info("scan started",
		logger.Float64("duration_seconds", w.Duration()),
		logger.Int("outer_windows", len(windows)),
		logger.Int("workers", d.cfg.Workers))

	if d.metrics != nil {
		d.metrics.ScanStarted()
	}

	var results []windowResult
	if d.cfg.Workers > 1 && len(windows) > 1 {
		results = d.scanParallel(ctx, w.Samples, smp, windows)
	} else {
		results = d.scanSequential(ctx, w.Samples, smp, windows)
	}

	header := fmt.Sprintf("Processing audio (two-stage sliding window): total duration %.2f seconds", w.Duration())
	report, stats, partial := assemble(header, results)
	report.Duration = w.Duration()
	report.Stats = stats
	report.Partial = partial

	status := metrics.StatusSuccess
	defer func() {
		if d.metrics != nil {
			d.metrics.RecordScan(stats.scanCounts(report.CallCount), status, time.Since(start).Seconds())
		}
	}()

	if partial {
		status = metrics.StatusCancelled
		report.Log = append(report.Log, fmt.Sprintf("Scan cancelled after %d of %d outer windows: %d calls so far", stats.Windows, len(windows), report.CallCount))
		log.Warn("scan cancelled",
			logger.Int("windows_done", stats.Windows),
			logger.Int("windows_total", len(windows)),
			logger.Int("calls", report.CallCount))
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		return report, errors.New(cause).
			Component("detector").
			Category(errors.CategoryCancellation).
			Context("windows_done", stats.Windows).
			Context("windows_total", len(windows)).
			Context("run_id", runID).
			Build()
	}

	if stats.ClassificationAttempts > 0 && stats.FailureRate() > d.cfg.MaxFailureRate {
		status = metrics.StatusError
		log.Error("scan aborted, classifier failing systematically",
			logger.Int("attempts", stats.ClassificationAttempts),
			logger.Int("failures", stats.ClassificationFailures))
		return nil, errors.Newf("%d of %d classifications failed, above the %.0f%% limit",
			stats.ClassificationFailures, stats.ClassificationAttempts, d.cfg.MaxFailureRate*100).
			Component("detector").
			Category(errors.CategoryClassification).
			Context("attempts", stats.ClassificationAttempts).
			Context("failures", stats.ClassificationFailures).
			Context("run_id", runID).
			Build()
	}

	report.Log = append(report.Log, fmt.Sprintf("Total capuchin calls detected: %d", report.CallCount))
	log.Info("scan completed",
		logger.Int("calls", report.CallCount),
		logger.Int("stage1_positives", stats.Stage1Positives),
		logger.Int("stage2_invocations", stats.Stage2Invocations),
		logger.Int("feature_failures", stats.FeatureFailures),
		logger.Int("classification_failures", stats.ClassificationFailures),
		logger.Duration("elapsed", time.Since(start)))

	return report, nil
}

// assemble merges per-window results in window order. Windows not reached
// before cancellation are left out and mark the report partial.
func assemble(header string, results []windowResult) (report *Report, stats Stats, partial bool) {
	var events []Event
	lines := []string{header}

	for i := range results {
		r := &results[i]
		if !r.done {
			partial = true
			continue
		}
		stats.add(r.stats)
		lines = append(lines, r.log...)
		if r.event != nil {
			events = append(events, *r.event)
		}
	}

	// the count comes from the per-window results, never a shared counter
	return newReport(events, lines), stats, partial
}

func (d *Detector) scanSequential(ctx context.Context, samples []float32, smp sampling, windows []Window) []windowResult {
	results := make([]windowResult, len(windows))
	for i, win := range windows {
		if ctx.Err() != nil {
			break
		}
		results[i] = d.scanWindow(samples, smp, win)
		d.reportProgress(i+1, len(windows))
	}
	return results
}

// scanParallel processes outer windows on a fixed pool of Workers
// goroutines. Each worker writes only its own result slot.
func (d *Detector) scanParallel(ctx context.Context, samples []float32, smp sampling, windows []Window) []windowResult {
	results := make([]windowResult, len(windows))

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	for i, win := range windows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = d.scanWindow(samples, smp, win)

			mu.Lock()
			done++
			d.reportProgress(done, len(windows))
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	return results
}

func (d *Detector) reportProgress(done, total int) {
	if d.progress != nil {
		d.progress(done, total)
	}
}

// scanWindow runs Stage 1 on one outer window and, when it triages
// positive, Stage 2 over its inner chunks.
func (d *Detector) scanWindow(samples []float32, smp sampling, win Window) windowResult {
	res := windowResult{done: true, stats: Stats{Windows: 1}}
	audio := samples[win.StartSample:win.EndSample]
	endTime := win.EndTime(smp.rate)

	res.logf("Outer window: start %.2fs, end %.2fs, duration %.2fs", win.StartTime, endTime, win.Duration(smp.rate))

	spec, err := d.extractor.Extract(audio, smp.rate, d.cfg.stage1Options())
	if err != nil {
		res.stats.FeatureFailures++
		res.logf("  Stage 1: no feature available (%v) - treating window as no call", err)
		d.log.Debug("stage 1 feature extraction failed",
			logger.Int("window", win.Index),
			logger.Error(err))
		return res
	}

	res.stats.ClassificationAttempts++
	p, err := d.stage1.Classify(spec)
	if err != nil {
		err = classificationError(err, "stage1", win.StartTime, endTime)
		res.stats.ClassificationFailures++
		res.logf("  Stage 1: classification failed (%v) - treating window as no call", err)
		d.log.Warn("stage 1 classification failed",
			logger.Int("window", win.Index),
			logger.Float64("start", win.StartTime),
			logger.Error(err))
		return res
	}

	if p <= d.cfg.ThresholdStage1 {
		res.logf("  Stage 1: No call indicated (p=%.3f) - skipping Stage 2", p)
		return res
	}

	res.stats.Stage1Positives++
	res.logf("  Stage 1: Call indicated (p=%.3f) - proceeding to Stage 2 inner loop", p)

	var (
		positives  []ChunkScore
		confidence float64
	)
	rate := float64(smp.rate)

	for _, c := range InnerChunks(len(audio), smp.innerSamples, smp.innerHop) {
		if c.Skip {
			res.stats.SkippedChunks++
			continue
		}

		chunkStart := win.StartTime + float64(c.StartSample)/rate
		chunkEnd := win.StartTime + float64(c.EndSample)/rate

		spec, err := d.extractor.Extract(audio[c.StartSample:c.EndSample], smp.rate, d.cfg.stage2Options())
		if err != nil {
			res.stats.FeatureFailures++
			d.log.Debug("stage 2 feature extraction failed",
				logger.Float64("chunk_start", chunkStart),
				logger.Error(err))
			continue
		}

		res.stats.Stage2Invocations++
		res.stats.ClassificationAttempts++
		p, err := d.stage2.Classify(spec)
		if err != nil {
			err = classificationError(err, "stage2", chunkStart, chunkEnd)
			res.stats.ClassificationFailures++
			res.logf("  Stage 2: chunk %.2fs-%.2fs classification failed (%v)", chunkStart, chunkEnd, err)
			d.log.Warn("stage 2 classification failed",
				logger.Float64("chunk_start", chunkStart),
				logger.Error(err))
			continue
		}

		// no early exit: every chunk is scanned
		if p > d.cfg.ThresholdStage2 {
			positives = append(positives, ChunkScore{StartTime: chunkStart, EndTime: chunkEnd, Probability: p})
			confidence = max(confidence, p)
		}
	}

	if len(positives) == 0 {
		res.logf("  Stage 2: No call event detected in outer window (despite Stage 1 indication)")
		return res
	}

	res.event = &Event{
		StartTime:  win.StartTime,
		EndTime:    endTime,
		MidTime:    (win.StartTime + endTime) / 2,
		Confidence: confidence,
		Chunks:     positives,
	}
	res.logf("  Call event detected in outer window (confidence %.3f, %d positive chunks)", confidence, len(positives))
	d.log.Debug("call event detected",
		logger.Float64("start", win.StartTime),
		logger.Float64("end", endTime),
		logger.Float64("confidence", confidence))

	return res
}

// classificationError tags a recovered classifier failure with the span it
// covered, so telemetry groups failures by stage.
func classificationError(err error, stage string, start, end float64) error {
	return errors.New(err).
		Component("detector").
		Category(errors.CategoryClassification).
		Context("stage", stage).
		WindowContext(start, end).
		Build()
}
