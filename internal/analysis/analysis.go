// Package analysis runs capuchin call detection over audio files and
// directories and delivers the results to the configured outputs.
package analysis

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/capuchin-go/internal/classifier"
	"github.com/tphakala/capuchin-go/internal/conf"
	"github.com/tphakala/capuchin-go/internal/datastore"
	"github.com/tphakala/capuchin-go/internal/detector"
	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/logger"
	"github.com/tphakala/capuchin-go/internal/mqtt"
	"github.com/tphakala/capuchin-go/internal/myaudio"
	"github.com/tphakala/capuchin-go/internal/observability"
	"github.com/tphakala/capuchin-go/internal/observation"
)

// deliveryTimeout bounds persistence and publishing of one report. Delivery
// runs detached from the scan context so partial reports are still stored.
const deliveryTimeout = 30 * time.Second

// Pipeline loads recordings, scans them and delivers reports. A Pipeline
// processes one recording at a time.
type Pipeline struct {
	settings  *conf.Settings
	model     classifier.Classifier
	cfg       detector.Config
	metrics   *observability.Metrics
	endpoint  *observability.Endpoint
	store     datastore.Interface
	publisher *mqtt.Publisher
	retry     RetryConfig

	stdout   io.Writer // table output when no output directory is set
	progress io.Writer // progress line, nil to disable
}

// NewPipeline loads the classifier model and opens the configured outputs.
func NewPipeline(settings *conf.Settings) (*Pipeline, error) {
	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	model, err := classifier.NewTFLite(classifier.TFLiteOptions{
		ModelPath: settings.Model.Path,
		Threads:   settings.Model.Threads,
		XNNPACK:   settings.Model.XNNPACK,
		Strict:    settings.Model.Strict,
		MelBins:   settings.Model.InputMel,
	})
	m.Classifier.RecordModelLoad(err)
	if err != nil {
		return nil, err
	}

	GetLogger().Info("classifier model loaded",
		logger.String("path", settings.Model.Path),
		logger.Int("threads", model.Threads()),
		logger.Bool("strict", settings.Model.Strict),
		logger.Int64("seed", settings.Model.Seed))

	p, err := newPipeline(settings, model, m)
	if err != nil {
		model.Close()
		return nil, err
	}
	p.progress = os.Stderr
	return p, nil
}

// newPipeline wires a pipeline around an already loaded classifier.
func newPipeline(settings *conf.Settings, model classifier.Classifier, m *observability.Metrics) (*Pipeline, error) {
	p := &Pipeline{
		settings: settings,
		model:    model,
		cfg:      detector.ConfigFromSettings(&settings.Detector),
		metrics:  m,
		retry:    defaultRetryConfig(),
		stdout:   os.Stdout,
	}

	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	if store := datastore.New(settings, m.Datastore); store != nil {
		if err := store.Open(); err != nil {
			return nil, err
		}
		p.store = store
	}

	if settings.Output.MQTT.Enabled {
		mqttCfg := mqtt.ConfigFromSettings(settings)
		client, err := mqtt.NewClient(mqttCfg, m.MQTT)
		if err != nil {
			p.closeOutputs()
			return nil, err
		}
		p.publisher = mqtt.NewPublisher(client, mqttCfg.Topic)
	}

	if settings.Metrics.Listen != "" {
		endpoint, err := observability.NewEndpoint(settings.Metrics.Listen, m)
		if err == nil {
			err = endpoint.Start()
		}
		if err != nil {
			p.closeOutputs()
			return nil, errors.New(err).
				Component("analysis").
				Category(errors.CategoryConfiguration).
				Context("listen", settings.Metrics.Listen).
				Build()
		}
		p.endpoint = endpoint
	}

	return p, nil
}

// Process scans one recording and delivers its report. When the scan is
// cancelled the partial report is still delivered and the cancellation error
// is returned with it.
func (p *Pipeline) Process(ctx context.Context, path string) (*detector.Report, error) {
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	log := GetLogger().WithContext(ctx)
	start := time.Now()

	w, err := myaudio.Load(path, conf.SampleRate)
	if err != nil {
		return nil, err
	}

	opts := []detector.Option{
		detector.WithMetrics(p.metrics.Detector),
		detector.WithClassifierMetrics(p.metrics.Classifier),
	}
	if p.progress != nil {
		opts = append(opts, detector.WithProgress(newProgressPrinter(p.progress, path, w.Duration(), start).update))
	}

	det, err := detector.New(p.cfg, p.model, opts...)
	if err != nil {
		return nil, err
	}

	report, scanErr := det.Detect(ctx, w)
	if report == nil {
		return nil, scanErr
	}
	elapsed := time.Since(start)

	if p.progress != nil {
		printCompleted(p.progress, path, w.Duration(), elapsed, report)
	}

	if err := p.writeResults(path, report); err != nil {
		return report, err
	}

	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()
	p.persist(deliverCtx, runID, path, report, elapsed)
	p.publish(deliverCtx, runID, path, report)

	log.Info("recording processed",
		logger.String("file", filepath.Base(path)),
		logger.Int("calls", report.CallCount),
		logger.Bool("partial", report.Partial),
		logger.Duration("elapsed", elapsed))

	return report, scanErr
}

// writeResults writes the report to the output directory, or to stdout when
// none is configured.
func (p *Pipeline) writeResults(path string, report *detector.Report) error {
	format := strings.ToLower(p.settings.Output.File.Type)
	name := filepath.Base(path)

	if p.settings.Output.Log.Enabled {
		if err := observation.AppendScanLog(p.settings.Output.Log.Path, name, report); err != nil {
			GetLogger().Warn("failed to append scan log", logger.Error(err))
		}
	}

	if p.settings.Output.File.Path == "" {
		return observation.Write(p.stdout, format, name, report)
	}
	return observation.WriteFile(observation.OutputPath(p.settings.Output.File.Path, path, format), format, name, report)
}

// persist stores the run. Failures are logged; the report is already written.
func (p *Pipeline) persist(ctx context.Context, runID, path string, report *detector.Report, elapsed time.Duration) {
	if p.store == nil {
		return
	}

	run := datastore.NewRun(p.settings.DetectionSource(), path, report, datastore.RunParams{
		ThresholdStage1: p.cfg.ThresholdStage1,
		ThresholdStage2: p.cfg.ThresholdStage2,
		Seed:            p.settings.Model.Seed,
		ProcessingTime:  elapsed,
	})
	run.ID = runID

	if err := p.store.SaveRun(ctx, run); err != nil {
		GetLogger().WithContext(ctx).Error("failed to store run", logger.Error(err))
	}
}

// publish sends the summary to MQTT with retries. Failures are logged.
func (p *Pipeline) publish(ctx context.Context, runID, path string, report *detector.Report) {
	if p.publisher == nil {
		return
	}

	err := withRetry(ctx, p.retry, "mqtt_publish", func(ctx context.Context) error {
		return p.publisher.PublishReport(ctx, runID, p.settings.DetectionSource(), filepath.Base(path), report)
	})
	if err != nil {
		GetLogger().WithContext(ctx).Error("failed to publish detection summary", logger.Error(err))
	}
}

// Close releases the model and outputs and writes the metrics textfile.
func (p *Pipeline) Close() error {
	var errs []error

	if c, ok := p.model.(classifier.Closer); ok {
		c.Close()
	}
	if path := p.settings.Metrics.TextFile; path != "" {
		if err := p.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.closeOutputs(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (p *Pipeline) closeOutputs() error {
	var err error
	if p.publisher != nil {
		p.publisher.Close()
		p.publisher = nil
	}
	if p.store != nil {
		err = p.store.Close()
		p.store = nil
	}
	if p.endpoint != nil {
		p.endpoint.Stop()
		p.endpoint = nil
	}
	return err
}
