package classifier

import (
	"time"

	"github.com/tphakala/capuchin-go/internal/features"
	"github.com/tphakala/capuchin-go/internal/observability/metrics"
)

// Instrumented records inference duration and outcome for every call to the
// wrapped classifier.
type Instrumented struct {
	next    Classifier
	metrics *metrics.ClassifierMetrics
	stage   string
}

// Instrument wraps c so its calls are recorded under stage. A nil metrics
// value returns c unchanged.
func Instrument(c Classifier, m *metrics.ClassifierMetrics, stage string) Classifier {
	if m == nil {
		return c
	}
	return &Instrumented{next: c, metrics: m, stage: stage}
}

// Classify implements Classifier.
func (i *Instrumented) Classify(spec *features.Spectrogram) (float64, error) {
	start := time.Now()
	p, err := i.next.Classify(spec)
	i.metrics.RecordInference(i.stage, time.Since(start).Seconds(), err)
	return p, err
}
