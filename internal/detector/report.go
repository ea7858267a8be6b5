package detector

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/observability/metrics"
)

// ChunkScore is a Stage 2 inner chunk that exceeded the confirmation
// threshold. Times are absolute seconds in the recording.
type ChunkScore struct {
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Probability float64 `json:"probability"`
}

// Event is a confirmed call. Its bounds are those of the outer window that
// contained it; Chunks lists the positive inner chunks for diagnostics.
type Event struct {
	StartTime  float64      `json:"start_time"`
	EndTime    float64      `json:"end_time"`
	MidTime    float64      `json:"mid_time"`
	Confidence float64      `json:"confidence"`
	Chunks     []ChunkScore `json:"chunks,omitempty"`
}

// Duration returns the event length in seconds.
func (e Event) Duration() float64 {
	return e.EndTime - e.StartTime
}

// Stats counts the work done by a scan.
type Stats struct {
	Windows                int `json:"windows"`
	Stage1Positives        int `json:"stage1_positives"`
	Stage2Invocations      int `json:"stage2_invocations"`
	SkippedChunks          int `json:"skipped_chunks"`
	FeatureFailures        int `json:"feature_failures"`
	ClassificationAttempts int `json:"classification_attempts"`
	ClassificationFailures int `json:"classification_failures"`
}

func (s *Stats) add(o Stats) {
	s.Windows += o.Windows
	s.Stage1Positives += o.Stage1Positives
	s.Stage2Invocations += o.Stage2Invocations
	s.SkippedChunks += o.SkippedChunks
	s.FeatureFailures += o.FeatureFailures
	s.ClassificationAttempts += o.ClassificationAttempts
	s.ClassificationFailures += o.ClassificationFailures
}

// FailureRate returns failed classifications over attempted ones.
func (s Stats) FailureRate() float64 {
	if s.ClassificationAttempts == 0 {
		return 0
	}
	return float64(s.ClassificationFailures) / float64(s.ClassificationAttempts)
}

func (s Stats) scanCounts(calls int) metrics.ScanCounts {
	return metrics.ScanCounts{
		Windows:                s.Windows,
		Stage1Positives:        s.Stage1Positives,
		Stage2Invocations:      s.Stage2Invocations,
		Calls:                  calls,
		SkippedChunks:          s.SkippedChunks,
		FeatureFailures:        s.FeatureFailures,
		ClassificationFailures: s.ClassificationFailures,
	}
}

// Report is the result of scanning one recording.
type Report struct {
	CallCount int      `json:"call_count"`
	Events    []Event  `json:"events"`
	Log       []string `json:"log,omitempty"`
	Partial   bool     `json:"partial"`
	Duration  float64  `json:"duration_seconds"`
	Stats     Stats    `json:"stats"`
}

// NewReport assembles a report from a call count and its events. Events are
// copied and sorted by start time. The count must match the number of events.
func NewReport(callCount int, events []Event, log []string) (*Report, error) {
	if callCount != len(events) {
		return nil, errors.New(fmt.Errorf("call count %d does not match %d events", callCount, len(events))).
			Component("detector").
			Category(errors.CategoryValidation).
			Build()
	}
	return newReport(events, log), nil
}

func newReport(events []Event, log []string) *Report {
	sorted := slices.Clone(events)
	if sorted == nil {
		sorted = []Event{}
	}
	slices.SortStableFunc(sorted, func(a, b Event) int {
		return cmp.Compare(a.StartTime, b.StartTime)
	})

	return &Report{
		CallCount: len(sorted),
		Events:    sorted,
		Log:       slices.Clone(log),
	}
}
