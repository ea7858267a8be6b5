package mqtt

import (
	"time"

	"github.com/tphakala/capuchin-go/internal/detector"
)

// CallSummaryDTO is the payload published after each scanned recording.
//
// Field names are part of the published contract; add fields, do not rename.
type CallSummaryDTO struct {
	RunID           string    `json:"runId"`
	Source          string    `json:"source"`
	File            string    `json:"file"`
	DurationSeconds float64   `json:"durationSeconds"`
	CallCount       int       `json:"callCount"`
	Partial         bool      `json:"partial,omitempty"`
	Calls           []CallDTO `json:"calls"`
	Timestamp       string    `json:"timestamp"` // RFC3339
}

// CallDTO is one detected call.
type CallDTO struct {
	StartTime  float64 `json:"startTime"`
	EndTime    float64 `json:"endTime"`
	MidTime    float64 `json:"midTime"`
	Confidence float64 `json:"confidence"`
}

// NewCallSummaryDTO converts a report into its published form.
func NewCallSummaryDTO(runID, source, file string, report *detector.Report, now time.Time) CallSummaryDTO {
	calls := make([]CallDTO, 0, len(report.Events))
	for _, e := range report.Events {
		calls = append(calls, CallDTO{
			StartTime:  e.StartTime,
			EndTime:    e.EndTime,
			MidTime:    e.MidTime,
			Confidence: e.Confidence,
		})
	}

	return CallSummaryDTO{
		RunID:           runID,
		Source:          source,
		File:            file,
		DurationSeconds: report.Duration,
		CallCount:       report.CallCount,
		Partial:         report.Partial,
		Calls:           calls,
		Timestamp:       now.UTC().Format(time.RFC3339),
	}
}
