// model.go: persisted detection runs
package datastore

import (
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/capuchin-go/internal/detector"
)

// Run is one scanned recording.
type Run struct {
	ID              string  `gorm:"primaryKey;size:36"`
	Source          string  `gorm:"index:idx_runs_source"` // node that ran the scan
	InputFile       string  `gorm:"index:idx_runs_input"`
	DurationSeconds float64 // recording length
	CallCount       int
	Partial         bool // scan was cancelled before the last window
	ThresholdStage1 float64
	ThresholdStage2 float64
	Seed            int64
	ProcessingTime  time.Duration
	CreatedAt       time.Time   `gorm:"index:idx_runs_created_at"`
	Events          []CallEvent `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE"`
}

// CallEvent is a detected call belonging to a Run.
type CallEvent struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index;size:36;not null"`
	CallIndex  int    // 1-based position in the run
	StartTime  float64
	EndTime    float64
	MidTime    float64
	Confidence float64
}

// RunParams are the scan settings recorded with a run.
type RunParams struct {
	ThresholdStage1 float64
	ThresholdStage2 float64
	Seed            int64
	ProcessingTime  time.Duration
}

// NewRun converts a report into a Run with a fresh random ID.
func NewRun(source, inputFile string, report *detector.Report, params RunParams) *Run {
	run := &Run{
		ID:              uuid.NewString(),
		Source:          source,
		InputFile:       inputFile,
		DurationSeconds: report.Duration,
		CallCount:       report.CallCount,
		Partial:         report.Partial,
		ThresholdStage1: params.ThresholdStage1,
		ThresholdStage2: params.ThresholdStage2,
		Seed:            params.Seed,
		ProcessingTime:  params.ProcessingTime,
		Events:          make([]CallEvent, 0, len(report.Events)),
	}

	for i, e := range report.Events {
		run.Events = append(run.Events, CallEvent{
			RunID:      run.ID,
			CallIndex:  i + 1,
			StartTime:  e.StartTime,
			EndTime:    e.EndTime,
			MidTime:    e.MidTime,
			Confidence: e.Confidence,
		})
	}
	return run
}
