package main

import (
	"fmt"
	"math"

	"gorm.io/gorm"

	"github.com/tphakala/capuchin-go/internal/datastore"
)

// Verifier performs post-migration verification.
type Verifier struct {
	sourceDB *gorm.DB
	targetDB *gorm.DB
}

// NewVerifier creates a new Verifier.
func NewVerifier(sourceDB, targetDB *gorm.DB) *Verifier {
	return &Verifier{sourceDB: sourceDB, targetDB: targetDB}
}

// Verify compares row counts and a sample of runs with their events.
func (v *Verifier) Verify() error {
	if err := v.verifyCounts(); err != nil {
		return fmt.Errorf("count verification failed: %w", err)
	}
	if err := v.sampleRuns(5); err != nil {
		return fmt.Errorf("sample verification failed: %w", err)
	}
	return nil
}

// verifyCounts requires the target to hold at least the source rows; it may
// hold more when several devices export into it.
func (v *Verifier) verifyCounts() error {
	tables := []struct {
		name  string
		model any
	}{
		{"runs", &datastore.Run{}},
		{"call_events", &datastore.CallEvent{}},
	}

	for _, t := range tables {
		var sourceCount, targetCount int64
		if err := v.sourceDB.Model(t.model).Count(&sourceCount).Error; err != nil {
			return fmt.Errorf("failed to count source %s: %w", t.name, err)
		}
		if err := v.targetDB.Model(t.model).Count(&targetCount).Error; err != nil {
			return fmt.Errorf("failed to count target %s: %w", t.name, err)
		}
		if targetCount < sourceCount {
			return fmt.Errorf("%s: target has %d rows, source has %d", t.name, targetCount, sourceCount)
		}
	}
	return nil
}

// sampleRuns checks the latest runs field by field, events included.
func (v *Verifier) sampleRuns(count int) error {
	var sourceRuns []datastore.Run
	if err := v.sourceDB.Preload("Events", byCallIndex).Order("created_at DESC").Limit(count).Find(&sourceRuns).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}

	for i := range sourceRuns {
		src := &sourceRuns[i]
		var target datastore.Run
		if err := v.targetDB.Preload("Events", byCallIndex).First(&target, "id = ?", src.ID).Error; err != nil {
			return fmt.Errorf("run %s not found in target: %w", src.ID, err)
		}

		if src.InputFile != target.InputFile || src.CallCount != target.CallCount {
			return fmt.Errorf("run %s: mismatch (%s, %d calls vs %s, %d calls)",
				src.ID, src.InputFile, src.CallCount, target.InputFile, target.CallCount)
		}
		if len(src.Events) != len(target.Events) {
			return fmt.Errorf("run %s: %d events in source, %d in target", src.ID, len(src.Events), len(target.Events))
		}
		for j := range src.Events {
			if math.Abs(src.Events[j].Confidence-target.Events[j].Confidence) > 1e-9 {
				return fmt.Errorf("run %s: event %d confidence mismatch", src.ID, src.Events[j].CallIndex)
			}
		}
	}
	return nil
}

func byCallIndex(db *gorm.DB) *gorm.DB {
	return db.Order("call_index")
}
