package benchmark

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/capuchin-go/internal/classifier"
	"github.com/tphakala/capuchin-go/internal/conf"
	"github.com/tphakala/capuchin-go/internal/features"
)

// duration holds the run length of each benchmark pass
var duration time.Duration

func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Run classifier inference benchmark",
		Long:  "Measures Stage 1 inference time with and without the XNNPACK delegate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration < time.Second {
				return fmt.Errorf("benchmark duration must be at least 1s, got %s", duration)
			}
			return runBenchmark(cmd.Context(), settings)
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 15*time.Second, "run length of each benchmark pass")

	return cmd
}

func runBenchmark(ctx context.Context, settings *conf.Settings) error {
	var xnnpackResults, standardResults benchmarkResults

	spec, err := silentWindow(settings)
	if err != nil {
		return err
	}

	// First run with XNNPACK
	fmt.Println("🚀 Testing with XNNPACK delegate:")
	settings.Model.XNNPACK = true
	if err := runInferenceBenchmark(ctx, settings, spec, &xnnpackResults); err != nil {
		fmt.Printf("❌ XNNPACK benchmark failed: %v\n", err)
	}

	// Then run without XNNPACK
	fmt.Println("\n🐌 Testing standard CPU inference:")
	settings.Model.XNNPACK = false
	if err := runInferenceBenchmark(ctx, settings, spec, &standardResults); err != nil {
		return fmt.Errorf("❌ standard CPU inference benchmark failed: %w", err)
	}

	fmt.Printf("\nResults:\n")
	fmt.Printf("Method         Inference Time   Throughput\n")
	fmt.Printf("─────────────  ───────────────  ──────────────────────\n")
	printResult("Standard", standardResults)
	printResult("XNNPACK", xnnpackResults)
	fmt.Printf("─────────────  ───────────────  ──────────────────────\n")

	// Only show comparison if both tests succeeded
	if xnnpackResults.totalInferences > 0 && standardResults.totalInferences > 0 {
		standard := float64(standardResults.avgTime.Microseconds())
		xnnpack := float64(xnnpackResults.avgTime.Microseconds())
		fmt.Printf("\n🚀 Speed improvement with XNNPACK: %.1f%%\n", (standard-xnnpack)/standard*100)

		rating, description := getPerformanceRating(xnnpackResults.avgTime)
		fmt.Printf("System Rating: %s, %s\n", rating, description)
	}

	return nil
}

// benchmarkResults stores benchmark metrics
type benchmarkResults struct {
	totalInferences     int
	avgTime             time.Duration // average time per inference call
	inferencesPerSecond float64
}

func printResult(method string, r benchmarkResults) {
	if r.totalInferences == 0 {
		fmt.Printf("%-13s  ❌ Failed\n", method)
		return
	}
	fmt.Printf("%-13s  %6.1f ms         %6.2f inferences/sec\n",
		method, float64(r.avgTime.Microseconds())/1000, r.inferencesPerSecond)
}

// silentWindow builds the Stage 1 input for one outer window of silence.
func silentWindow(settings *conf.Settings) (*features.Spectrogram, error) {
	d := settings.Detector
	opts := features.Options{
		NMels:        d.NMels,
		NFFT:         d.NFFT,
		HopLength:    d.HopLength,
		TargetFrames: d.Stage1Frames,
		PadValue:     float32(d.PadValue),
	}
	samples := make([]float32, int(d.OuterWindow*conf.SampleRate))
	return features.NewExtractor().Extract(samples, conf.SampleRate, opts)
}

func runInferenceBenchmark(ctx context.Context, settings *conf.Settings, spec *features.Spectrogram, results *benchmarkResults) error {
	model, err := classifier.NewTFLite(classifier.TFLiteOptions{
		ModelPath: settings.Model.Path,
		Threads:   settings.Model.Threads,
		XNNPACK:   settings.Model.XNNPACK,
		Strict:    settings.Model.Strict,
		MelBins:   settings.Model.InputMel,
	})
	if err != nil {
		return fmt.Errorf("failed to load classifier: %w", err)
	}
	defer model.Close()

	fmt.Printf("⏳ Running benchmark for %s...\n", duration)

	startTime := time.Now()
	var totalDuration time.Duration
	var totalInferences int

	for time.Since(startTime) < duration {
		if ctx.Err() != nil {
			break
		}

		inferenceStart := time.Now()
		if _, err := model.Classify(spec); err != nil {
			return fmt.Errorf("prediction failed: %w", err)
		}
		totalDuration += time.Since(inferenceStart)
		totalInferences++

		if totalInferences%10 == 0 {
			avgTime := totalDuration / time.Duration(totalInferences)
			fmt.Printf("\r🔄 Inferences: \033[1;36m%d\033[0m, Average time: \033[1;33m%.1fms\033[0m",
				totalInferences, float64(avgTime.Microseconds())/1000)
		}
	}
	fmt.Println()

	if totalInferences == 0 {
		return fmt.Errorf("no inferences completed")
	}

	results.totalInferences = totalInferences
	results.avgTime = totalDuration / time.Duration(totalInferences)
	results.inferencesPerSecond = float64(totalInferences) / totalDuration.Seconds()
	return nil
}

// getPerformanceRating rates a Stage 1 inference time. A 6 second window
// scanned in under 100 ms keeps a day of audio under a few minutes.
func getPerformanceRating(avg time.Duration) (rating, description string) {
	switch {
	case avg < 10*time.Millisecond:
		return "🏆 Excellent", "a day of recordings in well under a minute"
	case avg < 50*time.Millisecond:
		return "✅ Good", "suitable for large archives"
	case avg < 100*time.Millisecond:
		return "👍 Fair", "suitable for nightly batch runs"
	default:
		return "⚠️ Slow", "consider enabling more threads or XNNPACK"
	}
}
