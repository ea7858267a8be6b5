package analysis

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/tphakala/capuchin-go/internal/conf"
	"github.com/tphakala/capuchin-go/internal/detector"
	"github.com/tphakala/capuchin-go/internal/logger"
	"github.com/tphakala/capuchin-go/internal/myaudio"
)

// FileAnalysis detects capuchin calls in the audio file at settings.Input.Path
// and writes the results as configured.
func FileAnalysis(ctx context.Context, settings *conf.Settings) error {
	if err := myaudio.ValidateAudioFile(settings.Input.Path); err != nil {
		return err
	}

	p, err := NewPipeline(settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			GetLogger().Warn("failed to close pipeline", logger.Error(err))
		}
	}()

	_, err = p.Process(ctx, settings.Input.Path)
	return err
}

// truncateFilename truncates the filename to 30 characters if it's longer.
func truncateFilename(path string) string {
	filename := filepath.Base(path)
	if len(filename) > 30 {
		return filename[:27] + "..."
	}
	return filename
}

// progressPrinter renders a single, continuously rewritten progress line.
type progressPrinter struct {
	w        io.Writer
	filename string
	duration time.Duration
	start    time.Time
}

func newProgressPrinter(w io.Writer, path string, seconds float64, start time.Time) *progressPrinter {
	return &progressPrinter{
		w:        w,
		filename: truncateFilename(path),
		duration: time.Duration(seconds * float64(time.Second)),
		start:    start,
	}
}

func (pp *progressPrinter) update(done, total int) {
	fmt.Fprintf(pp.w, "\r\033[K\033[37m📄 %s [%s]\033[0m | \033[33m🔍 Analyzing window %d/%d\033[0m %s",
		pp.filename,
		pp.duration.Round(time.Second),
		done,
		total,
		estimateTimeRemaining(pp.start, done, total))
}

func printCompleted(w io.Writer, path string, seconds float64, elapsed time.Duration, report *detector.Report) {
	status := "\033[32m✅ Analysis completed"
	if report.Partial {
		status = "\033[33m⚠️ Analysis cancelled"
	}
	fmt.Fprintf(w, "\r\033[K\033[37m📄 %s [%s]\033[0m | %s in %s, %d calls\033[0m\n",
		truncateFilename(path),
		time.Duration(seconds*float64(time.Second)).Round(time.Second),
		status,
		formatDuration(elapsed),
		report.CallCount)
}

// estimateTimeRemaining extrapolates the remaining time from the average
// time per finished window.
func estimateTimeRemaining(start time.Time, done, total int) string {
	if done <= 0 || done >= total {
		return ""
	}
	perWindow := time.Since(start) / time.Duration(done)
	remaining := perWindow * time.Duration(total-done)
	return fmt.Sprintf("[%s remaining]", formatDuration(remaining))
}

// formatDuration renders d as seconds below a minute, otherwise as minutes
// and seconds.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
