package analysis

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tphakala/capuchin-go/internal/conf"
	"github.com/tphakala/capuchin-go/internal/errors"
	"github.com/tphakala/capuchin-go/internal/logger"
	"github.com/tphakala/capuchin-go/internal/myaudio"
	"github.com/tphakala/capuchin-go/internal/observation"
)

// staleLockAge is the age after which a .processing lock file is considered
// abandoned by a crashed run.
const staleLockAge = 60 * time.Minute

// DirectorySummary totals a directory run.
type DirectorySummary struct {
	Processed int // recordings scanned in this run
	Skipped   int // already processed or locked by another run
	Failed    int
	Calls     int
}

// DirectoryAnalysis scans every WAV and FLAC file in settings.Input.Path,
// descending into subdirectories when settings.Input.Recursive is set.
// Files that already have results in the output directory are skipped.
func DirectoryAnalysis(ctx context.Context, settings *conf.Settings) error {
	if settings.Output.File.Path == "" {
		settings.Output.File.Path = "."
	}
	if err := os.MkdirAll(settings.Output.File.Path, 0o755); err != nil {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("output_dir", settings.Output.File.Path).
			Build()
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

	_, err = p.processDirectory(ctx, settings.Input.Path, settings.Input.Recursive)
	return err
}

// processDirectory walks dir and processes each pending recording. Per-file
// failures are logged and counted; cancellation stops the walk.
func (p *Pipeline) processDirectory(ctx context.Context, dir string, recursive bool) (DirectorySummary, error) {
	var summary DirectorySummary
	log := GetLogger()
	start := time.Now()

	log.Info("scanning directory", logger.String("path", dir), logger.Bool("recursive", recursive))

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !myaudio.IsSupported(path) {
			return nil
		}

		processed, calls, err := p.processPending(ctx, path)
		switch {
		case errors.IsCategory(err, errors.CategoryCancellation):
			summary.Processed++
			summary.Calls += calls
			return err
		case err != nil:
			summary.Failed++
			log.Error("error analyzing file", logger.String("file", path), logger.Error(err))
		case processed:
			summary.Processed++
			summary.Calls += calls
		default:
			summary.Skipped++
		}
		return nil
	})

	log.Info("directory analysis completed",
		logger.Int("processed", summary.Processed),
		logger.Int("skipped", summary.Skipped),
		logger.Int("failed", summary.Failed),
		logger.Int("calls", summary.Calls),
		logger.Duration("elapsed", time.Since(start)))

	if err != nil {
		if errors.IsCategory(err, errors.CategoryCancellation) {
			return summary, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return summary, errors.New(ctxErr).
				Component("analysis").
				Category(errors.CategoryCancellation).
				Context("processed", summary.Processed).
				Build()
		}
		return summary, errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Build()
	}
	return summary, nil
}

// processPending processes path unless results already exist or another run
// holds its lock file.
func (p *Pipeline) processPending(ctx context.Context, path string) (processed bool, calls int, err error) {
	if p.isProcessed(path) {
		return false, 0, nil
	}

	lockFile := p.lockPath(path)
	if info, err := os.Stat(lockFile); err == nil {
		if time.Since(info.ModTime()) < staleLockAge {
			return false, 0, nil
		}
		GetLogger().Info("removing stale lock file", logger.String("path", lockFile))
		_ = os.Remove(lockFile)
	}

	f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		// another instance is processing this file
		return false, 0, nil
	}
	_ = f.Close()
	defer os.Remove(lockFile) //nolint:errcheck // best effort

	if err := myaudio.ValidateAudioFile(path); err != nil {
		return false, 0, err
	}

	report, err := p.Process(ctx, path)
	if report != nil {
		calls = report.CallCount
	}
	return err == nil || report != nil, calls, err
}

// isProcessed reports whether results for path exist in the output directory.
func (p *Pipeline) isProcessed(path string) bool {
	out := observation.OutputPath(p.settings.Output.File.Path, path, strings.ToLower(p.settings.Output.File.Type))
	_, err := os.Stat(out)
	return err == nil
}

func (p *Pipeline) lockPath(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(p.settings.Output.File.Path, stem+".processing")
}
