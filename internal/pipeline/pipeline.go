// Package pipeline runs transcode, stretch and alignment rescaling in order,
// stopping at the first failing step.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmueller/elongate/internal/alignment"
	"github.com/fmueller/elongate/internal/audio"
	"github.com/fmueller/elongate/internal/config"
	"github.com/fmueller/elongate/internal/runner"
)

// ErrIntermediateBusy is returned when another run holds a fixed intermediate path.
var ErrIntermediateBusy = errors.New("intermediate file is locked by another run")

// Pipeline holds the tools and output sinks used by one run.
type Pipeline struct {
	Transcoder audio.Transcoder
	Stretcher  audio.TempoStretcher
	Logger     *zap.Logger
	Out        io.Writer

	// Spinner starts a progress indicator and returns its stop function.
	Spinner func(description string) func()
	// TempDir holds per-run intermediate files. Empty means os.TempDir().
	TempDir string
	NewID   func() string
}

// New builds a Pipeline wired to the tools named in cfg.
func New(cfg config.Config, logger *zap.Logger, out io.Writer) *Pipeline {
	exec := runner.New(logger)
	return &Pipeline{
		Transcoder: audio.NewFFmpegTranscoder(cfg.Transcoder, exec),
		Stretcher:  audio.NewSoundStretch(cfg.Stretcher, exec),
		Logger:     logger,
		Out:        out,
	}
}

// Run executes every step for cfg and stops at the first failure.
func (p *Pipeline) Run(ctx context.Context, cfg config.Config) error {
	if p.Transcoder == nil || p.Stretcher == nil {
		return errors.New("pipeline requires a transcoder and a stretcher")
	}

	p.PrintConfig(cfg)

	intermediate, release, err := p.acquireIntermediate(cfg)
	if err != nil {
		return err
	}
	defer release()

	log := p.log().With(zap.String("intermediate", intermediate))

	log.Info("transcoding", zap.String("tool", p.Transcoder.Name()), zap.String("input", cfg.InputFile))
	stop := p.spin("Transcoding")
	started := time.Now()
	res, err := p.Transcoder.Transcode(ctx, cfg.InputFile, intermediate)
	stop()
	if err != nil {
		log.Warn("transcode failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return fmt.Errorf("transcode: %w", err)
	}
	log.Info("transcode finished", zap.Duration("elapsed", time.Since(started)))
	p.emit(res.Stdout)

	log.Info("stretching", zap.String("tool", p.Stretcher.Name()), zap.Int("tempo", cfg.Tempo), zap.String("output", cfg.OutputFile))
	stop = p.spin("Stretching")
	started = time.Now()
	res, err = p.Stretcher.Stretch(ctx, intermediate, cfg.OutputFile, cfg.Tempo)
	stop()
	if err != nil {
		log.Warn("stretch failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return fmt.Errorf("stretch: %w", err)
	}
	log.Info("stretch finished", zap.Duration("elapsed", time.Since(started)))
	p.emit(res.Stdout)

	p.reportDurations(intermediate, cfg)

	_, err = p.RescaleAlignment(cfg)
	return err
}

// RescaleAlignment rewrites the alignment companion of the input file for the
// configured tempo.
func (p *Pipeline) RescaleAlignment(cfg config.Config) (alignment.Stats, error) {
	stats, err := alignment.RescaleFile(cfg.InputFile, cfg.Tempo, cfg.OutputFile)
	if err != nil {
		return stats, fmt.Errorf("rescale alignment: %w", err)
	}

	p.log().Info("alignment rescaled",
		zap.String("source", stats.Source),
		zap.String("target", stats.Target),
		zap.Int("lines", stats.Lines),
		zap.Float32("scale", stats.Scale),
	)
	return stats, nil
}

// PrintConfig writes the effective tempo and file names to Out.
func (p *Pipeline) PrintConfig(cfg config.Config) {
	out := p.outWriter()
	fmt.Fprintf(out, "tempo: %d\n", cfg.Tempo)
	fmt.Fprintf(out, "input file: %s\n", cfg.InputFile)
	fmt.Fprintf(out, "output file: %s\n", cfg.OutputFile)
}

func (p *Pipeline) acquireIntermediate(cfg config.Config) (string, func(), error) {
	if cfg.Intermediate != "" {
		lockPath := cfg.Intermediate + ".lock"
		lock := flock.New(lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return "", nil, fmt.Errorf("lock intermediate %s: %w", cfg.Intermediate, err)
		}
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrIntermediateBusy, cfg.Intermediate)
		}
		return cfg.Intermediate, func() {
			if err := lock.Unlock(); err != nil {
				p.log().Warn("failed to release intermediate lock", zap.String("lock", lockPath), zap.Error(err))
			}
		}, nil
	}

	dir := p.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	newID := p.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	path := filepath.Join(dir, "elongate-"+newID()+".wav")

	return path, func() {
		if cfg.KeepIntermediate {
			p.log().Info("keeping intermediate file", zap.String("path", path))
			return
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			p.log().Warn("failed to remove intermediate file", zap.String("path", path), zap.Error(err))
		}
	}, nil
}

// reportDurations logs how much the stretch changed the audio length next to
// the factor applied to the alignment timestamps.
func (p *Pipeline) reportDurations(intermediate string, cfg config.Config) {
	before, err := audio.ProbeWAV(intermediate)
	if err != nil {
		p.log().Debug("skipping duration report", zap.String("path", intermediate), zap.Error(err))
		return
	}
	after, err := audio.ProbeWAV(cfg.OutputFile)
	if err != nil {
		p.log().Debug("skipping duration report", zap.String("path", cfg.OutputFile), zap.Error(err))
		return
	}

	p.log().Info("stretched audio",
		zap.Duration("before", before.Duration),
		zap.Duration("after", after.Duration),
		zap.Float64("ratio", audio.DurationRatio(before, after)),
		zap.Float32("alignment_scale", alignment.Scale(cfg.Tempo)),
	)
}

func (p *Pipeline) emit(stdout string) {
	trimmed := strings.TrimRight(stdout, "\r\n")
	if strings.TrimSpace(trimmed) == "" {
		return
	}
	fmt.Fprintln(p.outWriter(), trimmed)
}

func (p *Pipeline) spin(description string) func() {
	if p.Spinner == nil {
		return func() {}
	}
	return p.Spinner(description)
}

func (p *Pipeline) log() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Pipeline) outWriter() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}
