// Package audio wraps the external transcoder and tempo stretcher and reads
// WAV headers.
package audio

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/fmueller/elongate/internal/runner"
)

const (
	DefaultTranscoder = "ffmpeg"
	DefaultStretcher  = "soundstretch"
)

// Transcoder converts an input audio file into the 16-bit PCM intermediate file.
type Transcoder interface {
	Name() string
	Transcode(ctx context.Context, input, intermediate string) (runner.Result, error)
}

// TempoStretcher applies a tempo change to the intermediate file.
type TempoStretcher interface {
	Name() string
	Stretch(ctx context.Context, intermediate, output string, tempo int) (runner.Result, error)
}

// Executor runs an external binary and buffers its output.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (runner.Result, error)
}

// FFmpegTranscoder converts any input ffmpeg understands to 16-bit PCM WAV.
type FFmpegTranscoder struct {
	Binary string
	Exec   Executor
}

// NewFFmpegTranscoder falls back to ffmpeg on PATH when binary is empty.
func NewFFmpegTranscoder(binary string, exec Executor) *FFmpegTranscoder {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultTranscoder
	}
	if exec == nil {
		exec = runner.New(nil)
	}
	return &FFmpegTranscoder{Binary: binary, Exec: exec}
}

func (t *FFmpegTranscoder) Name() string {
	return t.Binary
}

// Transcode writes input to intermediate as pcm_s16le, overwriting it.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, input, intermediate string) (runner.Result, error) {
	if intermediate == "" {
		return runner.Result{}, errors.New("intermediate path is required")
	}
	return t.Exec.Run(ctx, t.Binary, TranscodeArgs(input, intermediate)...)
}

// TranscodeArgs builds "-y -i <input> -acodec pcm_s16le <intermediate>".
func TranscodeArgs(input, intermediate string) []string {
	return []string{"-y", "-i", input, "-acodec", "pcm_s16le", intermediate}
}

// SoundStretch changes tempo with SoundTouch's soundstretch utility.
type SoundStretch struct {
	Binary string
	Exec   Executor
}

// NewSoundStretch falls back to soundstretch on PATH when binary is empty.
func NewSoundStretch(binary string, exec Executor) *SoundStretch {
	if strings.TrimSpace(binary) == "" {
		binary = DefaultStretcher
	}
	if exec == nil {
		exec = runner.New(nil)
	}
	return &SoundStretch{Binary: binary, Exec: exec}
}

func (s *SoundStretch) Name() string {
	return s.Binary
}

// Stretch writes intermediate to output at tempo percent faster.
func (s *SoundStretch) Stretch(ctx context.Context, intermediate, output string, tempo int) (runner.Result, error) {
	if output == "" {
		return runner.Result{}, errors.New("output path is required")
	}
	return s.Exec.Run(ctx, s.Binary, StretchArgs(intermediate, output, tempo)...)
}

// StretchArgs builds "<intermediate> <output> -tempo=<tempo>".
func StretchArgs(intermediate, output string, tempo int) []string {
	return []string{intermediate, output, "-tempo=" + strconv.Itoa(tempo)}
}
