package audio

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/faiface/beep/wav"
)

// ErrInvalidWAV is returned when a file cannot be decoded as WAV.
var ErrInvalidWAV = errors.New("invalid wav file")

// WAVInfo is the header information of a decoded WAV file.
type WAVInfo struct {
	SampleRate int
	Channels   int
	Frames     int
	Duration   time.Duration
}

// ProbeWAV reads the WAV header of path. Sample data is not decoded.
func ProbeWAV(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, fmt.Errorf("open wav: %w", err)
	}

	stream, format, err := wav.Decode(f)
	if err != nil {
		_ = f.Close()
		return WAVInfo{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	defer stream.Close()

	frames := stream.Len()
	return WAVInfo{
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
		Frames:     frames,
		Duration:   format.SampleRate.D(frames),
	}, nil
}

// DurationRatio returns output/input duration, or 0 when input is empty.
func DurationRatio(input, output WAVInfo) float64 {
	if input.Duration <= 0 {
		return 0
	}
	return float64(output.Duration) / float64(input.Duration)
}
