package audio

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], "RIFF")
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], "WAVE")
	off += 4

	copy(out[off:], "fmt ")
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], "data")
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}

func TestProbeWAVReportsDuration(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "one-second.wav")
	require.NoError(t, os.WriteFile(path, makePCM16WAVForTest(make([]int16, 8000), 8000, 1), 0o644))

	info, err := ProbeWAV(path)
	require.NoError(t, err)
	require.Equal(t, 8000, info.SampleRate)
	require.Equal(t, 1, info.Channels)
	require.Equal(t, 8000, info.Frames)
	require.Equal(t, time.Second, info.Duration)
}

func TestProbeWAVStereoFrames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stereo.wav")
	require.NoError(t, os.WriteFile(path, makePCM16WAVForTest(make([]int16, 800), 800, 2), 0o644))

	info, err := ProbeWAV(path)
	require.NoError(t, err)
	require.Equal(t, 400, info.Frames)
	require.Equal(t, 500*time.Millisecond, info.Duration)
}

func TestProbeWAVRejectsNonWAV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not riff data, just text"), 0o644))

	_, err := ProbeWAV(path)
	require.True(t, errors.Is(err, ErrInvalidWAV))
}

func TestProbeWAVMissingFile(t *testing.T) {
	t.Parallel()

	_, err := ProbeWAV(filepath.Join(t.TempDir(), "absent.wav"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDurationRatio(t *testing.T) {
	t.Parallel()

	require.Zero(t, DurationRatio(WAVInfo{}, WAVInfo{Duration: time.Second}))
	require.InDelta(t, 1.25, DurationRatio(WAVInfo{Duration: 4 * time.Second}, WAVInfo{Duration: 5 * time.Second}), 1e-9)
}
