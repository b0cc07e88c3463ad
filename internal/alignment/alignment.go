// Package alignment rescales the timing columns of .ali side-car files.
//
// An alignment line has exactly eight whitespace-separated cells. Cells 0 and 5
// are integer timestamps; the remaining cells pass through untouched.
package alignment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// Ext is the extension of alignment side-car files.
	Ext = ".ali"

	cellCount  = 8
	startCell  = 0
	endCell    = 5
	cellJoiner = "  "
)

// LineError reports a line that does not have exactly eight cells.
type LineError struct {
	Line  int
	Text  string
	Cells int
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d is not correct (%d cells, want %d): %s", e.Line, e.Cells, cellCount, e.Text)
}

// CellError reports a timestamp cell that is not an integer.
type CellError struct {
	Line  int
	Cell  int
	Value string
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("line %d: parse cell %d %q as integer: %v", e.Line, e.Cell, e.Value, e.Err)
}

func (e *CellError) Unwrap() error {
	return e.Err
}

// Record is one parsed alignment line: two timestamps and the six cells
// carried through unchanged.
type Record struct {
	Start  int32
	End    int32
	Fields [6]string
}

// ParseRecord parses one non-blank alignment line. Errors carry line 0; callers
// that know the position fill it in.
func ParseRecord(line string) (Record, error) {
	cells := strings.Fields(line)
	if len(cells) != cellCount {
		return Record{}, &LineError{Text: line, Cells: len(cells)}
	}

	start, err := parseCell(cells, startCell)
	if err != nil {
		return Record{}, err
	}
	end, err := parseCell(cells, endCell)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Start:  start,
		End:    end,
		Fields: [6]string{cells[1], cells[2], cells[3], cells[4], cells[6], cells[7]},
	}, nil
}

func parseCell(cells []string, idx int) (int32, error) {
	v, err := strconv.ParseInt(cells[idx], 10, 32)
	if err != nil {
		return 0, &CellError{Cell: idx, Value: cells[idx], Err: err}
	}
	return int32(v), nil
}

// Scale returns the factor applied to timestamps for a tempo percentage.
func Scale(tempo int) float32 {
	return 1.0 - float32(tempo)/100.0
}

// Rescale multiplies both timestamps by scale, truncating toward zero.
// Products outside the int32 range saturate.
func (r Record) Rescale(scale float32) Record {
	r.Start = saturate(float32(r.Start) * scale)
	r.End = saturate(float32(r.End) * scale)
	return r
}

func saturate(v float32) int32 {
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

// String formats the record as an alignment line.
func (r Record) String() string {
	cells := []string{
		strconv.FormatInt(int64(r.Start), 10),
		r.Fields[0], r.Fields[1], r.Fields[2], r.Fields[3],
		strconv.FormatInt(int64(r.End), 10),
		r.Fields[4], r.Fields[5],
	}
	return strings.Join(cells, cellJoiner)
}

// Rescale rescales every non-blank line of src. Blank lines are dropped and
// the first malformed line aborts the whole pass.
func Rescale(src io.Reader, tempo int) ([]string, error) {
	scale := Scale(tempo)
	reader := bufio.NewReader(src)

	var out []string
	lineNo := 0
	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		if readErr == io.EOF && line == "" {
			return out, nil
		}

		lineNo++
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) != "" {
			rec, err := ParseRecord(line)
			if err != nil {
				return nil, withLine(err, lineNo)
			}
			out = append(out, rec.Rescale(scale).String())
		}

		if readErr == io.EOF {
			return out, nil
		}
	}
}

func withLine(err error, lineNo int) error {
	var lineErr *LineError
	if errors.As(err, &lineErr) {
		lineErr.Line = lineNo
		return lineErr
	}
	var cellErr *CellError
	if errors.As(err, &cellErr) {
		cellErr.Line = lineNo
		return cellErr
	}
	return err
}

// CompanionPath returns the alignment file that sits beside an audio file.
func CompanionPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + Ext
}

// Stats describes a completed RescaleFile pass.
type Stats struct {
	Source string
	Target string
	Lines  int
	Scale  float32
}

// RescaleFile rewrites the alignment companion of inputAudio into the
// companion of outputAudio. The target is only replaced once every line has
// been rescaled.
func RescaleFile(inputAudio string, tempo int, outputAudio string) (Stats, error) {
	stats := Stats{
		Source: CompanionPath(inputAudio),
		Target: CompanionPath(outputAudio),
		Scale:  Scale(tempo),
	}

	src, err := os.Open(stats.Source)
	if err != nil {
		return stats, fmt.Errorf("read alignment file %s: %w", stats.Source, err)
	}
	defer src.Close()

	lines, err := Rescale(src, tempo)
	if err != nil {
		var lineErr *LineError
		var cellErr *CellError
		if errors.As(err, &lineErr) || errors.As(err, &cellErr) {
			return stats, fmt.Errorf("%s: %w", stats.Source, err)
		}
		return stats, fmt.Errorf("read alignment file %s: %w", stats.Source, err)
	}
	stats.Lines = len(lines)

	if err := writeReplace(stats.Target, []byte(strings.Join(lines, "\n"))); err != nil {
		return stats, fmt.Errorf("write alignment file %s: %w", stats.Target, err)
	}

	return stats, nil
}

func writeReplace(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
