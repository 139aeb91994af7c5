package datalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"vectionlab.net/vection/config"
)

// Row is one immutable log line.
type Row []string

var (
	// FrameHeader is used by the Continuous and Wobble patterns.
	FrameHeader = Row{"FrameNum", "Time", "Vection Response"}
	// LuminanceHeader is used by the LuminanceMixture pattern.
	LuminanceHeader = Row{"FrondFrameNum", "FrondFrameLuminance", "BackFrameNum", "BackFrameLuminance", "Time", "Vection Response"}
)

// Log is an append-only, in-memory sequence of rows below one header.
// Only the tick goroutine appends to it.
type Log struct {
	header Row
	rows   []Row
}

func New(header Row) *Log {
	return &Log{header: header}
}

func (l *Log) Header() Row {
	return l.header
}

// Append adds r at the end. Empty rows are ignored.
func (l *Log) Append(r Row) {
	if len(r) == 0 {
		return
	}
	l.rows = append(l.rows, r)
}

func (l *Log) Len() int {
	return len(l.rows)
}

// Rows returns the rows in insertion order. The slice is shared, callers
// must not modify it.
func (l *Log) Rows() []Row {
	return l.rows
}

// WriteCSV writes the header followed by all rows.
func (l *Log) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(l.header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range l.rows {
		if err := cw.Write(r); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes the log to dir/name, creating dir if needed, and returns
// the full path.
func (l *Log) Save(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create log file %s: %w", path, err)
	}
	if err := l.WriteCSV(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write log file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close log file %s: %w", path, err)
	}
	return path, nil
}

// FileName builds the name a session's log is saved under, e.g.
// 20250101_120000_Natural_right_wobble_cameraSpeed4_fps10_P01_trialNumber3.csv.
// Continuous sessions report the host tick rate as their fps.
func FileName(t time.Time, s config.SessionConfig, tickRate float64) string {
	fps := s.DisplayRate
	if s.Pattern == config.Continuous {
		fps = tickRate
	}
	condition := fmt.Sprintf("%s_cameraSpeed%s_fps%s", s.Pattern, Number(s.CameraSpeed), Number(fps))
	return fmt.Sprintf("%s_Natural_%s_%s_%s_trialNumber%d.csv",
		t.Format("20060102_150405"), s.Direction, condition, s.Participant, s.TrialNumber)
}

// Int formats a frame index.
func Int(n int) string {
	return strconv.Itoa(n)
}

// Fixed formats v with the given number of decimals.
func Fixed(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// Number formats v with as few digits as needed.
func Number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Flag formats a response as 1 or 0.
func Flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Millis converts seconds on the session clock to logged milliseconds.
func Millis(seconds float64) float64 {
	return seconds * 1000
}
