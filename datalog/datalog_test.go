package datalog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectionlab.net/vection/config"
)

func TestLog_AppendAndWriteCSV(t *testing.T) {
	l := New(FrameHeader)
	l.Append(Row{"1", "0.000", "0"})
	l.Append(nil)
	l.Append(Row{"2", "16.667", "1"})

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []Row{{"1", "0.000", "0"}, {"2", "16.667", "1"}}, l.Rows())

	var buf bytes.Buffer
	require.NoError(t, l.WriteCSV(&buf))
	assert.Equal(t, "FrameNum,Time,Vection Response\n1,0.000,0\n2,16.667,1\n", buf.String())
}

func TestLog_Empty(t *testing.T) {
	l := New(LuminanceHeader)
	assert.Empty(t, l.Rows())

	var buf bytes.Buffer
	require.NoError(t, l.WriteCSV(&buf))
	assert.Equal(t, "FrondFrameNum,FrondFrameLuminance,BackFrameNum,BackFrameLuminance,Time,Vection Response\n", buf.String())
}

func TestLog_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	l := New(FrameHeader)
	l.Append(Row{"0", "-500.000", "0"})

	path, err := l.Save(dir, "session.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "session.csv"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "FrameNum,Time,Vection Response\n0,-500.000,0\n", string(content))
}

func TestLog_SaveFailsOnFileAsDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := New(FrameHeader).Save(blocker, "session.csv")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	ts := time.Date(2025, 3, 7, 9, 5, 2, 0, time.Local)
	s := config.SessionConfig{
		Pattern:     config.Wobble,
		Direction:   config.Right,
		CameraSpeed: 4,
		DisplayRate: 10,
		Participant: "P01",
		TrialNumber: 3,
	}
	assert.Equal(t, "20250307_090502_Natural_right_wobble_cameraSpeed4_fps10_P01_trialNumber3.csv", FileName(ts, s, 60))

	s.Pattern = config.Continuous
	s.CameraSpeed = 2.5
	assert.Equal(t, "20250307_090502_Natural_right_continuous_cameraSpeed2.5_fps60_P01_trialNumber3.csv", FileName(ts, s, 60))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "12", Int(12))
	assert.Equal(t, "0.333", Fixed(1.0/3, 3))
	assert.Equal(t, "100.0000", Fixed(100, 4))
	assert.Equal(t, "-0.500", Fixed(-0.5, 3))
	assert.Equal(t, "4", Number(4))
	assert.Equal(t, "0.25", Number(0.25))
	assert.Equal(t, "1", Flag(true))
	assert.Equal(t, "0", Flag(false))
	assert.Equal(t, 1500.0, Millis(1.5))
}
