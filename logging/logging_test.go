package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectionlab.net/vection/config"
)

type failingWriter struct{}

func (fw *failingWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func TestMonitorMode(t *testing.T) {
	require.NoError(t, Init(true, config.LogConfig{Level: "DEBUG", Format: "text"}))

	slog.Info("Initial log")

	var pane bytes.Buffer
	require.NoError(t, SetOutput(&pane))
	assert.Contains(t, pane.String(), "Initial log", "buffered records are flushed to the pane")

	slog.Info("Live log")
	assert.Contains(t, pane.String(), "Live log")

	BufferOutput()
	slog.Info("Buffered log")
	assert.NotContains(t, pane.String(), "Buffered log")

	// Close falls back to stderr for the leftover buffer; keep it quiet.
	oldStderr := os.Stderr
	devNull, _ := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	os.Stderr = devNull
	defer func() { os.Stderr = oldStderr; devNull.Close() }()
	assert.NoError(t, Close())
}

func TestPlainMode_FileLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	require.NoError(t, Init(false, config.LogConfig{Level: "INFO", Format: "json", File: logFile}))
	writer.target = &bytes.Buffer{}

	slog.Info("session log", "key", "value")
	slog.Debug("hidden")

	require.NoError(t, Close())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"session log"`)
	assert.Contains(t, string(content), `"key":"value"`)
	assert.NotContains(t, string(content), "hidden", "DEBUG is below INFO")
}

func TestSetLevel(t *testing.T) {
	require.NoError(t, Init(false, config.LogConfig{Level: "WARN"}))
	var out bytes.Buffer
	require.NoError(t, SetOutput(&out))

	slog.Info("before")
	SetLevel("debug")
	slog.Debug("after")

	assert.NotContains(t, out.String(), "before")
	assert.Contains(t, out.String(), "after")
	assert.NoError(t, Close())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("Error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestStderrFallback(t *testing.T) {
	require.NoError(t, Init(true, config.LogConfig{Level: "DEBUG", Format: "text"}))

	slog.Info("Shutdown log")

	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	var wg sync.WaitGroup
	wg.Add(1)
	var capturedOutput string
	go func() {
		defer wg.Done()
		buf := make([]byte, 1024)
		n, _ := r.Read(buf)
		capturedOutput = string(buf[:n])
	}()

	err := Close()
	w.Close()
	wg.Wait()
	os.Stderr = oldStderr

	assert.NoError(t, err)
	assert.True(t, strings.Contains(capturedOutput, "Shutdown log"), "got: %s", capturedOutput)
}

func TestErrorPropagation(t *testing.T) {
	require.NoError(t, Init(false, config.LogConfig{}))
	writer.target = &failingWriter{}

	n, err := writer.Write([]byte("x"))
	assert.Equal(t, 1, n)
	assert.Error(t, err)
}
