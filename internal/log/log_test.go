package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/ozwpan/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"DEBUG", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"ERROR", logrus.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}

	for _, input := range []string{"invalid", "trace", ""} {
		_, err := parseLevel(input)
		assert.Error(t, err, "level %q", input)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l, c, err := New(config.LogConfig{Level: "info", Format: "text"}, &buf)
	require.NoError(t, err)
	assert.Nil(t, c)

	l.Debug("hidden")
	l.WithFields(map[string]interface{}{"frame": 3, "iface": "eth0"}).Info("decoded")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] decoded frame=3 iface=eth0\n")
	assert.False(t, l.IsDebugEnabled())
	assert.True(t, l.IsInfoEnabled())
}

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	l.WithError(errors.New("boom")).Warnf("source %s failed", "file")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "source file failed", entry["msg"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "loud", Format: "text"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = New(config.LogConfig{Level: "info", Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, _, err = New(config.LogConfig{
		Level:   "info",
		Format:  "text",
		Outputs: config.LogOutputsConfig{File: config.FileOutputConfig{Enabled: true}},
	}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewWithFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ozwpan.log")
	var buf bytes.Buffer

	l, c, err := New(config.LogConfig{
		Level:  "info",
		Format: "text",
		Outputs: config.LogOutputsConfig{File: config.FileOutputConfig{
			Enabled:  true,
			Path:     logPath,
			Rotation: config.RotationConfig{MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1},
		}},
	}, &buf)
	require.NoError(t, err)
	require.NotNil(t, c)

	l.Info("to both")
	require.NoError(t, c.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestGetLoggerBeforeInit(t *testing.T) {
	assert.NotNil(t, GetLogger())
}

func TestInitReplacesLogger(t *testing.T) {
	before := GetLogger()
	require.NoError(t, Init(config.LogConfig{Level: "debug", Format: "json"}))
	after := GetLogger()
	assert.NotSame(t, before, after)
	assert.True(t, after.IsDebugEnabled())
	assert.NoError(t, Close())

	assert.Error(t, Init(config.LogConfig{Level: "nope", Format: "json"}))
	assert.Same(t, after, GetLogger())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestMultiWriterContinuesPastFailure(t *testing.T) {
	var buf bytes.Buffer
	m := NewMultiWriter().Add(failingWriter{}).Add(&buf)

	n, err := m.Write([]byte("line"))
	assert.Equal(t, 4, n)
	assert.Error(t, err)
	assert.True(t, strings.HasSuffix(buf.String(), "line"))
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	require.NoError(t, err)

	old := SetLogger(l)
	defer SetLogger(old)

	GetLogger().Info("dropped")
	GetLogger().WithError(errors.New("eof")).Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept error=eof")
}
