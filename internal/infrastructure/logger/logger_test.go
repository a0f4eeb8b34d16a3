package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"WARN", zapcore.WarnLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.input), "level %q", tt.input)
	}
}

func TestNew_JSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pingboard.log")

	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("sweep completed")
	log.Debug("claimed rows") // below the configured level
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, `"msg":"sweep completed"`)
	assert.Contains(t, content, `"level":"info"`)
	assert.NotContains(t, content, "claimed rows")
}

func TestNew_ConsoleFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pingboard.log")

	log, err := New(&Config{Level: "debug", Format: "console", Output: path})
	require.NoError(t, err)

	log.Debug("messenger selected")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// console lines are tab-separated, not JSON
	assert.Contains(t, string(data), "messenger selected")
	assert.False(t, strings.HasPrefix(string(data), "{"))
}

func TestNew_DefaultsEmptyTimeFormat(t *testing.T) {
	log, err := New(&Config{Level: "info", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestBuildSink_UnwritablePathFallsBack(t *testing.T) {
	// a directory cannot be opened as a log file; New must still work
	sink := buildSink(t.TempDir())
	assert.NotNil(t, sink)
}

func TestNamed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pingboard.log")

	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	Named(log, "messenger").Info("console messenger active")
	require.NoError(t, Sync(log))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"messenger"`)
}
