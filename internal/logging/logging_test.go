package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"loud":    zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "journal.log")
	logger := NewLoggerWithConfig(LogConfig{Level: "warn", File: true, FilePath: path, MaxSize: 1})

	logger.Info().Msg("hidden")
	logger.Warn().Str("profile", "tradovate").Msg("shown")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), `"profile":"tradovate"`)
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	attached := zerolog.New(&buf)
	fallback := zerolog.Nop()

	got := FromContext(WithLogger(context.Background(), attached), fallback)
	got.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")

	buf.Reset()
	got = FromContext(context.Background(), fallback)
	got.Info().Msg("nowhere")
	assert.Empty(t, buf.String())
}

func TestImportEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := WithAccount(WithProfile(zerolog.New(&buf), "ninjatrader"), "sim")

	LogImport(logger, "trades.csv", "ninjatrader", 10, 8, 2)
	LogReconcile(logger, "sim", 5, 3, 40*time.Millisecond, errors.New("disk full"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &parsed))
	assert.Equal(t, "import", parsed["event"])
	assert.Equal(t, "sim", parsed["account"])
	assert.EqualValues(t, 2, parsed["dropped"])

	parsed = nil
	require.NoError(t, json.Unmarshal(lines[1], &parsed))
	assert.Equal(t, "error", parsed["level"])
	assert.Equal(t, "disk full", parsed["error"])
	assert.EqualValues(t, 5, parsed["created"])
}
