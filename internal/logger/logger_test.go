package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.WarnLevel,
		"chatty":  zerolog.WarnLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "parseLevel(%q)", in)
	}
}

func TestInitWriter_JSONRespectsLevel(t *testing.T) {
	t.Cleanup(func() { Close() })
	var buf bytes.Buffer
	require.NoError(t, InitWriter(LogConfig{Level: "info", Format: "json"}, &buf))

	Get().Debug().Msg("hidden")
	Get().Info().Str("state", "estimating").Msg("transition")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"state":"estimating"`)
	assert.Contains(t, out, `"message":"transition"`)
}

func TestInitWriter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tally.log")
	var console bytes.Buffer
	require.NoError(t, InitWriter(LogConfig{Level: "warn", Format: "json", File: path}, &console))

	Get().Warn().Msg("ledger unavailable")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ledger unavailable")
	assert.Contains(t, console.String(), "ledger unavailable")
}
