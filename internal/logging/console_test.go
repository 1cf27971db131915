package logging

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColourMode(t *testing.T) {
	for _, s := range []string{"auto", "always", "never"} {
		m, err := ParseColourMode(s)
		require.NoError(t, err)
		assert.Equal(t, ColourMode(s), m)
	}
	_, err := ParseColourMode("sometimes")
	assert.Error(t, err)
}

func TestConsoleHandlerOutput(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(NewConsoleHandler(&sb, false, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.Info("document opened", slog.String("uri", "file:///a.hl7"), slog.Int("version", 1))

	out := sb.String()
	assert.Contains(t, out, "INF document opened")
	assert.Contains(t, out, "uri=file:///a.hl7")
	assert.Contains(t, out, "version=1")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Equal(t, 1, strings.Count(out, "\n"), "one line per record")
}

func TestConsoleHandlerLevels(t *testing.T) {
	var sb strings.Builder
	h := NewConsoleHandler(&sb, false, &slog.HandlerOptions{Level: slog.LevelWarn})
	logger := slog.New(h)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")
	logger.Error("also shown")

	out := sb.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN shown")
	assert.Contains(t, out, "ERR also shown")
}

func TestConsoleHandlerWithAttrs(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(NewConsoleHandler(&sb, false, nil)).With(slog.String("component", "watcher"))

	logger.Info("scan complete", slog.Int("files", 3))

	out := sb.String()
	assert.Contains(t, out, "component=watcher")
	assert.Contains(t, out, "files=3")
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var sb strings.Builder
	logger := slog.New(NewConsoleHandler(&sb, false, nil))
	logger.Info("msg", slog.String("err", "file not found"))
	assert.Contains(t, sb.String(), `err="file not found"`)
}
