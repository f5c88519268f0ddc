package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	testCases := []struct {
		level       string
		expectDebug bool
		expectInfo  bool
		expectWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"WARNING", false, false, true},
		{"bogus", false, true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")

			out := buf.String()
			if tc.expectDebug {
				assert.Contains(t, out, "debug message")
			} else {
				assert.NotContains(t, out, "debug message")
			}
			if tc.expectInfo {
				assert.Contains(t, out, "info message")
			} else {
				assert.NotContains(t, out, "info message")
			}
			if tc.expectWarn {
				assert.Contains(t, out, "warn message")
			}
		})
	}
}

func TestContextLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("info", buf)

	ctx := logging.With(context.Background(), logger)
	logging.From(ctx).Info("from context")
	assert.Contains(t, buf.String(), "from context")

	assert.Same(t, logging.Default(), logging.From(context.Background()))
}

func TestSetDefault(t *testing.T) {
	orig := logging.Default()
	defer logging.SetDefault(orig)

	buf := &bytes.Buffer{}
	logging.SetDefault(logging.New("info", buf))
	logging.Default().Info("replaced")
	assert.Contains(t, buf.String(), "replaced")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("debug"))
	assert.Equal(t, slog.LevelError, logging.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel(""))
}

func TestNewJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logging.NewJSON("info", buf).Info("server.start", "addr", ":8080")
	assert.Contains(t, buf.String(), `"msg":"server.start"`)
}
