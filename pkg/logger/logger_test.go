package logger

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufferedLogger(level LogLevel, json bool) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(&Config{Level: level, Output: &buf, JSON: json, TimeFormat: "15:04:05"}), &buf
}

func TestFromContext(t *testing.T) {
	t.Run("Should return logger attached to the context", func(t *testing.T) {
		expected := NewLogger(TestConfig())
		ctx := ContextWithLogger(t.Context(), expected)
		assert.Same(t, expected, FromContext(ctx))
	})

	t.Run("Should fall back to the default logger", func(t *testing.T) {
		cases := map[string]context.Context{
			"empty":      t.Context(),
			"wrong type": context.WithValue(t.Context(), LoggerCtxKey, "not a logger"),
			"nil value":  context.WithValue(t.Context(), LoggerCtxKey, (Logger)(nil)),
		}
		for name, ctx := range cases {
			l := FromContext(ctx)
			require.NotNil(t, l, name)
			l.Info("fallback logger", "case", name)
		}
	})
}

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	t.Run("Should map every level", func(t *testing.T) {
		cases := []struct {
			level    LogLevel
			expected int
		}{
			{DebugLevel, -4},
			{InfoLevel, 0},
			{WarnLevel, 4},
			{ErrorLevel, 8},
			{DisabledLevel, 1000},
			{LogLevel("verbose"), 0},
		}
		for _, tc := range cases {
			assert.Equal(t, tc.expected, int(tc.level.ToCharmlogLevel()), "level %s", tc.level)
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write text records", func(t *testing.T) {
		l, buf := bufferedLogger(InfoLevel, false)
		l.Info("document fetched", "bytes", 42)
		assert.Contains(t, buf.String(), "document fetched")
		assert.Contains(t, buf.String(), "bytes")
	})

	t.Run("Should write JSON records", func(t *testing.T) {
		l, buf := bufferedLogger(InfoLevel, true)
		l.Info("index rebuilt", "chunks", 3)
		assert.Contains(t, buf.String(), `"msg":"index rebuilt"`)
		assert.Contains(t, buf.String(), `"chunks":3`)
	})

	t.Run("Should carry fields added with With", func(t *testing.T) {
		l, buf := bufferedLogger(InfoLevel, false)
		l.With("component", "retriever").Info("search done")
		assert.Contains(t, buf.String(), "component")
		assert.Contains(t, buf.String(), "retriever")
	})

	t.Run("Should filter below the configured level", func(t *testing.T) {
		l, buf := bufferedLogger(WarnLevel, false)
		l.Debug("debug message")
		l.Info("info message")
		l.Warn("warn message")
		l.Error("error message")
		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.NotContains(t, out, "info message")
		assert.Contains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("Should drop everything when disabled", func(t *testing.T) {
		l, buf := bufferedLogger(DisabledLevel, false)
		l.Error("error message")
		assert.Empty(t, buf.String())
	})
}

func TestConfigs(t *testing.T) {
	t.Run("Should discard output in test config", func(t *testing.T) {
		cfg := TestConfig()
		assert.Equal(t, DisabledLevel, cfg.Level)
		assert.Equal(t, io.Discard, cfg.Output)
	})

	t.Run("Should detect the test binary", func(t *testing.T) {
		assert.True(t, IsTestEnvironment())
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("Should install the logger as default", func(t *testing.T) {
		prev := GetDefault()
		t.Cleanup(func() {
			defaultMu.Lock()
			defaultLogger = prev
			defaultMu.Unlock()
		})
		l := SetupLogger("WARN", true, false)
		assert.Same(t, l, GetDefault())
	})
}
