package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("ShouldReturnLoggerStoredInContext", func(t *testing.T) {
		var buf bytes.Buffer
		expected := NewLogger(&Config{Level: DebugLevel, Output: &buf})
		ctx := ContextWithLogger(context.Background(), expected)
		got := FromContext(ctx)
		require.NotNil(t, got)
		assert.Equal(t, expected, got)
	})

	t.Run("ShouldFallBackToDefaultLogger", func(t *testing.T) {
		got := FromContext(context.Background())
		assert.Equal(t, GetDefault(), got)
	})
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: InfoLevel, Output: &buf})
	child := log.With("component", "ingest")
	child.Info("started")
	out := buf.String()
	assert.Contains(t, out, "started")
	assert.Contains(t, out, "component")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})
	log.Info("hello", "k", "v")
	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "{"), "expected JSON output, got %q", line)
	assert.Contains(t, line, `"k":"v"`)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: WarnLevel, Output: &buf})
	log.Info("dropped")
	log.Warn("kept")
	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}
