package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestFromContext(t *testing.T) {
	t.Run("falls back to default", func(t *testing.T) {
		assert.Same(t, Default(), FromContext(context.Background()))
	})

	t.Run("returns stored logger", func(t *testing.T) {
		var buf bytes.Buffer
		l := zerolog.New(&buf)
		ctx := WithLogger(context.Background(), &l)
		FromContext(ctx).Info().Msg("hello")
		assert.Contains(t, buf.String(), "hello")
	})
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSON(&buf)
	l.Warn().Str("component", "store").Msg("write failed")

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"component":"store"`)
	assert.Contains(t, buf.String(), `"time":`)
}

func TestNewConsole(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	l := NewConsole(&buf)
	l.Warn().Str("path", "a.csv").Msg("skipped")

	out := buf.String()
	assert.Contains(t, out, "WRN")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "path=a.csv")
	assert.NotContains(t, out, "{")
}
