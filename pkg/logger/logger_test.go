package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), "log line must be JSON: %s", buf.String())
	return line
}

func TestNewWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Info().Str("merchant_id", "m-1").Msg("session created")

	line := decodeLine(t, &buf)
	assert.Equal(t, "session created", line["message"])
	assert.Equal(t, "m-1", line["merchant_id"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, ServiceName, line["service"])
	assert.Contains(t, line, "time")
	assert.NotContains(t, line, "caller")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNewWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)

	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("kept")
	assert.Equal(t, "kept", decodeLine(t, &buf)["message"])
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(NewWithWriter("info", &buf), "notifier")

	log.Info().Msg("delivered")

	line := decodeLine(t, &buf)
	assert.Equal(t, "notifier", line["component"])
	assert.Equal(t, ServiceName, line["service"])
}

func TestNew_DoesNotPanic(t *testing.T) {
	for _, pretty := range []bool{true, false} {
		log := New("error", pretty)
		log.Debug().Msg("suppressed")
	}
}
