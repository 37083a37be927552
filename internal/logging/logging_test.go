package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Debug(context.Background(), "dropped")
	log.With(String("fader", "ut1")).Info(context.Background(), "sample", Float("gainDb", -3.5), Int("state", 2))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	entry := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "sample", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "ut1", entry["fader"])
	assert.Equal(t, -3.5, entry["gainDb"])
	assert.Equal(t, 2.0, entry["state"])
}

func TestTextLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warning", Output: &buf})

	log.Info(context.Background(), "quiet")
	log.Warn(context.Background(), "loud", Any("set", 3))
	log.Error(context.Background(), "louder")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "msg=loud")
	assert.Contains(t, out, "set=3")
	assert.Contains(t, out, "level=ERROR")
}

func TestNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		log := OrNoop(nil)
		log.With(String("k", "v")).Error(context.Background(), "nothing")
	})

	var buf bytes.Buffer
	log := New(Config{Output: &buf})
	assert.Same(t, log, OrNoop(log))
}
