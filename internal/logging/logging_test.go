// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/trialmatch/pkg/types"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(types.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("stage degraded", zap.String("stage", "rank"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stage degraded", entry["msg"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "rank", entry["stage"])
	assert.Equal(t, "trialmatch", entry["service"])
	assert.Contains(t, entry, "ts")
}

func TestNewConsoleDefault(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(types.LogConfig{}, &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("listening", zap.String("addr", ":8080"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "listening")
	assert.Contains(t, out, `"addr": ":8080"`)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(types.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "log level")

	_, err = New(types.LogConfig{Format: "xml"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "log format")
}
