package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestInfoCarriesEnvelope(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter("driver-agent", &buf)

	ctx := WithDeliveryID(WithRequestID(context.Background(), "req-1"), "del-9")
	log.Info(ctx, "delivery_accepted", " Delivery accepted ", map[string]any{"status": "assigned"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "driver-agent", entry["service"])
	assert.Equal(t, "delivery_accepted", entry["action"])
	assert.Equal(t, "Delivery accepted", entry["message"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "del-9", entry["delivery_id"])
	assert.NotEmpty(t, entry["timestamp"])
	assert.NotEmpty(t, entry["hostname"])
}

func TestErrorAttachesStack(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter("driver-agent", &buf)

	log.Error(context.Background(), "", "boom", errors.New("network down"), nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "unspecified", lines[0]["action"])
	errObj, ok := lines[0]["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "network down", errObj["msg"])
	assert.NotEmpty(t, errObj["stack"])
}

func TestNilLoggerIsSafe(t *testing.T) {
	var log *Logger
	assert.NotPanics(t, func() {
		log.Info(context.Background(), "x", "y", nil)
	})
}
