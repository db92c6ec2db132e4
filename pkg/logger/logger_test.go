package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel).With(String("component", "engine"))
	l.Debug("dropped")
	l.Info("prediction", String("symbol", "AAA"), Float64("confidence", 0.42), Int("peers", 2), Error(errors.New("boom")))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "prediction", entry["message"])
	assert.Equal(t, "engine", entry["component"])
	assert.Equal(t, "AAA", entry["symbol"])
	assert.Equal(t, 0.42, entry["confidence"])
	assert.Equal(t, float64(2), entry["peers"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Error("ignored", String("k", "v")) })
}
