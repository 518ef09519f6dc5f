package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithWriter(t *testing.T) {
	t.Run("writes JSON with component field", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, InitWithWriter(Config{Level: "info"}, &buf))

		l := WithComponent("poller")
		l.Info().Str("task", "dashboard").Msg("tick")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "poller", entry["component"])
		assert.Equal(t, "dashboard", entry["task"])
		assert.Equal(t, "tick", entry["message"])
	})

	t.Run("filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, InitWithWriter(Config{Level: "warn"}, &buf))

		l := Get()
		l.Info().Msg("hidden")
		assert.Zero(t, buf.Len())

		l.Warn().Msg("shown")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("debug flag overrides level", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, InitWithWriter(Config{Level: "error", Debug: true}, &buf))

		l := Get()
		l.Debug().Msg("dbg")
		assert.Contains(t, buf.String(), "dbg")
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, InitWithWriter(Config{Level: "loud"}, &buf))
	})
}

func TestNop(t *testing.T) {
	l := Nop()
	// must not panic or write anywhere
	l.Error().Msg("discarded")
}
