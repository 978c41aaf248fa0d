package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("respects level", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, "warn", false)

		l.Info().Msg("hidden")
		l.Warn().Msg("shown")

		require.NotContains(t, buf.String(), "hidden")
		require.Contains(t, buf.String(), "shown")
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		l := New(&buf, "chatty", false)

		l.Debug().Msg("hidden")
		l.Info().Msg("shown")

		require.NotContains(t, buf.String(), "hidden")
		require.Contains(t, buf.String(), "shown")
	})
}

func TestSetGlobalLogger(t *testing.T) {
	t.Cleanup(func() { SetGlobalLogger(zerolog.Nop()) })

	var buf bytes.Buffer
	SetGlobalLogger(New(&buf, "debug", false))

	Debug().Str("component", "test").Msg("global")
	Ctx(context.Background()).Info().Msg("from context")

	require.Contains(t, buf.String(), `"component":"test"`)
	require.Contains(t, buf.String(), "from context")
}
