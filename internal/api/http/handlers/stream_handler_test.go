package handlers

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/staffchat/internal/broadcast"
)

func TestWriteEvent(t *testing.T) {
	env, err := broadcast.NewEnvelope(broadcast.EventTyping, "room:general", map[string]any{"typing": true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeEvent(&buf, env))
	assert.Equal(t, "event: typing\ndata: {\"typing\":true}\n\n", buf.String())
}
