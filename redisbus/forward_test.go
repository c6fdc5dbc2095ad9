package redisbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/austere-albatross/eventstore/internal/logger"
)

func TestForwardLogsMalformedMessages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	b := New(nil, WithChannel("test:events"), WithLogger(&logger.Logger{SugaredLogger: zap.New(core).Sugar()}))

	var got []Message

	onMsg := func(msg Message) { got = append(got, msg) }

	b.forward(`{"id":`, onMsg)
	b.forward(`{"id":"evt-1","aggregate_id":"org-1","type":"OrgCreated","version":0}`, onMsg)

	require.Len(t, got, 1)
	assert.Equal(t, "evt-1", got[0].ID)

	entries := logs.FilterMessage("malformed message").All()

	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "test:events", entries[0].ContextMap()["channel"])
	assert.Contains(t, entries[0].ContextMap(), "error")
}
