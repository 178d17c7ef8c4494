package logger

import (
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWatermillAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	wm := l.Watermill().With(watermill.LogFields{"topic": "webhooks"})
	wm.Info("subscriber started", watermill.LogFields{"subscriber": "delivery"})
	wm.Error("handler failed", errors.New("endpoint down"), nil)
	wm.Trace("ignored", nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "webhooks", entries[0].ContextMap()["topic"])
	assert.Equal(t, "delivery", entries[0].ContextMap()["subscriber"])

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "webhooks", entries[1].ContextMap()["topic"])
	assert.Equal(t, "endpoint down", entries[1].ContextMap()["error"])
}
