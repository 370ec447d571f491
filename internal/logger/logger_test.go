package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := FromZap(zap.New(core)).With("flight_id", int64(3))

	l.Debug("hidden")
	l.Info("flight updated", "status", "EN_VUELO")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "flight updated", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(3), fields["flight_id"])
	assert.Equal(t, "EN_VUELO", fields["status"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)

	l, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	l.Info("dropped")
}
