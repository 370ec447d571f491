package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skytrack/internal/domain"
)

func TestParseID(t *testing.T) {
	id, err := parseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseFlightStatus(t *testing.T) {
	s, err := parseFlightStatus("en_vuelo")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInFlight, s)

	s, err = parseFlightStatus("landed")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLanded, s)

	_, err = parseFlightStatus("parked")
	assert.Error(t, err)
}

func TestParseInstant(t *testing.T) {
	ts, err := parseInstant("departure", "2024-06-01T10:00:00Z")
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)))

	_, err = parseInstant("departure", "tomorrow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--departure")
}

func TestOptionalString(t *testing.T) {
	var origin string
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().StringVar(&origin, "origin", "", "")

	assert.Nil(t, optionalString(cmd, "origin", origin))

	require.NoError(t, cmd.Flags().Set("origin", "Salta"))
	got := optionalString(cmd, "origin", origin)
	require.NotNil(t, got)
	assert.Equal(t, "Salta", *got)
}

func TestOptionalID(t *testing.T) {
	assert.Equal(t, "-", optionalID(nil))
	id := int64(7)
	assert.Equal(t, "7", optionalID(&id))
}
