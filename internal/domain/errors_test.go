package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesByKindAndCode(t *testing.T) {
	err := Conflict(CodePlaneInUse, "plane %d already assigned to flight %d", 1, 7)
	wrapped := fmt.Errorf("create flight: %w", err)

	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.ErrorIs(t, wrapped, &Error{Kind: KindConflict, Code: CodePlaneInUse})
	assert.NotErrorIs(t, wrapped, &Error{Kind: KindConflict, Code: CodePlaneUnavailable})
	assert.NotErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.Equal(t, CodePlaneInUse, CodeOf(wrapped))
	assert.Equal(t, "create flight: plane 1 already assigned to flight 7", wrapped.Error())
}

func TestUnavailableKeepsTypedErrors(t *testing.T) {
	typed := NotFound(CodeFlightNotFound, "flight 3 not found")
	assert.Same(t, typed, Unavailable(typed))

	io := errors.New("disk I/O error")
	err := Unavailable(io)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, io)
	assert.Nil(t, Unavailable(nil))
	assert.Equal(t, Kind(""), KindOf(io))
}

func TestFlightStatusParsing(t *testing.T) {
	st, ok := ParseFlightStatus("LANDED")
	assert.True(t, ok)
	assert.Equal(t, StatusLanded, st)

	st, ok = ParseFlightStatus("EMBARCANDO")
	assert.True(t, ok)
	assert.Equal(t, StatusBoarding, st)

	_, ok = ParseFlightStatus("DELAYED")
	assert.False(t, ok)

	assert.True(t, StatusCancelled.Finalized())
	assert.False(t, StatusInFlight.Finalized())
}

func TestFlightCodePattern(t *testing.T) {
	assert.True(t, ValidFlightCode("SK100"))
	assert.False(t, ValidFlightCode("SK"))
	assert.False(t, ValidFlightCode("sk100"))
	assert.False(t, ValidFlightCode("AR100"))
	assert.False(t, ValidFlightCode("SK10A"))
}

func TestFlightHolds(t *testing.T) {
	plane := int64(4)
	f := Flight{Status: StatusBoarding, PlaneID: &plane, State: Active}
	assert.True(t, f.Holds(4))
	assert.False(t, f.Holds(5))

	f.Status = StatusLanded
	assert.False(t, f.Holds(4))

	f.Status = StatusScheduled
	f.State = Deleted
	assert.False(t, f.Holds(4))
}
