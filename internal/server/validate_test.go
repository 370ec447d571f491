package server

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skytrack/internal/domain"
)

func envelope(t *testing.T, err error) *apiError {
	t.Helper()
	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr), "expected *apiError, got %T", err)
	return apiErr
}

func TestValidateCreateFlight(t *testing.T) {
	dep := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	req := CreateFlightRequest{
		Code:          " sk100 ",
		Origin:        "Mendoza",
		Destination:   "Córdoba",
		DepartureTime: dep,
		ArrivalTime:   dep.Add(2 * time.Hour),
		Status:        str("EMBARCANDO"),
	}
	opts, apiErr := validateCreateFlight(req, "ops")
	require.Nil(t, apiErr)
	assert.Equal(t, "SK100", opts.Code)
	assert.Equal(t, domain.StatusBoarding, opts.Status)
	assert.Equal(t, "ops", opts.ActorID)

	bad := req
	bad.Code = "XX1"
	_, apiErr = validateCreateFlight(bad, "ops")
	require.NotNil(t, apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.GetStatus())
	assert.Equal(t, domain.CodeInvalidCode, envelope(t, apiErr).Body.Code)

	bad = req
	bad.ArrivalTime = time.Time{}
	_, apiErr = validateCreateFlight(bad, "ops")
	require.NotNil(t, apiErr)
	assert.Equal(t, domain.CodeInvalidTime, envelope(t, apiErr).Body.Code)

	bad = req
	bad.Status = str("TAXIING")
	_, apiErr = validateCreateFlight(bad, "ops")
	require.NotNil(t, apiErr)
	assert.Equal(t, domain.CodeInvalidField, envelope(t, apiErr).Body.Code)
}

func TestValidateUpdateFlight(t *testing.T) {
	var planeID int64 = 4
	opts, apiErr := validateUpdateFlight(9, UpdateFlightRequest{Status: str("LANDED")}, true, "ops")
	require.Nil(t, apiErr)
	assert.Equal(t, int64(9), opts.ID)
	require.NotNil(t, opts.Status)
	assert.Equal(t, domain.StatusLanded, *opts.Status)
	assert.True(t, opts.UnbindPlane)

	opts, apiErr = validateUpdateFlight(9, UpdateFlightRequest{PlaneID: &planeID}, true, "ops")
	require.Nil(t, apiErr)
	assert.False(t, opts.UnbindPlane)
	assert.Equal(t, &planeID, opts.PlaneID)

	_, apiErr = validateUpdateFlight(9, UpdateFlightRequest{Code: str("SKX")}, false, "ops")
	require.NotNil(t, apiErr)
	assert.Equal(t, domain.CodeInvalidCode, envelope(t, apiErr).Body.Code)

	zero := time.Time{}
	_, apiErr = validateUpdateFlight(9, UpdateFlightRequest{DepartureTime: &zero}, false, "ops")
	require.NotNil(t, apiErr)
	assert.Equal(t, domain.CodeInvalidTime, envelope(t, apiErr).Body.Code)
}

func TestValidateFlightFilter(t *testing.T) {
	f, apiErr := validateFlightFilter(" Mendoza ", "", "CANCELADO")
	require.Nil(t, apiErr)
	assert.Equal(t, "Mendoza", f.Origin)
	assert.Equal(t, domain.StatusCancelled, f.Status)

	_, apiErr = validateFlightFilter("", "", "nope")
	require.NotNil(t, apiErr)
}

func TestValidateCreatePlane(t *testing.T) {
	opts, apiErr := validateCreatePlane(CreatePlaneRequest{Model: "A320", Registration: "lv-sky9", Status: str("maintenance")}, "ops")
	require.Nil(t, apiErr)
	assert.Equal(t, "LV-SKY9", opts.Registration)
	assert.Equal(t, domain.PlaneMaintenance, opts.Status)

	_, apiErr = validateCreatePlane(CreatePlaneRequest{Model: "A320", Registration: "LV-SKY9", Status: str("IN_FLIGHT")}, "ops")
	require.NotNil(t, apiErr)

	_, apiErr = validateCreatePlane(CreatePlaneRequest{Registration: "LV-SKY9"}, "ops")
	require.NotNil(t, apiErr)
}

func TestHandleErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.NotFound(domain.CodeFlightNotFound, "flight %d not found", 1), http.StatusNotFound, domain.CodeFlightNotFound},
		{domain.Conflict(domain.CodePlaneInUse, "plane busy"), http.StatusConflict, domain.CodePlaneInUse},
		{domain.InvalidTransition(domain.CodeFlightFinalized, "closed"), http.StatusUnprocessableEntity, domain.CodeFlightFinalized},
		{domain.Validation(domain.CodeInvalidField, "bad"), http.StatusBadRequest, domain.CodeInvalidField},
		{domain.Unavailable(errors.New("disk gone")), http.StatusServiceUnavailable, domain.CodeOf(domain.Unavailable(errors.New("x")))},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		se := handleError(tc.err)
		require.NotNil(t, se)
		assert.Equal(t, tc.status, se.GetStatus(), tc.err.Error())
		assert.Equal(t, tc.code, envelope(t, se).Body.Code, tc.err.Error())
	}
	assert.Nil(t, handleError(nil))
}
