package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skytrack/internal/db"
	"skytrack/internal/domain"
	"skytrack/internal/engine"
	"skytrack/internal/events"
	"skytrack/internal/migrate"
	"skytrack/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err, "open db")
	_, err = migrate.Migrate(ctx, conn)
	require.NoError(t, err, "migrate")
	store := repo.New(conn)
	t.Cleanup(func() { store.Close() })
	eng := engine.New(store)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: ctx}
}

var departure = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func (env testEnv) plane(t *testing.T, reg string, status domain.PlaneStatus) domain.Plane {
	t.Helper()
	p, err := env.Engine.CreatePlane(env.Ctx, engine.PlaneCreateOptions{Model: "Boeing 737", Registration: reg, Status: status, ActorID: "tester"})
	require.NoError(t, err)
	return p
}

func (env testEnv) flight(t *testing.T, code string, status domain.FlightStatus, planeID *int64) domain.Flight {
	t.Helper()
	f, err := env.Engine.CreateFlight(env.Ctx, flightOpts(code, status, planeID))
	require.NoError(t, err)
	return f
}

func (env testEnv) crew(t *testing.T, name string) domain.CrewMember {
	t.Helper()
	c, err := env.Engine.CreateCrewMember(env.Ctx, engine.CrewCreateOptions{FullName: name, Role: "Piloto", ActorID: "tester"})
	require.NoError(t, err)
	return c
}

func (env testEnv) planeStatus(t *testing.T, id int64) domain.PlaneStatus {
	t.Helper()
	p, err := env.Engine.GetPlane(env.Ctx, id)
	require.NoError(t, err)
	return p.Status
}

func flightOpts(code string, status domain.FlightStatus, planeID *int64) engine.FlightCreateOptions {
	return engine.FlightCreateOptions{
		Code:          code,
		Origin:        "Mendoza",
		Destination:   "Buenos Aires",
		DepartureTime: departure,
		ArrivalTime:   departure.Add(2 * time.Hour),
		Status:        status,
		PlaneID:       planeID,
		ActorID:       "tester",
	}
}

func statusPtr(s domain.FlightStatus) *domain.FlightStatus { return &s }

func assertKind(t *testing.T, err error, kind domain.Kind, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, domain.KindOf(err), "kind of %v", err)
	assert.Equal(t, code, domain.CodeOf(err), "code of %v", err)
}

func TestCreateFlightDefaults(t *testing.T) {
	env := newTestEnv(t)
	f := env.flight(t, "SK100", "", nil)
	assert.NotZero(t, f.ID)
	assert.Equal(t, domain.StatusScheduled, f.Status)
	assert.Equal(t, domain.Active, f.State)
	assert.Nil(t, f.PlaneID)

	got, err := env.Engine.GetFlight(env.Ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Code, got.Code)
	assert.True(t, departure.Equal(got.DepartureTime))
}

func TestCreateFlightValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateFlight(env.Ctx, flightOpts("AR100", "", nil))
	assertKind(t, err, domain.KindValidation, domain.CodeInvalidCode)

	opts := flightOpts("SK101", "", nil)
	opts.ArrivalTime = time.Time{}
	_, err = env.Engine.CreateFlight(env.Ctx, opts)
	assertKind(t, err, domain.KindValidation, domain.CodeInvalidTime)

	_, err = env.Engine.CreateFlight(env.Ctx, flightOpts("SK102", domain.StatusLanded, nil))
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeInvalidTransition)

	_, err = env.Engine.CreateFlight(env.Ctx, flightOpts("SK103", domain.StatusInFlight, nil))
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeEnRouteWithoutPlane)

	env.flight(t, "SK104", "", nil)
	_, err = env.Engine.CreateFlight(env.Ctx, flightOpts("SK104", "", nil))
	assertKind(t, err, domain.KindConflict, domain.CodeDuplicateCode)
}

func TestCreateFlightPlaneChecks(t *testing.T) {
	env := newTestEnv(t)
	missing := int64(99)
	_, err := env.Engine.CreateFlight(env.Ctx, flightOpts("SK100", "", &missing))
	assertKind(t, err, domain.KindNotFound, domain.CodePlaneNotFound)

	maint := env.plane(t, "LV-SKY2", domain.PlaneMaintenance)
	_, err = env.Engine.CreateFlight(env.Ctx, flightOpts("SK101", "", &maint.ID))
	assertKind(t, err, domain.KindConflict, domain.CodePlaneUnavailable)

	avail := env.plane(t, "LV-SKY1", domain.PlaneAvailable)
	env.flight(t, "SK102", domain.StatusBoarding, &avail.ID)
	_, err = env.Engine.CreateFlight(env.Ctx, flightOpts("SK103", "", &avail.ID))
	assertKind(t, err, domain.KindConflict, domain.CodePlaneInUse)
}

func TestCreateFlightInFlightMarksPlane(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")
	env.flight(t, "SK100", domain.StatusInFlight, &p.ID)
	assert.Equal(t, domain.PlaneInFlight, env.planeStatus(t, p.ID))
}

func TestPlaneExclusivityScenario(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", domain.PlaneAvailable)

	a := env.flight(t, "SK100", "", &p.ID)
	assert.Equal(t, domain.PlaneAvailable, env.planeStatus(t, p.ID), "bound but not airborne")

	a, err := env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: a.ID, Status: statusPtr(domain.StatusInFlight), ActorID: "tester"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInFlight, a.Status)
	assert.Equal(t, domain.PlaneInFlight, env.planeStatus(t, p.ID))

	_, err = env.Engine.CreateFlight(env.Ctx, flightOpts("SK200", "", &p.ID))
	assertKind(t, err, domain.KindConflict, domain.CodePlaneInUse)

	a, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: a.ID, Status: statusPtr(domain.StatusLanded), ActorID: "tester"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLanded, a.Status)
	assert.Equal(t, domain.PlaneAvailable, env.planeStatus(t, p.ID))

	// the landed flight no longer holds the plane
	b := env.flight(t, "SK200", "", &p.ID)
	assert.Equal(t, p.ID, *b.PlaneID)
}

func TestStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")
	f := env.flight(t, "SK100", "", &p.ID)

	for _, next := range []domain.FlightStatus{domain.StatusBoarding, domain.StatusInFlight, domain.StatusLanded} {
		var err error
		f, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Status: statusPtr(next), ActorID: "tester"})
		require.NoError(t, err, "to %s", next)
		assert.Equal(t, next, f.Status)
	}

	g := env.flight(t, "SK200", domain.StatusBoarding, nil)
	_, err := env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: g.ID, Status: statusPtr(domain.StatusScheduled), ActorID: "tester"})
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeInvalidTransition)
}

func TestFinalizedFlightIsImmutable(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")
	other := env.plane(t, "LV-SKY3", "")
	f := env.flight(t, "SK100", domain.StatusInFlight, &p.ID)
	f, err := env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Status: statusPtr(domain.StatusLanded)})
	require.NoError(t, err)

	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Status: statusPtr(domain.StatusBoarding)})
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeFlightFinalized)

	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, PlaneID: &other.ID})
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeFlightFinalized)

	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, UnbindPlane: true})
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeFlightFinalized)

	origin := "Córdoba"
	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Origin: &origin})
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeFlightFinalized)

	// restating the current values is not a change
	same, err := env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Status: statusPtr(domain.StatusLanded), PlaneID: &p.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLanded, same.Status)
	assert.Equal(t, p.ID, *same.PlaneID)
	assert.Equal(t, f.UpdatedAt, same.UpdatedAt)
	assert.Equal(t, domain.PlaneAvailable, env.planeStatus(t, other.ID))
}

func TestUpdateEnRouteRequiresPlane(t *testing.T) {
	env := newTestEnv(t)
	f := env.flight(t, "SK100", "", nil)
	_, err := env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Status: statusPtr(domain.StatusInFlight)})
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeEnRouteWithoutPlane)

	p := env.plane(t, "LV-SKY1", "")
	f, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Status: statusPtr(domain.StatusInFlight), PlaneID: &p.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.PlaneInFlight, env.planeStatus(t, p.ID))

	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, UnbindPlane: true})
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeEnRouteWithoutPlane)
	assert.Equal(t, domain.PlaneInFlight, env.planeStatus(t, p.ID), "rejected update leaves plane untouched")
}

func TestUpdateRebindsPlane(t *testing.T) {
	env := newTestEnv(t)
	first := env.plane(t, "LV-SKY1", "")
	second := env.plane(t, "LV-SKY3", "")
	f := env.flight(t, "SK100", domain.StatusInFlight, &first.ID)

	f, err := env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, PlaneID: &second.ID})
	require.NoError(t, err)
	assert.Equal(t, second.ID, *f.PlaneID)
	assert.Equal(t, domain.PlaneAvailable, env.planeStatus(t, first.ID), "previous plane released")
	assert.Equal(t, domain.PlaneInFlight, env.planeStatus(t, second.ID))

	g := env.flight(t, "SK200", "", nil)
	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: g.ID, PlaneID: &second.ID})
	assertKind(t, err, domain.KindConflict, domain.CodePlaneInUse)

	maint := env.plane(t, "LV-SKY2", domain.PlaneMaintenance)
	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: g.ID, PlaneID: &maint.ID})
	assertKind(t, err, domain.KindConflict, domain.CodePlaneUnavailable)
}

func TestUpdateMissingOrDeletedFlight(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: 42, Status: statusPtr(domain.StatusBoarding)})
	assertKind(t, err, domain.KindNotFound, domain.CodeFlightNotFound)

	f := env.flight(t, "SK100", "", nil)
	_, err = env.Engine.SoftDeleteFlight(env.Ctx, f.ID, "tester")
	require.NoError(t, err)
	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Status: statusPtr(domain.StatusBoarding)})
	assertKind(t, err, domain.KindNotFound, domain.CodeFlightNotFound)
}

func TestSoftDeleteFlight(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")

	airborne := env.flight(t, "SK100", domain.StatusInFlight, &p.ID)
	_, err := env.Engine.SoftDeleteFlight(env.Ctx, airborne.ID, "tester")
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeFlightActiveOrLanded)

	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: airborne.ID, Status: statusPtr(domain.StatusLanded)})
	require.NoError(t, err)
	_, err = env.Engine.SoftDeleteFlight(env.Ctx, airborne.ID, "tester")
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeFlightActiveOrLanded)

	boarding := env.flight(t, "SK200", domain.StatusBoarding, &p.ID)
	deleted, err := env.Engine.SoftDeleteFlight(env.Ctx, boarding.ID, "tester")
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())
	require.NotNil(t, deleted.DeletedAt)
	assert.Equal(t, domain.PlaneAvailable, env.planeStatus(t, p.ID))

	_, err = env.Engine.SoftDeleteFlight(env.Ctx, boarding.ID, "tester")
	assertKind(t, err, domain.KindNotFound, domain.CodeFlightNotFound)

	// still readable by id, hidden from listings
	got, err := env.Engine.GetFlight(env.Ctx, boarding.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())
	list, err := env.Engine.ListFlights(env.Ctx, repo.FlightFilter{})
	require.NoError(t, err)
	for _, f := range list {
		assert.NotEqual(t, boarding.ID, f.ID)
	}
}

func TestSoftDeleteCancelledFlightLeavesPlaneAvailable(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")
	f := env.flight(t, "SK100", domain.StatusInFlight, &p.ID)
	require.Equal(t, domain.PlaneInFlight, env.planeStatus(t, p.ID))

	_, err := env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Status: statusPtr(domain.StatusCancelled)})
	require.NoError(t, err)
	// released at cancellation
	require.Equal(t, domain.PlaneAvailable, env.planeStatus(t, p.ID))

	deleted, err := env.Engine.SoftDeleteFlight(env.Ctx, f.ID, "tester")
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())
	require.NotNil(t, deleted.PlaneID)
	assert.Equal(t, p.ID, *deleted.PlaneID)
	assert.Equal(t, domain.PlaneAvailable, env.planeStatus(t, p.ID))
}

func TestSoftDeleteCancelledFlightKeepsReboundPlane(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")
	cancelled := env.flight(t, "SK100", "", &p.ID)
	_, err := env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: cancelled.ID, Status: statusPtr(domain.StatusCancelled)})
	require.NoError(t, err)

	env.flight(t, "SK200", domain.StatusInFlight, &p.ID)
	require.Equal(t, domain.PlaneInFlight, env.planeStatus(t, p.ID))

	_, err = env.Engine.SoftDeleteFlight(env.Ctx, cancelled.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, domain.PlaneInFlight, env.planeStatus(t, p.ID))
}

func TestListFlightsFilters(t *testing.T) {
	env := newTestEnv(t)
	a := env.flight(t, "SK100", "", nil)
	opts := flightOpts("SK200", domain.StatusBoarding, nil)
	opts.Origin = "Santiago"
	b, err := env.Engine.CreateFlight(env.Ctx, opts)
	require.NoError(t, err)
	c := env.flight(t, "SK300", domain.StatusBoarding, nil)

	all, err := env.Engine.ListFlights(env.Ctx, repo.FlightFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{a.ID, b.ID, c.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	got, err := env.Engine.ListFlights(env.Ctx, repo.FlightFilter{Origin: "Mendoza", Status: domain.StatusBoarding})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)

	none, err := env.Engine.ListFlights(env.Ctx, repo.FlightFilter{Destination: "Lima"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = env.Engine.ListFlights(env.Ctx, repo.FlightFilter{Status: "FLYING"})
	assertKind(t, err, domain.KindValidation, domain.CodeInvalidField)
}

func TestCrewAssignmentScenario(t *testing.T) {
	env := newTestEnv(t)
	f := env.flight(t, "SK100", "", nil)
	c := env.crew(t, "Juan Pérez")

	a, err := env.Engine.AddCrewMember(env.Ctx, f.ID, c.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, f.ID, a.FlightID)
	require.NotNil(t, a.CrewMember)
	assert.Equal(t, "Juan Pérez", a.CrewMember.FullName)

	_, err = env.Engine.AddCrewMember(env.Ctx, f.ID, c.ID, "tester")
	assertKind(t, err, domain.KindConflict, domain.CodeDuplicateAssignment)

	removed, err := env.Engine.RemoveCrewMember(env.Ctx, f.ID, c.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, a.ID, removed.ID)

	crew, err := env.Engine.GetCrewForFlight(env.Ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, crew)

	_, err = env.Engine.RemoveCrewMember(env.Ctx, f.ID, c.ID, "tester")
	assertKind(t, err, domain.KindNotFound, domain.CodeAssignmentNotFound)
}

func TestCrewForFlightOrderingIsStable(t *testing.T) {
	env := newTestEnv(t)
	f := env.flight(t, "SK100", "", nil)
	var ids []int64
	for _, name := range []string{"Juan Pérez", "María Gómez", "Lucía Fernández"} {
		c := env.crew(t, name)
		a, err := env.Engine.AddCrewMember(env.Ctx, f.ID, c.ID, "tester")
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	first, err := env.Engine.GetCrewForFlight(env.Ctx, f.ID)
	require.NoError(t, err)
	second, err := env.Engine.GetCrewForFlight(env.Ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	for i, a := range first {
		assert.Equal(t, ids[i], a.ID)
	}
}

func TestCrewRulesOnClosedFlights(t *testing.T) {
	env := newTestEnv(t)
	c := env.crew(t, "Juan Pérez")

	_, err := env.Engine.AddCrewMember(env.Ctx, 77, c.ID, "tester")
	assertKind(t, err, domain.KindNotFound, domain.CodeFlightNotFound)
	_, err = env.Engine.GetCrewForFlight(env.Ctx, 77)
	assertKind(t, err, domain.KindNotFound, domain.CodeFlightNotFound)

	f := env.flight(t, "SK100", "", nil)
	_, err = env.Engine.AddCrewMember(env.Ctx, f.ID, 55, "tester")
	assertKind(t, err, domain.KindNotFound, domain.CodeCrewNotFound)

	_, err = env.Engine.AddCrewMember(env.Ctx, f.ID, c.ID, "tester")
	require.NoError(t, err)
	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Status: statusPtr(domain.StatusCancelled)})
	require.NoError(t, err)

	other := env.crew(t, "María Gómez")
	_, err = env.Engine.AddCrewMember(env.Ctx, f.ID, other.ID, "tester")
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeFlightFinalized)
	_, err = env.Engine.RemoveCrewMember(env.Ctx, f.ID, c.ID, "tester")
	assertKind(t, err, domain.KindInvalidTransition, domain.CodeFlightFinalized)

	// finalized flights still list their roster
	crew, err := env.Engine.GetCrewForFlight(env.Ctx, f.ID)
	require.NoError(t, err)
	assert.Len(t, crew, 1)
}

func TestSoftDeleteCrewMember(t *testing.T) {
	env := newTestEnv(t)
	f := env.flight(t, "SK100", "", nil)
	c := env.crew(t, "Juan Pérez")
	_, err := env.Engine.AddCrewMember(env.Ctx, f.ID, c.ID, "tester")
	require.NoError(t, err)

	_, err = env.Engine.SoftDeleteCrewMember(env.Ctx, c.ID, "tester")
	assertKind(t, err, domain.KindConflict, domain.CodeCrewAssigned)

	// finalizing the flight does not lift the block
	_, err = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{ID: f.ID, Status: statusPtr(domain.StatusCancelled)})
	require.NoError(t, err)
	_, err = env.Engine.SoftDeleteCrewMember(env.Ctx, c.ID, "tester")
	assertKind(t, err, domain.KindConflict, domain.CodeCrewAssigned)

	free := env.crew(t, "María Gómez")
	deleted, err := env.Engine.SoftDeleteCrewMember(env.Ctx, free.ID, "tester")
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted())

	_, err = env.Engine.SoftDeleteCrewMember(env.Ctx, free.ID, "tester")
	assertKind(t, err, domain.KindNotFound, domain.CodeCrewNotFound)

	g := env.flight(t, "SK200", "", nil)
	_, err = env.Engine.AddCrewMember(env.Ctx, g.ID, free.ID, "tester")
	assertKind(t, err, domain.KindNotFound, domain.CodeCrewNotFound)

	list, err := env.Engine.ListCrewMembers(env.Ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
}

func TestUpdateCrewMember(t *testing.T) {
	env := newTestEnv(t)
	c := env.crew(t, "Juan Pérez")
	role := "Comandante"
	got, err := env.Engine.UpdateCrewMember(env.Ctx, engine.CrewUpdateOptions{ID: c.ID, Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "Comandante", got.Role)
	assert.Equal(t, "Juan Pérez", got.FullName)

	empty := " "
	_, err = env.Engine.UpdateCrewMember(env.Ctx, engine.CrewUpdateOptions{ID: c.ID, FullName: &empty})
	assertKind(t, err, domain.KindValidation, domain.CodeInvalidField)
	_, err = env.Engine.UpdateCrewMember(env.Ctx, engine.CrewUpdateOptions{ID: 99, Role: &role})
	assertKind(t, err, domain.KindNotFound, domain.CodeCrewNotFound)
}

func TestPlaneAdmin(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")
	assert.Equal(t, domain.PlaneAvailable, p.Status)

	_, err := env.Engine.CreatePlane(env.Ctx, engine.PlaneCreateOptions{Model: "A320", Registration: "LV-SKY1"})
	assertKind(t, err, domain.KindConflict, domain.CodeDuplicateRegistration)
	_, err = env.Engine.CreatePlane(env.Ctx, engine.PlaneCreateOptions{Model: "A320", Registration: "LV-SKY9", Status: domain.PlaneInFlight})
	assertKind(t, err, domain.KindValidation, domain.CodeInvalidField)

	model := "Boeing 737 MAX"
	p, err = env.Engine.UpdatePlane(env.Ctx, engine.PlaneUpdateOptions{ID: p.ID, Model: &model})
	require.NoError(t, err)
	assert.Equal(t, model, p.Model)
	assert.Equal(t, domain.PlaneAvailable, p.Status)

	_, err = env.Engine.GetPlane(env.Ctx, 404)
	assertKind(t, err, domain.KindNotFound, domain.CodePlaneNotFound)
}

func TestEventsRecorded(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")
	f := env.flight(t, "SK100", domain.StatusInFlight, &p.ID)

	evts, err := env.Engine.ListEvents(env.Ctx, repo.EventFilter{EntityKind: "plane", EntityID: p.ID})
	require.NoError(t, err)
	var types []string
	for _, e := range evts {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, events.PlaneCreated)
	assert.Contains(t, types, events.PlaneStatusChanged)

	evts, err = env.Engine.ListEvents(env.Ctx, repo.EventFilter{Type: events.FlightCreated})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, f.ID, evts[0].EntityID)
	assert.Equal(t, "tester", evts[0].ActorID)
	assert.Contains(t, evts[0].Payload, `"code":"SK100"`)
}

func TestFailedOperationWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")
	env.flight(t, "SK100", domain.StatusBoarding, &p.ID)
	before, err := env.Engine.ListEvents(env.Ctx, repo.EventFilter{})
	require.NoError(t, err)

	_, err = env.Engine.CreateFlight(env.Ctx, flightOpts("SK200", domain.StatusInFlight, &p.ID))
	require.Error(t, err)

	after, err := env.Engine.ListEvents(env.Ctx, repo.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	list, err := env.Engine.ListFlights(env.Ctx, repo.FlightFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, domain.PlaneAvailable, env.planeStatus(t, p.ID))
}

func TestConcurrentBookingOfOnePlane(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		okCount int
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.Engine.CreateFlight(env.Ctx, flightOpts(fmt.Sprintf("SK%d", 500+i), domain.StatusInFlight, &p.ID))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				okCount++
				return
			}
			errs = append(errs, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, okCount)
	for _, err := range errs {
		assert.True(t, errors.Is(err, domain.ErrConflict), "unexpected error %v", err)
	}
	assert.Equal(t, domain.PlaneInFlight, env.planeStatus(t, p.ID))
}

func TestConcurrentTakeoffOnSharedPlane(t *testing.T) {
	env := newTestEnv(t)
	p := env.plane(t, "LV-SKY1", "")
	a := env.flight(t, "SK100", "", nil)
	b := env.flight(t, "SK200", "", nil)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, id := range []int64{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, results[i] = env.Engine.UpdateFlight(env.Ctx, engine.FlightUpdateOptions{
				ID: id, Status: statusPtr(domain.StatusInFlight), PlaneID: &p.ID,
			})
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	list, err := env.Engine.ListFlights(env.Ctx, repo.FlightFilter{Status: domain.StatusInFlight})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSeed(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.Engine.Seed(env.Ctx, "seed")
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Len(t, res.Planes, 2)
	assert.Len(t, res.Crew, 3)
	assert.Len(t, res.Flights, 2)
	assert.Len(t, res.Assignments, 3)

	again, err := env.Engine.Seed(env.Ctx, "seed")
	require.NoError(t, err)
	assert.True(t, again.Skipped)
}
