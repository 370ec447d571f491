package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"skytrack/internal/domain"
	"skytrack/internal/repo"
)

func TestTranslateErrors(t *testing.T) {
	assert.Nil(t, translate("op", nil))
	assert.ErrorIs(t, translate("op", gorm.ErrRecordNotFound), repo.ErrNotFound)

	dup := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: "flights_code_key"})
	err := translate("insert flight", dup)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.CodeDuplicateCode, domain.CodeOf(err))

	serial := &pgconn.PgError{Code: pgErrSerializationFailure}
	assert.ErrorIs(t, translate("tx", serial), domain.ErrUnavailable)

	typed := domain.NotFound(domain.CodePlaneNotFound, "plane 1 not found")
	assert.Same(t, typed, translate("tx", typed))

	assert.ErrorIs(t, translate("tx", errors.New("connection refused")), domain.ErrUnavailable)
}

func TestFlightModelConversion(t *testing.T) {
	plane := int64(2)
	deleted := "2024-05-01T12:00:00Z"
	dep := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	in := domain.Flight{
		ID: 9, Code: "SK100", Origin: "AEP", Destination: "COR",
		DepartureTime: dep, ArrivalTime: dep.Add(time.Hour),
		Status: domain.StatusCancelled, PlaneID: &plane, DeletedAt: &deleted,
		CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-02T00:00:00Z",
	}
	out := flightFromDomain(in).toDomain()
	assert.Equal(t, domain.Deleted, out.State)
	require.NotNil(t, out.DeletedAt)
	assert.Equal(t, deleted, *out.DeletedAt)
	assert.Equal(t, in.CreatedAt, out.CreatedAt)
	assert.True(t, out.DepartureTime.Equal(dep))
	assert.Equal(t, plane, *out.PlaneID)

	in.DeletedAt = nil
	assert.Equal(t, domain.Active, flightFromDomain(in).toDomain().State)
}

// TestStoreAgainstPostgres runs only when SKYTRACK_TEST_POSTGRES_DSN points at a scratch database.
func TestStoreAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("SKYTRACK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SKYTRACK_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, Config{DSN: dsn})
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.DB.Exec(`TRUNCATE crew_assignments, crew_members, flights, planes, events RESTART IDENTITY CASCADE`).Error)

	now := "2024-01-01T00:00:00Z"
	p := domain.Plane{Model: "Boeing 737", Registration: "LV-SKY1", Status: domain.PlaneAvailable, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.InsertPlane(ctx, &p))
	dup := p
	assert.ErrorIs(t, s.InsertPlane(ctx, &dup), domain.ErrConflict)

	dep := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	err = s.Atomic(ctx, func(g repo.Gateway) error {
		if _, err := g.GetPlane(ctx, p.ID); err != nil {
			return err
		}
		f := domain.Flight{Code: "SK100", Origin: "AEP", Destination: "COR", DepartureTime: dep, ArrivalTime: dep.Add(time.Hour),
			Status: domain.StatusBoarding, PlaneID: &p.ID, CreatedAt: now, UpdatedAt: now}
		return g.InsertFlight(ctx, &f)
	})
	require.NoError(t, err)

	active, err := s.ActiveFlightForPlane(ctx, p.ID, 0)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "SK100", active.Code)
}
