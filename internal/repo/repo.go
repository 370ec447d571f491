package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"skytrack/internal/domain"
)

// Gateway is the persistence surface the engine works against. Reads of
// flights and crew members by id include soft-deleted rows; listings do not.
type Gateway interface {
	GetPlane(ctx context.Context, id int64) (domain.Plane, error)
	GetPlaneByRegistration(ctx context.Context, registration string) (domain.Plane, error)
	ListPlanes(ctx context.Context) ([]domain.Plane, error)
	InsertPlane(ctx context.Context, p *domain.Plane) error
	UpdatePlane(ctx context.Context, p domain.Plane) error
	SetPlaneStatus(ctx context.Context, id int64, status domain.PlaneStatus, updatedAt string) error

	GetFlight(ctx context.Context, id int64) (domain.Flight, error)
	GetFlightByCode(ctx context.Context, code string) (domain.Flight, error)
	ListFlights(ctx context.Context, f FlightFilter) ([]domain.Flight, error)
	ActiveFlightForPlane(ctx context.Context, planeID, excludingFlightID int64) (*domain.Flight, error)
	InsertFlight(ctx context.Context, f *domain.Flight) error
	UpdateFlight(ctx context.Context, f domain.Flight) error

	GetCrewMember(ctx context.Context, id int64) (domain.CrewMember, error)
	ListCrewMembers(ctx context.Context) ([]domain.CrewMember, error)
	InsertCrewMember(ctx context.Context, c *domain.CrewMember) error
	UpdateCrewMember(ctx context.Context, c domain.CrewMember) error

	GetAssignment(ctx context.Context, flightID, crewMemberID int64) (domain.CrewAssignment, error)
	ListAssignments(ctx context.Context, flightID int64) ([]domain.CrewAssignment, error)
	InsertAssignment(ctx context.Context, a *domain.CrewAssignment) error
	DeleteAssignment(ctx context.Context, id int64) error
	CountAssignmentsForCrew(ctx context.Context, crewMemberID int64) (int, error)

	AppendEvent(ctx context.Context, evt domain.Event) error
	ListEvents(ctx context.Context, f EventFilter) ([]domain.Event, error)
}

// Store is a Gateway that can run a function inside one transaction.
// Anything fn writes is committed only if fn returns nil.
type Store interface {
	Gateway
	Atomic(ctx context.Context, fn func(Gateway) error) error
	Close() error
}

type FlightFilter struct {
	Origin      string
	Destination string
	Status      domain.FlightStatus
}

// EventFilter narrows ListEvents. With AfterID set the result holds only
// events with a larger id, oldest first, so callers can page forward.
type EventFilter struct {
	Type       string
	EntityKind string
	EntityID   int64
	AfterID    int64
	Limit      int
}

// ErrNotFound is returned by row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// notDeleted is the only predicate used to hide soft-deleted rows.
const notDeleted = "deleted_at IS NULL"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// Repo is the SQLite-backed Store.
type Repo struct {
	queries
	DB *sql.DB
}

func New(db *sql.DB) *Repo {
	return &Repo{queries: queries{db: db}, DB: db}
}

func (r *Repo) Atomic(ctx context.Context, fn func(Gateway) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Unavailable(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if err := fn(queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.Unavailable(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (r *Repo) Close() error {
	return r.DB.Close()
}

// lifecycle derives the soft-delete tag from the nullable marker column.
func lifecycle(deletedAt sql.NullString) (domain.Lifecycle, *string) {
	if deletedAt.Valid {
		v := deletedAt.String
		return domain.Deleted, &v
	}
	return domain.Active, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// storageErr wraps driver failures; ErrNotFound and typed errors keep their identity.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return domain.Unavailable(fmt.Errorf("%s: %w", op, err))
}

var _ Store = (*Repo)(nil)
