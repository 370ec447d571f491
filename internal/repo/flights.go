package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"skytrack/internal/domain"
)

const flightColumns = `id,code,origin,destination,departure_time,arrival_time,status,plane_id,deleted_at,created_at,updated_at`

func scanFlight(row rowScanner) (domain.Flight, error) {
	var (
		f                  domain.Flight
		departure, arrival string
		planeID            sql.NullInt64
		deletedAt          sql.NullString
	)
	err := row.Scan(&f.ID, &f.Code, &f.Origin, &f.Destination, &departure, &arrival, &f.Status, &planeID, &deletedAt, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return f, ErrNotFound
	}
	if err != nil {
		return f, err
	}
	if f.DepartureTime, err = time.Parse(time.RFC3339Nano, departure); err != nil {
		return f, fmt.Errorf("flight %d departure_time: %w", f.ID, err)
	}
	if f.ArrivalTime, err = time.Parse(time.RFC3339Nano, arrival); err != nil {
		return f, fmt.Errorf("flight %d arrival_time: %w", f.ID, err)
	}
	if planeID.Valid {
		id := planeID.Int64
		f.PlaneID = &id
	}
	f.State, f.DeletedAt = lifecycle(deletedAt)
	return f, nil
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (q queries) GetFlight(ctx context.Context, id int64) (domain.Flight, error) {
	f, err := scanFlight(q.db.QueryRowContext(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=?`, id))
	return f, storageErr("get flight", err)
}

func (q queries) GetFlightByCode(ctx context.Context, code string) (domain.Flight, error) {
	f, err := scanFlight(q.db.QueryRowContext(ctx, `SELECT `+flightColumns+` FROM flights WHERE code=?`, code))
	return f, storageErr("get flight by code", err)
}

func (q queries) ListFlights(ctx context.Context, f FlightFilter) ([]domain.Flight, error) {
	clauses := []string{notDeleted}
	var args []any
	if f.Origin != "" {
		clauses = append(clauses, "origin=?")
		args = append(args, f.Origin)
	}
	if f.Destination != "" {
		clauses = append(clauses, "destination=?")
		args = append(args, f.Destination)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	query := `SELECT ` + flightColumns + ` FROM flights WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY id ASC`
	return q.queryFlights(ctx, "list flights", query, args...)
}

func (q queries) ActiveFlightForPlane(ctx context.Context, planeID, excludingFlightID int64) (*domain.Flight, error) {
	flights, err := q.queryFlights(ctx, "active flight for plane",
		`SELECT `+flightColumns+` FROM flights WHERE `+notDeleted+` AND plane_id=? AND id<>? AND status NOT IN (?,?) ORDER BY id ASC LIMIT 1`,
		planeID, excludingFlightID, domain.StatusLanded, domain.StatusCancelled)
	if err != nil || len(flights) == 0 {
		return nil, err
	}
	return &flights[0], nil
}

func (q queries) queryFlights(ctx context.Context, op, query string, args ...any) ([]domain.Flight, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()
	var res []domain.Flight
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		res = append(res, f)
	}
	return res, storageErr(op, rows.Err())
}

func (q queries) InsertFlight(ctx context.Context, f *domain.Flight) error {
	res, err := q.db.ExecContext(ctx, `INSERT INTO flights(code,origin,destination,departure_time,arrival_time,status,plane_id,deleted_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		f.Code, f.Origin, f.Destination, formatInstant(f.DepartureTime), formatInstant(f.ArrivalTime), f.Status,
		nullableInt64Ptr(f.PlaneID), nullableStringPtr(f.DeletedAt), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(domain.CodeDuplicateCode, "flight code %s already exists", f.Code)
		}
		return storageErr("insert flight", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert flight", err)
	}
	f.ID = id
	return nil
}

func (q queries) UpdateFlight(ctx context.Context, f domain.Flight) error {
	res, err := q.db.ExecContext(ctx, `UPDATE flights SET code=?,origin=?,destination=?,departure_time=?,arrival_time=?,status=?,plane_id=?,deleted_at=?,updated_at=? WHERE id=?`,
		f.Code, f.Origin, f.Destination, formatInstant(f.DepartureTime), formatInstant(f.ArrivalTime), f.Status,
		nullableInt64Ptr(f.PlaneID), nullableStringPtr(f.DeletedAt), f.UpdatedAt, f.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(domain.CodeDuplicateCode, "flight code %s already exists", f.Code)
		}
		return storageErr("update flight", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
