package repo

import (
	"context"
	"database/sql"

	"skytrack/internal/domain"
)

const crewColumns = `id,full_name,role,deleted_at,created_at,updated_at`

func scanCrewMember(row rowScanner) (domain.CrewMember, error) {
	var (
		c         domain.CrewMember
		deletedAt sql.NullString
	)
	err := row.Scan(&c.ID, &c.FullName, &c.Role, &deletedAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.State, c.DeletedAt = lifecycle(deletedAt)
	return c, err
}

func (q queries) GetCrewMember(ctx context.Context, id int64) (domain.CrewMember, error) {
	c, err := scanCrewMember(q.db.QueryRowContext(ctx, `SELECT `+crewColumns+` FROM crew_members WHERE id=?`, id))
	return c, storageErr("get crew member", err)
}

func (q queries) ListCrewMembers(ctx context.Context) ([]domain.CrewMember, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+crewColumns+` FROM crew_members WHERE `+notDeleted+` ORDER BY id ASC`)
	if err != nil {
		return nil, storageErr("list crew members", err)
	}
	defer rows.Close()
	var res []domain.CrewMember
	for rows.Next() {
		c, err := scanCrewMember(rows)
		if err != nil {
			return nil, storageErr("scan crew member", err)
		}
		res = append(res, c)
	}
	return res, storageErr("list crew members", rows.Err())
}

func (q queries) InsertCrewMember(ctx context.Context, c *domain.CrewMember) error {
	res, err := q.db.ExecContext(ctx, `INSERT INTO crew_members(full_name,role,deleted_at,created_at,updated_at) VALUES (?,?,?,?,?)`,
		c.FullName, c.Role, nullableStringPtr(c.DeletedAt), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return storageErr("insert crew member", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert crew member", err)
	}
	c.ID = id
	return nil
}

func (q queries) UpdateCrewMember(ctx context.Context, c domain.CrewMember) error {
	res, err := q.db.ExecContext(ctx, `UPDATE crew_members SET full_name=?,role=?,deleted_at=?,updated_at=? WHERE id=?`,
		c.FullName, c.Role, nullableStringPtr(c.DeletedAt), c.UpdatedAt, c.ID)
	if err != nil {
		return storageErr("update crew member", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q queries) GetAssignment(ctx context.Context, flightID, crewMemberID int64) (domain.CrewAssignment, error) {
	var a domain.CrewAssignment
	err := q.db.QueryRowContext(ctx, `SELECT id,flight_id,crew_member_id,created_at FROM crew_assignments WHERE flight_id=? AND crew_member_id=?`,
		flightID, crewMemberID).Scan(&a.ID, &a.FlightID, &a.CrewMemberID, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, storageErr("get assignment", err)
}

func (q queries) ListAssignments(ctx context.Context, flightID int64) ([]domain.CrewAssignment, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT a.id,a.flight_id,a.crew_member_id,a.created_at,
c.id,c.full_name,c.role,c.deleted_at,c.created_at,c.updated_at
FROM crew_assignments a JOIN crew_members c ON c.id = a.crew_member_id
WHERE a.flight_id=? ORDER BY a.id ASC`, flightID)
	if err != nil {
		return nil, storageErr("list assignments", err)
	}
	defer rows.Close()
	res := []domain.CrewAssignment{}
	for rows.Next() {
		var (
			a         domain.CrewAssignment
			c         domain.CrewMember
			deletedAt sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.FlightID, &a.CrewMemberID, &a.CreatedAt,
			&c.ID, &c.FullName, &c.Role, &deletedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, storageErr("scan assignment", err)
		}
		c.State, c.DeletedAt = lifecycle(deletedAt)
		a.CrewMember = &c
		res = append(res, a)
	}
	return res, storageErr("list assignments", rows.Err())
}

func (q queries) InsertAssignment(ctx context.Context, a *domain.CrewAssignment) error {
	res, err := q.db.ExecContext(ctx, `INSERT INTO crew_assignments(flight_id,crew_member_id,created_at) VALUES (?,?,?)`,
		a.FlightID, a.CrewMemberID, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(domain.CodeDuplicateAssignment, "crew member %d already assigned to flight %d", a.CrewMemberID, a.FlightID)
		}
		return storageErr("insert assignment", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert assignment", err)
	}
	a.ID = id
	return nil
}

func (q queries) DeleteAssignment(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM crew_assignments WHERE id=?`, id)
	if err != nil {
		return storageErr("delete assignment", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q queries) CountAssignmentsForCrew(ctx context.Context, crewMemberID int64) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crew_assignments WHERE crew_member_id=?`, crewMemberID).Scan(&n)
	return n, storageErr("count assignments", err)
}
