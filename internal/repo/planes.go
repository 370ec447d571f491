package repo

import (
	"context"
	"database/sql"

	"skytrack/internal/domain"
)

const planeColumns = `id,model,registration,status,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlane(row rowScanner) (domain.Plane, error) {
	var p domain.Plane
	err := row.Scan(&p.ID, &p.Model, &p.Registration, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (q queries) GetPlane(ctx context.Context, id int64) (domain.Plane, error) {
	p, err := scanPlane(q.db.QueryRowContext(ctx, `SELECT `+planeColumns+` FROM planes WHERE id=?`, id))
	return p, storageErr("get plane", err)
}

func (q queries) GetPlaneByRegistration(ctx context.Context, registration string) (domain.Plane, error) {
	p, err := scanPlane(q.db.QueryRowContext(ctx, `SELECT `+planeColumns+` FROM planes WHERE registration=?`, registration))
	return p, storageErr("get plane by registration", err)
}

func (q queries) ListPlanes(ctx context.Context) ([]domain.Plane, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+planeColumns+` FROM planes ORDER BY id ASC`)
	if err != nil {
		return nil, storageErr("list planes", err)
	}
	defer rows.Close()
	var res []domain.Plane
	for rows.Next() {
		p, err := scanPlane(rows)
		if err != nil {
			return nil, storageErr("scan plane", err)
		}
		res = append(res, p)
	}
	return res, storageErr("list planes", rows.Err())
}

func (q queries) InsertPlane(ctx context.Context, p *domain.Plane) error {
	res, err := q.db.ExecContext(ctx, `INSERT INTO planes(model,registration,status,created_at,updated_at) VALUES (?,?,?,?,?)`,
		p.Model, p.Registration, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(domain.CodeDuplicateRegistration, "registration %s already exists", p.Registration)
		}
		return storageErr("insert plane", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storageErr("insert plane", err)
	}
	p.ID = id
	return nil
}

func (q queries) UpdatePlane(ctx context.Context, p domain.Plane) error {
	res, err := q.db.ExecContext(ctx, `UPDATE planes SET model=?,registration=?,status=?,updated_at=? WHERE id=?`,
		p.Model, p.Registration, p.Status, p.UpdatedAt, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Conflict(domain.CodeDuplicateRegistration, "registration %s already exists", p.Registration)
		}
		return storageErr("update plane", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q queries) SetPlaneStatus(ctx context.Context, id int64, status domain.PlaneStatus, updatedAt string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE planes SET status=?,updated_at=? WHERE id=?`, status, updatedAt, id)
	if err != nil {
		return storageErr("set plane status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
