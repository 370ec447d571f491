// Package postgres is the server-grade Store: gorm over the pgx-backed
// postgres driver, serializable transactions and row locks on planes and
// flights read inside Atomic.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"skytrack/internal/domain"
	"skytrack/internal/repo"
)

const (
	pgErrUniqueViolation      = "23505"
	pgErrSerializationFailure = "40001"
	pgErrDeadlockDetected     = "40P01"
)

const notDeleted = "deleted_at IS NULL"

type Config struct {
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Store implements repo.Store on PostgreSQL.
type Store struct {
	gateway
	DB *gorm.DB
}

// Open connects and migrates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, domain.Unavailable(fmt.Errorf("ping postgres: %w", err))
	}
	if err := db.WithContext(ctx).AutoMigrate(&planeModel{}, &flightModel{}, &crewMemberModel{}, &assignmentModel{}, &eventModel{}); err != nil {
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return &Store{gateway: gateway{db: db}, DB: db}, nil
}

func (s *Store) Atomic(ctx context.Context, fn func(repo.Gateway) error) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gateway{db: tx, forUpdate: true})
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	return translate("transaction", err)
}

func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gateway struct {
	db        *gorm.DB
	forUpdate bool
}

// locked takes row locks on the selected rows when running inside Atomic.
func (g gateway) locked(ctx context.Context) *gorm.DB {
	q := g.db.WithContext(ctx)
	if g.forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

// translate maps driver errors onto repo.ErrNotFound and the domain kinds.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) || errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return uniqueConflict(pgErr)
		case pgErrSerializationFailure, pgErrDeadlockDetected:
			return domain.Unavailable(fmt.Errorf("%s: concurrent update, retry: %w", op, err))
		}
	}
	return domain.Unavailable(fmt.Errorf("%s: %w", op, err))
}

func uniqueConflict(pgErr *pgconn.PgError) error {
	switch pgErr.ConstraintName {
	case "flights_code_key":
		return domain.Conflict(domain.CodeDuplicateCode, "flight code already exists")
	case "planes_registration_key":
		return domain.Conflict(domain.CodeDuplicateRegistration, "registration already exists")
	case "crew_assignments_pair_key":
		return domain.Conflict(domain.CodeDuplicateAssignment, "crew member already assigned to flight")
	}
	return domain.Conflict("duplicate", "%s", pgErr.Message)
}

func (g gateway) GetPlane(ctx context.Context, id int64) (domain.Plane, error) {
	var m planeModel
	if err := g.locked(ctx).First(&m, id).Error; err != nil {
		return domain.Plane{}, translate("get plane", err)
	}
	return m.toDomain(), nil
}

func (g gateway) GetPlaneByRegistration(ctx context.Context, registration string) (domain.Plane, error) {
	var m planeModel
	if err := g.db.WithContext(ctx).Where("registration = ?", registration).First(&m).Error; err != nil {
		return domain.Plane{}, translate("get plane by registration", err)
	}
	return m.toDomain(), nil
}

func (g gateway) ListPlanes(ctx context.Context) ([]domain.Plane, error) {
	var models []planeModel
	if err := g.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, translate("list planes", err)
	}
	res := make([]domain.Plane, 0, len(models))
	for _, m := range models {
		res = append(res, m.toDomain())
	}
	return res, nil
}

func (g gateway) InsertPlane(ctx context.Context, p *domain.Plane) error {
	m := planeModel{
		Model:        p.Model,
		Registration: p.Registration,
		Status:       string(p.Status),
		CreatedAt:    parseTS(p.CreatedAt),
		UpdatedAt:    parseTS(p.UpdatedAt),
	}
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate("insert plane", err)
	}
	p.ID = m.ID
	return nil
}

func (g gateway) UpdatePlane(ctx context.Context, p domain.Plane) error {
	res := g.db.WithContext(ctx).Model(&planeModel{}).Where("id = ?", p.ID).Updates(map[string]any{
		"model":        p.Model,
		"registration": p.Registration,
		"status":       string(p.Status),
		"updated_at":   parseTS(p.UpdatedAt),
	})
	if res.Error != nil {
		return translate("update plane", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (g gateway) SetPlaneStatus(ctx context.Context, id int64, status domain.PlaneStatus, updatedAt string) error {
	res := g.db.WithContext(ctx).Model(&planeModel{}).Where("id = ?", id).Updates(map[string]any{
		"status":     string(status),
		"updated_at": parseTS(updatedAt),
	})
	if res.Error != nil {
		return translate("set plane status", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (g gateway) GetFlight(ctx context.Context, id int64) (domain.Flight, error) {
	var m flightModel
	if err := g.locked(ctx).First(&m, id).Error; err != nil {
		return domain.Flight{}, translate("get flight", err)
	}
	return m.toDomain(), nil
}

func (g gateway) GetFlightByCode(ctx context.Context, code string) (domain.Flight, error) {
	var m flightModel
	if err := g.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		return domain.Flight{}, translate("get flight by code", err)
	}
	return m.toDomain(), nil
}

func (g gateway) ListFlights(ctx context.Context, f repo.FlightFilter) ([]domain.Flight, error) {
	q := g.db.WithContext(ctx).Where(notDeleted)
	if f.Origin != "" {
		q = q.Where("origin = ?", f.Origin)
	}
	if f.Destination != "" {
		q = q.Where("destination = ?", f.Destination)
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	var models []flightModel
	if err := q.Order("id ASC").Find(&models).Error; err != nil {
		return nil, translate("list flights", err)
	}
	res := make([]domain.Flight, 0, len(models))
	for _, m := range models {
		res = append(res, m.toDomain())
	}
	return res, nil
}

func (g gateway) ActiveFlightForPlane(ctx context.Context, planeID, excludingFlightID int64) (*domain.Flight, error) {
	var models []flightModel
	err := g.locked(ctx).
		Where(notDeleted).
		Where("plane_id = ? AND id <> ?", planeID, excludingFlightID).
		Where("status NOT IN ?", []string{string(domain.StatusLanded), string(domain.StatusCancelled)}).
		Order("id ASC").Limit(1).Find(&models).Error
	if err != nil {
		return nil, translate("active flight for plane", err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	f := models[0].toDomain()
	return &f, nil
}

func (g gateway) InsertFlight(ctx context.Context, f *domain.Flight) error {
	m := flightFromDomain(*f)
	m.ID = 0
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate("insert flight", err)
	}
	f.ID = m.ID
	return nil
}

func (g gateway) UpdateFlight(ctx context.Context, f domain.Flight) error {
	m := flightFromDomain(f)
	res := g.db.WithContext(ctx).Model(&flightModel{}).Where("id = ?", f.ID).Updates(map[string]any{
		"code":           m.Code,
		"origin":         m.Origin,
		"destination":    m.Destination,
		"departure_time": m.DepartureTime,
		"arrival_time":   m.ArrivalTime,
		"status":         m.Status,
		"plane_id":       m.PlaneID,
		"deleted_at":     m.DeletedAt,
		"updated_at":     m.UpdatedAt,
	})
	if res.Error != nil {
		return translate("update flight", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (g gateway) GetCrewMember(ctx context.Context, id int64) (domain.CrewMember, error) {
	var m crewMemberModel
	if err := g.locked(ctx).First(&m, id).Error; err != nil {
		return domain.CrewMember{}, translate("get crew member", err)
	}
	return m.toDomain(), nil
}

func (g gateway) ListCrewMembers(ctx context.Context) ([]domain.CrewMember, error) {
	var models []crewMemberModel
	if err := g.db.WithContext(ctx).Where(notDeleted).Order("id ASC").Find(&models).Error; err != nil {
		return nil, translate("list crew members", err)
	}
	res := make([]domain.CrewMember, 0, len(models))
	for _, m := range models {
		res = append(res, m.toDomain())
	}
	return res, nil
}

func (g gateway) InsertCrewMember(ctx context.Context, c *domain.CrewMember) error {
	m := crewMemberModel{
		FullName:  c.FullName,
		Role:      c.Role,
		DeletedAt: parseTSPtr(c.DeletedAt),
		CreatedAt: parseTS(c.CreatedAt),
		UpdatedAt: parseTS(c.UpdatedAt),
	}
	if err := g.db.WithContext(ctx).Create(&m).Error; err != nil {
		return translate("insert crew member", err)
	}
	c.ID = m.ID
	return nil
}

func (g gateway) UpdateCrewMember(ctx context.Context, c domain.CrewMember) error {
	res := g.db.WithContext(ctx).Model(&crewMemberModel{}).Where("id = ?", c.ID).Updates(map[string]any{
		"full_name":  c.FullName,
		"role":       c.Role,
		"deleted_at": parseTSPtr(c.DeletedAt),
		"updated_at": parseTS(c.UpdatedAt),
	})
	if res.Error != nil {
		return translate("update crew member", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (g gateway) GetAssignment(ctx context.Context, flightID, crewMemberID int64) (domain.CrewAssignment, error) {
	var m assignmentModel
	err := g.db.WithContext(ctx).Where("flight_id = ? AND crew_member_id = ?", flightID, crewMemberID).First(&m).Error
	if err != nil {
		return domain.CrewAssignment{}, translate("get assignment", err)
	}
	return m.toDomain(), nil
}

func (g gateway) ListAssignments(ctx context.Context, flightID int64) ([]domain.CrewAssignment, error) {
	var models []assignmentModel
	err := g.db.WithContext(ctx).Preload("CrewMember").Where("flight_id = ?", flightID).Order("id ASC").Find(&models).Error
	if err != nil {
		return nil, translate("list assignments", err)
	}
	res := make([]domain.CrewAssignment, 0, len(models))
	for _, m := range models {
		res = append(res, m.toDomain())
	}
	return res, nil
}

func (g gateway) InsertAssignment(ctx context.Context, a *domain.CrewAssignment) error {
	m := assignmentModel{
		FlightID:     a.FlightID,
		CrewMemberID: a.CrewMemberID,
		CreatedAt:    parseTS(a.CreatedAt),
	}
	if err := g.db.WithContext(ctx).Omit(clause.Associations).Create(&m).Error; err != nil {
		return translate("insert assignment", err)
	}
	a.ID = m.ID
	return nil
}

func (g gateway) DeleteAssignment(ctx context.Context, id int64) error {
	res := g.db.WithContext(ctx).Delete(&assignmentModel{}, id)
	if res.Error != nil {
		return translate("delete assignment", res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (g gateway) CountAssignmentsForCrew(ctx context.Context, crewMemberID int64) (int, error) {
	var n int64
	if err := g.db.WithContext(ctx).Model(&assignmentModel{}).Where("crew_member_id = ?", crewMemberID).Count(&n).Error; err != nil {
		return 0, translate("count assignments", err)
	}
	return int(n), nil
}

func (g gateway) AppendEvent(ctx context.Context, evt domain.Event) error {
	m := eventModel{
		TS:          parseTS(evt.TS),
		Type:        evt.Type,
		EntityKind:  evt.EntityKind,
		EntityID:    evt.EntityID,
		ActorID:     evt.ActorID,
		PayloadJSON: evt.Payload,
	}
	return translate("append event", g.db.WithContext(ctx).Create(&m).Error)
}

func (g gateway) ListEvents(ctx context.Context, f repo.EventFilter) ([]domain.Event, error) {
	q := g.db.WithContext(ctx).Model(&eventModel{})
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.EntityKind != "" {
		q = q.Where("entity_kind = ?", f.EntityKind)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	order := "id DESC"
	if f.AfterID > 0 {
		q = q.Where("id > ?", f.AfterID)
		order = "id ASC"
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var models []eventModel
	if err := q.Order(order).Find(&models).Error; err != nil {
		return nil, translate("list events", err)
	}
	res := make([]domain.Event, 0, len(models))
	for _, m := range models {
		res = append(res, m.toDomain())
	}
	return res, nil
}

var _ repo.Store = (*Store)(nil)
