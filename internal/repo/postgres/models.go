package postgres

import (
	"time"

	"skytrack/internal/domain"
)

type planeModel struct {
	ID           int64     `gorm:"column:id;primaryKey"`
	Model        string    `gorm:"column:model;not null"`
	Registration string    `gorm:"column:registration;not null;uniqueIndex:planes_registration_key"`
	Status       string    `gorm:"column:status;not null;default:AVAILABLE"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (planeModel) TableName() string { return "planes" }

type flightModel struct {
	ID            int64      `gorm:"column:id;primaryKey"`
	Code          string     `gorm:"column:code;not null;uniqueIndex:flights_code_key"`
	Origin        string     `gorm:"column:origin;not null"`
	Destination   string     `gorm:"column:destination;not null"`
	DepartureTime time.Time  `gorm:"column:departure_time;not null"`
	ArrivalTime   time.Time  `gorm:"column:arrival_time;not null"`
	Status        string     `gorm:"column:status;not null;default:PROGRAMADO;index"`
	PlaneID       *int64     `gorm:"column:plane_id;index"`
	DeletedAt     *time.Time `gorm:"column:deleted_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (flightModel) TableName() string { return "flights" }

type crewMemberModel struct {
	ID        int64      `gorm:"column:id;primaryKey"`
	FullName  string     `gorm:"column:full_name;not null"`
	Role      string     `gorm:"column:role;not null"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (crewMemberModel) TableName() string { return "crew_members" }

type assignmentModel struct {
	ID           int64           `gorm:"column:id;primaryKey"`
	FlightID     int64           `gorm:"column:flight_id;not null;uniqueIndex:crew_assignments_pair_key,priority:1"`
	CrewMemberID int64           `gorm:"column:crew_member_id;not null;uniqueIndex:crew_assignments_pair_key,priority:2;index"`
	CrewMember   crewMemberModel `gorm:"foreignKey:CrewMemberID"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime:false"`
}

func (assignmentModel) TableName() string { return "crew_assignments" }

type eventModel struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	TS          time.Time `gorm:"column:ts;not null"`
	Type        string    `gorm:"column:type;not null"`
	EntityKind  string    `gorm:"column:entity_kind;not null;index:events_entity_idx,priority:1"`
	EntityID    int64     `gorm:"column:entity_id;not null;index:events_entity_idx,priority:2"`
	ActorID     string    `gorm:"column:actor_id"`
	PayloadJSON string    `gorm:"column:payload_json;type:jsonb;not null;default:'{}'"`
}

func (eventModel) TableName() string { return "events" }

func parseTS(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func formatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTSPtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseTS(*s)
	return &t
}

func lifecycle(deletedAt *time.Time) (domain.Lifecycle, *string) {
	if deletedAt == nil {
		return domain.Active, nil
	}
	v := formatTS(*deletedAt)
	return domain.Deleted, &v
}

func (m planeModel) toDomain() domain.Plane {
	return domain.Plane{
		ID:           m.ID,
		Model:        m.Model,
		Registration: m.Registration,
		Status:       domain.PlaneStatus(m.Status),
		CreatedAt:    formatTS(m.CreatedAt),
		UpdatedAt:    formatTS(m.UpdatedAt),
	}
}

func (m flightModel) toDomain() domain.Flight {
	f := domain.Flight{
		ID:            m.ID,
		Code:          m.Code,
		Origin:        m.Origin,
		Destination:   m.Destination,
		DepartureTime: m.DepartureTime.UTC(),
		ArrivalTime:   m.ArrivalTime.UTC(),
		Status:        domain.FlightStatus(m.Status),
		PlaneID:       m.PlaneID,
		CreatedAt:     formatTS(m.CreatedAt),
		UpdatedAt:     formatTS(m.UpdatedAt),
	}
	f.State, f.DeletedAt = lifecycle(m.DeletedAt)
	return f
}

func flightFromDomain(f domain.Flight) flightModel {
	return flightModel{
		ID:            f.ID,
		Code:          f.Code,
		Origin:        f.Origin,
		Destination:   f.Destination,
		DepartureTime: f.DepartureTime.UTC(),
		ArrivalTime:   f.ArrivalTime.UTC(),
		Status:        string(f.Status),
		PlaneID:       f.PlaneID,
		DeletedAt:     parseTSPtr(f.DeletedAt),
		CreatedAt:     parseTS(f.CreatedAt),
		UpdatedAt:     parseTS(f.UpdatedAt),
	}
}

func (m crewMemberModel) toDomain() domain.CrewMember {
	c := domain.CrewMember{
		ID:        m.ID,
		FullName:  m.FullName,
		Role:      m.Role,
		CreatedAt: formatTS(m.CreatedAt),
		UpdatedAt: formatTS(m.UpdatedAt),
	}
	c.State, c.DeletedAt = lifecycle(m.DeletedAt)
	return c
}

func (m assignmentModel) toDomain() domain.CrewAssignment {
	a := domain.CrewAssignment{
		ID:           m.ID,
		FlightID:     m.FlightID,
		CrewMemberID: m.CrewMemberID,
		CreatedAt:    formatTS(m.CreatedAt),
	}
	if m.CrewMember.ID != 0 {
		c := m.CrewMember.toDomain()
		a.CrewMember = &c
	}
	return a
}

func (m eventModel) toDomain() domain.Event {
	return domain.Event{
		ID:         m.ID,
		TS:         formatTS(m.TS),
		Type:       m.Type,
		EntityKind: m.EntityKind,
		EntityID:   m.EntityID,
		ActorID:    m.ActorID,
		Payload:    m.PayloadJSON,
	}
}
