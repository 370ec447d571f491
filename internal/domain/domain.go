package domain

import (
	"regexp"
	"time"
)

type PlaneStatus string

const (
	PlaneAvailable   PlaneStatus = "AVAILABLE"
	PlaneMaintenance PlaneStatus = "MAINTENANCE"
	PlaneInFlight    PlaneStatus = "IN_FLIGHT"
)

func (s PlaneStatus) Valid() bool {
	switch s {
	case PlaneAvailable, PlaneMaintenance, PlaneInFlight:
		return true
	}
	return false
}

type FlightStatus string

const (
	StatusScheduled FlightStatus = "PROGRAMADO"
	StatusBoarding  FlightStatus = "EMBARCANDO"
	StatusInFlight  FlightStatus = "EN_VUELO"
	StatusLanded    FlightStatus = "ATERRIZADO"
	StatusCancelled FlightStatus = "CANCELADO"
)

// FlightStatuses lists every flight status in lifecycle order.
var FlightStatuses = []FlightStatus{StatusScheduled, StatusBoarding, StatusInFlight, StatusLanded, StatusCancelled}

var flightStatusAliases = map[string]FlightStatus{
	"SCHEDULED": StatusScheduled,
	"BOARDING":  StatusBoarding,
	"IN_FLIGHT": StatusInFlight,
	"LANDED":    StatusLanded,
	"CANCELLED": StatusCancelled,
}

// ParseFlightStatus accepts both the stored names and their English aliases.
func ParseFlightStatus(s string) (FlightStatus, bool) {
	if st := FlightStatus(s); st.Valid() {
		return st, true
	}
	alias, ok := flightStatusAliases[s]
	return alias, ok
}

func (s FlightStatus) Valid() bool {
	for _, known := range FlightStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Finalized reports whether s is terminal (landed or cancelled).
func (s FlightStatus) Finalized() bool {
	return s == StatusLanded || s == StatusCancelled
}

// Lifecycle tags a soft-deletable record.
type Lifecycle string

const (
	Active  Lifecycle = "ACTIVE"
	Deleted Lifecycle = "DELETED"
)

var flightCodePattern = regexp.MustCompile(`^SK[0-9]+$`)

func ValidFlightCode(code string) bool {
	return flightCodePattern.MatchString(code)
}

type Plane struct {
	ID           int64       `json:"id"`
	Model        string      `json:"model"`
	Registration string      `json:"registration"`
	Status       PlaneStatus `json:"status" enum:"AVAILABLE,MAINTENANCE,IN_FLIGHT"`
	CreatedAt    string      `json:"created_at" format:"date-time"`
	UpdatedAt    string      `json:"updated_at" format:"date-time"`
}

type Flight struct {
	ID            int64        `json:"id"`
	Code          string       `json:"code"`
	Origin        string       `json:"origin"`
	Destination   string       `json:"destination"`
	DepartureTime time.Time    `json:"departure_time"`
	ArrivalTime   time.Time    `json:"arrival_time"`
	Status        FlightStatus `json:"status" enum:"PROGRAMADO,EMBARCANDO,EN_VUELO,ATERRIZADO,CANCELADO"`
	PlaneID       *int64       `json:"plane_id,omitempty"`
	State         Lifecycle    `json:"state" enum:"ACTIVE,DELETED"`
	DeletedAt     *string      `json:"deleted_at,omitempty" format:"date-time"`
	CreatedAt     string       `json:"created_at" format:"date-time"`
	UpdatedAt     string       `json:"updated_at" format:"date-time"`
}

func (f Flight) Finalized() bool { return f.Status.Finalized() }

func (f Flight) IsDeleted() bool { return f.State == Deleted }

// Holds reports whether f is an active flight bound to planeID.
func (f Flight) Holds(planeID int64) bool {
	return f.PlaneID != nil && *f.PlaneID == planeID && !f.Finalized() && !f.IsDeleted()
}

type CrewMember struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	State     Lifecycle `json:"state" enum:"ACTIVE,DELETED"`
	DeletedAt *string   `json:"deleted_at,omitempty" format:"date-time"`
	CreatedAt string    `json:"created_at" format:"date-time"`
	UpdatedAt string    `json:"updated_at" format:"date-time"`
}

func (c CrewMember) IsDeleted() bool { return c.State == Deleted }

type CrewAssignment struct {
	ID           int64       `json:"id"`
	FlightID     int64       `json:"flight_id"`
	CrewMemberID int64       `json:"crew_member_id"`
	CrewMember   *CrewMember `json:"crew_member,omitempty"`
	CreatedAt    string      `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   int64  `json:"entity_id"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload"`
}
