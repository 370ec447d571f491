package server

import (
	"encoding/json"
	"time"

	"skytrack/internal/domain"
)

// Request payloads

type CreateFlightRequest struct {
	Code          string    `json:"code" example:"SK100"`
	Origin        string    `json:"origin" example:"Mendoza"`
	Destination   string    `json:"destination" example:"Buenos Aires"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	Status        *string   `json:"status,omitempty" example:"PROGRAMADO"`
	PlaneID       *int64    `json:"plane_id,omitempty"`
}

// UpdateFlightRequest is a partial update. An explicit "plane_id": null
// unbinds the plane.
type UpdateFlightRequest struct {
	Code          *string    `json:"code,omitempty"`
	Origin        *string    `json:"origin,omitempty"`
	Destination   *string    `json:"destination,omitempty"`
	DepartureTime *time.Time `json:"departure_time,omitempty"`
	ArrivalTime   *time.Time `json:"arrival_time,omitempty"`
	Status        *string    `json:"status,omitempty"`
	PlaneID       *int64     `json:"plane_id,omitempty" nullable:"true"`
}

type AddCrewRequest struct {
	CrewMemberID int64 `json:"crew_member_id" minimum:"1"`
}

type CreatePlaneRequest struct {
	Model        string  `json:"model" example:"Boeing 737"`
	Registration string  `json:"registration" example:"LV-SKY1"`
	Status       *string `json:"status,omitempty" enum:"AVAILABLE,MAINTENANCE"`
}

type UpdatePlaneRequest struct {
	Model        *string `json:"model,omitempty"`
	Registration *string `json:"registration,omitempty"`
}

type CreateCrewMemberRequest struct {
	FullName string `json:"full_name" example:"Juan Pérez"`
	Role     string `json:"role" example:"Piloto"`
}

type UpdateCrewMemberRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Role     *string `json:"role,omitempty"`
}

// Response payloads

type FlightResponse struct {
	ID            int64   `json:"id"`
	Code          string  `json:"code"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	DepartureTime string  `json:"departure_time" format:"date-time"`
	ArrivalTime   string  `json:"arrival_time" format:"date-time"`
	Status        string  `json:"status" enum:"PROGRAMADO,EMBARCANDO,EN_VUELO,ATERRIZADO,CANCELADO"`
	PlaneID       *int64  `json:"plane_id"`
	State         string  `json:"state" enum:"ACTIVE,DELETED"`
	DeletedAt     *string `json:"deleted_at"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

type PlaneResponse struct {
	ID           int64  `json:"id"`
	Model        string `json:"model"`
	Registration string `json:"registration"`
	Status       string `json:"status" enum:"AVAILABLE,MAINTENANCE,IN_FLIGHT"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type CrewMemberResponse struct {
	ID        int64   `json:"id"`
	FullName  string  `json:"full_name"`
	Role      string  `json:"role"`
	State     string  `json:"state" enum:"ACTIVE,DELETED"`
	DeletedAt *string `json:"deleted_at"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type CrewAssignmentResponse struct {
	ID           int64               `json:"id"`
	FlightID     int64               `json:"flight_id"`
	CrewMemberID int64               `json:"crew_member_id"`
	CrewMember   *CrewMemberResponse `json:"crew_member,omitempty"`
	CreatedAt    string              `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   int64          `json:"entity_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload" jsonschema:"type=object,additionalProperties=true"`
}

func flightResponse(f domain.Flight) FlightResponse {
	return FlightResponse{
		ID:            f.ID,
		Code:          f.Code,
		Origin:        f.Origin,
		Destination:   f.Destination,
		DepartureTime: f.DepartureTime.UTC().Format(time.RFC3339),
		ArrivalTime:   f.ArrivalTime.UTC().Format(time.RFC3339),
		Status:        string(f.Status),
		PlaneID:       f.PlaneID,
		State:         string(f.State),
		DeletedAt:     f.DeletedAt,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
	}
}

func planeResponse(p domain.Plane) PlaneResponse {
	return PlaneResponse{
		ID:           p.ID,
		Model:        p.Model,
		Registration: p.Registration,
		Status:       string(p.Status),
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func crewMemberResponse(c domain.CrewMember) CrewMemberResponse {
	return CrewMemberResponse{
		ID:        c.ID,
		FullName:  c.FullName,
		Role:      c.Role,
		State:     string(c.State),
		DeletedAt: c.DeletedAt,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func assignmentResponse(a domain.CrewAssignment) CrewAssignmentResponse {
	resp := CrewAssignmentResponse{
		ID:           a.ID,
		FlightID:     a.FlightID,
		CrewMemberID: a.CrewMemberID,
		CreatedAt:    a.CreatedAt,
	}
	if a.CrewMember != nil {
		c := crewMemberResponse(*a.CrewMember)
		resp.CrewMember = &c
	}
	return resp
}

func eventResponse(evt domain.Event) EventResponse {
	payload := map[string]any{}
	if evt.Payload != "" {
		_ = json.Unmarshal([]byte(evt.Payload), &payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}

func mapFlights(items []domain.Flight) []FlightResponse {
	res := make([]FlightResponse, 0, len(items))
	for _, f := range items {
		res = append(res, flightResponse(f))
	}
	return res
}

func mapPlanes(items []domain.Plane) []PlaneResponse {
	res := make([]PlaneResponse, 0, len(items))
	for _, p := range items {
		res = append(res, planeResponse(p))
	}
	return res
}

func mapCrewMembers(items []domain.CrewMember) []CrewMemberResponse {
	res := make([]CrewMemberResponse, 0, len(items))
	for _, c := range items {
		res = append(res, crewMemberResponse(c))
	}
	return res
}

func mapAssignments(items []domain.CrewAssignment) []CrewAssignmentResponse {
	res := make([]CrewAssignmentResponse, 0, len(items))
	for _, a := range items {
		res = append(res, assignmentResponse(a))
	}
	return res
}

func mapEvents(items []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, e := range items {
		res = append(res, eventResponse(e))
	}
	return res
}
