package engine

import (
	"context"
	"fmt"
	"time"

	"skytrack/internal/domain"
)

// SeedResult summarises what Seed created.
type SeedResult struct {
	Planes      []domain.Plane          `json:"planes"`
	Crew        []domain.CrewMember     `json:"crew"`
	Flights     []domain.Flight         `json:"flights"`
	Assignments []domain.CrewAssignment `json:"assignments"`
	Skipped     bool                    `json:"skipped"`
}

// Seed loads a small demo fleet through the regular engine operations. It
// does nothing when any plane is already registered.
func (e Engine) Seed(ctx context.Context, actorID string) (SeedResult, error) {
	var res SeedResult
	existing, err := e.ListPlanes(ctx)
	if err != nil {
		return res, err
	}
	if len(existing) > 0 {
		res.Skipped = true
		return res, nil
	}

	for _, p := range []PlaneCreateOptions{
		{Model: "Boeing 737", Registration: "LV-SKY1", Status: domain.PlaneAvailable},
		{Model: "Airbus A320", Registration: "LV-SKY2", Status: domain.PlaneMaintenance},
	} {
		p.ActorID = actorID
		plane, err := e.CreatePlane(ctx, p)
		if err != nil {
			return res, fmt.Errorf("seed plane %s: %w", p.Registration, err)
		}
		res.Planes = append(res.Planes, plane)
	}

	for _, c := range []CrewCreateOptions{
		{FullName: "Juan Pérez", Role: "Piloto"},
		{FullName: "María Gómez", Role: "Copiloto"},
		{FullName: "Lucía Fernández", Role: "Azafata"},
	} {
		c.ActorID = actorID
		member, err := e.CreateCrewMember(ctx, c)
		if err != nil {
			return res, fmt.Errorf("seed crew %s: %w", c.FullName, err)
		}
		res.Crew = append(res.Crew, member)
	}

	now := e.now().UTC().Truncate(time.Minute)
	planeID := res.Planes[0].ID
	for _, f := range []FlightCreateOptions{
		{
			Code: "SK100", Origin: "Mendoza", Destination: "Buenos Aires",
			DepartureTime: now.Add(30 * time.Minute), ArrivalTime: now.Add(150 * time.Minute),
			Status: domain.StatusBoarding, PlaneID: &planeID,
		},
		{
			Code: "SK300", Origin: "Córdoba", Destination: "Mendoza",
			DepartureTime: now.Add(6 * time.Hour), ArrivalTime: now.Add(8 * time.Hour),
			Status: domain.StatusScheduled,
		},
	} {
		f.ActorID = actorID
		flight, err := e.CreateFlight(ctx, f)
		if err != nil {
			return res, fmt.Errorf("seed flight %s: %w", f.Code, err)
		}
		res.Flights = append(res.Flights, flight)
	}

	for _, c := range res.Crew {
		a, err := e.AddCrewMember(ctx, res.Flights[0].ID, c.ID, actorID)
		if err != nil {
			return res, fmt.Errorf("seed assignment %s: %w", c.FullName, err)
		}
		res.Assignments = append(res.Assignments, a)
	}
	return res, nil
}
