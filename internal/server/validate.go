package server

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"skytrack/internal/domain"
	"skytrack/internal/engine"
	"skytrack/internal/repo"
)

// Request validators run before the engine is called. The engine re-checks
// the invariants it depends on.

func badRequest(code, msg string, details map[string]any) huma.StatusError {
	return newAPIError(http.StatusBadRequest, code, msg, details)
}

func parseStatus(raw *string) (domain.FlightStatus, huma.StatusError) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return "", nil
	}
	s, ok := domain.ParseFlightStatus(strings.TrimSpace(*raw))
	if !ok {
		return "", badRequest(domain.CodeInvalidField, "unknown flight status "+*raw, map[string]any{"status": *raw})
	}
	return s, nil
}

func validateCreateFlight(req CreateFlightRequest, actorID string) (engine.FlightCreateOptions, huma.StatusError) {
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if !domain.ValidFlightCode(code) {
		return engine.FlightCreateOptions{}, badRequest(domain.CodeInvalidCode, "code must match SK<digits>", map[string]any{"code": req.Code})
	}
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		return engine.FlightCreateOptions{}, badRequest(domain.CodeInvalidField, "origin and destination are required", nil)
	}
	if req.DepartureTime.IsZero() || req.ArrivalTime.IsZero() {
		return engine.FlightCreateOptions{}, badRequest(domain.CodeInvalidTime, "departure_time and arrival_time are required", nil)
	}
	status, apiErr := parseStatus(req.Status)
	if apiErr != nil {
		return engine.FlightCreateOptions{}, apiErr
	}
	return engine.FlightCreateOptions{
		Code:          code,
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
		Status:        status,
		PlaneID:       req.PlaneID,
		ActorID:       actorID,
	}, nil
}

// validateUpdateFlight builds engine options from the decoded body. unbind
// is true when the raw body carried "plane_id": null.
func validateUpdateFlight(id int64, req UpdateFlightRequest, unbind bool, actorID string) (engine.FlightUpdateOptions, huma.StatusError) {
	opts := engine.FlightUpdateOptions{
		ID:            id,
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
		PlaneID:       req.PlaneID,
		UnbindPlane:   unbind && req.PlaneID == nil,
		ActorID:       actorID,
	}
	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		if !domain.ValidFlightCode(code) {
			return opts, badRequest(domain.CodeInvalidCode, "code must match SK<digits>", map[string]any{"code": *req.Code})
		}
		opts.Code = &code
	}
	if (req.DepartureTime != nil && req.DepartureTime.IsZero()) || (req.ArrivalTime != nil && req.ArrivalTime.IsZero()) {
		return opts, badRequest(domain.CodeInvalidTime, "departure_time and arrival_time must be valid instants", nil)
	}
	status, apiErr := parseStatus(req.Status)
	if apiErr != nil {
		return opts, apiErr
	}
	if status != "" {
		opts.Status = &status
	}
	return opts, nil
}

func validateFlightFilter(origin, destination, status string) (repo.FlightFilter, huma.StatusError) {
	f := repo.FlightFilter{
		Origin:      strings.TrimSpace(origin),
		Destination: strings.TrimSpace(destination),
	}
	if status != "" {
		s, apiErr := parseStatus(&status)
		if apiErr != nil {
			return f, apiErr
		}
		f.Status = s
	}
	return f, nil
}

func validateCreatePlane(req CreatePlaneRequest, actorID string) (engine.PlaneCreateOptions, huma.StatusError) {
	opts := engine.PlaneCreateOptions{
		Model:        strings.TrimSpace(req.Model),
		Registration: strings.ToUpper(strings.TrimSpace(req.Registration)),
		ActorID:      actorID,
	}
	if opts.Model == "" || opts.Registration == "" {
		return opts, badRequest(domain.CodeInvalidField, "model and registration are required", nil)
	}
	if req.Status != nil {
		s := domain.PlaneStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		if s != domain.PlaneAvailable && s != domain.PlaneMaintenance {
			return opts, badRequest(domain.CodeInvalidField, "status must be AVAILABLE or MAINTENANCE", map[string]any{"status": *req.Status})
		}
		opts.Status = s
	}
	return opts, nil
}

func validateCreateCrewMember(req CreateCrewMemberRequest, actorID string) (engine.CrewCreateOptions, huma.StatusError) {
	if strings.TrimSpace(req.FullName) == "" {
		return engine.CrewCreateOptions{}, badRequest(domain.CodeInvalidField, "full_name is required", nil)
	}
	return engine.CrewCreateOptions{FullName: req.FullName, Role: req.Role, ActorID: actorID}, nil
}
