package engine

import (
	"context"

	"skytrack/internal/domain"
	"skytrack/internal/repo"
)

// ensureFlightTransition enforces the flight status graph. Staying in the
// same status is always allowed; finalized statuses have no exits.
func ensureFlightTransition(from, to domain.FlightStatus) error {
	if from == to {
		return nil
	}
	switch from {
	case domain.StatusScheduled:
		if to == domain.StatusBoarding || to == domain.StatusInFlight || to == domain.StatusCancelled {
			return nil
		}
	case domain.StatusBoarding:
		if to == domain.StatusInFlight || to == domain.StatusLanded || to == domain.StatusCancelled {
			return nil
		}
	case domain.StatusInFlight:
		if to == domain.StatusLanded || to == domain.StatusCancelled {
			return nil
		}
	case domain.StatusLanded, domain.StatusCancelled:
		return domain.InvalidTransition(domain.CodeFlightFinalized, "flight is %s and can no longer change status", from)
	}
	return domain.InvalidTransition(domain.CodeInvalidTransition, "invalid flight status transition %s -> %s", from, to)
}

// applyPlaneEffects is the single place where flight changes drive plane
// status. before is nil for a newly created flight. Steps run in order:
// release a plane the flight no longer holds, mark the bound plane
// IN_FLIGHT while airborne, and release it once the flight is finalized or
// deleted.
//
// A flight that was already finalized no longer owns its plane, so deleting
// it never touches a plane another flight may have taken since.
func (e Engine) applyPlaneEffects(ctx context.Context, gw repo.Gateway, before *domain.Flight, after domain.Flight, actorID string) error {
	reg := e.PlaneRegistry()
	held := before != nil && before.PlaneID != nil && !before.Finalized() && !before.IsDeleted()
	if held && !samePlane(before.PlaneID, after.PlaneID) {
		if err := reg.SetStatus(ctx, gw, *before.PlaneID, domain.PlaneAvailable, actorID); err != nil {
			return err
		}
	}
	if after.PlaneID == nil {
		return nil
	}
	switch {
	case after.IsDeleted(), after.Finalized():
		if !held {
			return nil
		}
		return reg.SetStatus(ctx, gw, *after.PlaneID, domain.PlaneAvailable, actorID)
	case after.Status == domain.StatusInFlight:
		return reg.SetStatus(ctx, gw, *after.PlaneID, domain.PlaneInFlight, actorID)
	}
	return nil
}
