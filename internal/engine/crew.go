package engine

import (
	"context"
	"errors"
	"strings"

	"skytrack/internal/domain"
	"skytrack/internal/events"
	"skytrack/internal/lock"
	"skytrack/internal/repo"
)

type CrewCreateOptions struct {
	FullName string
	Role     string
	ActorID  string
}

func (e Engine) CreateCrewMember(ctx context.Context, opts CrewCreateOptions) (domain.CrewMember, error) {
	opts.FullName = strings.TrimSpace(opts.FullName)
	if opts.FullName == "" {
		return domain.CrewMember{}, domain.Validation(domain.CodeInvalidField, "full name is required")
	}
	now := e.timestamp()
	c := domain.CrewMember{
		FullName:  opts.FullName,
		Role:      strings.TrimSpace(opts.Role),
		State:     domain.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := e.mutate(ctx, "create_crew", nil, func(gw repo.Gateway) error {
		if err := gw.InsertCrewMember(ctx, &c); err != nil {
			return err
		}
		return e.writer().Append(ctx, gw, events.CrewCreated, "crew", c.ID, opts.ActorID, events.EventPayload{
			"full_name": c.FullName,
			"role":      c.Role,
		})
	})
	if err != nil {
		return domain.CrewMember{}, err
	}
	return c, nil
}

type CrewUpdateOptions struct {
	ID       int64
	FullName *string
	Role     *string
	ActorID  string
}

func (e Engine) UpdateCrewMember(ctx context.Context, opts CrewUpdateOptions) (domain.CrewMember, error) {
	if opts.FullName != nil && strings.TrimSpace(*opts.FullName) == "" {
		return domain.CrewMember{}, domain.Validation(domain.CodeInvalidField, "full name cannot be empty")
	}
	var out domain.CrewMember
	err := e.mutate(ctx, "update_crew", []string{lock.CrewKey(opts.ID)}, func(gw repo.Gateway) error {
		c, err := activeCrewMember(ctx, gw, opts.ID)
		if err != nil {
			return err
		}
		changes := events.EventPayload{}
		if opts.FullName != nil && strings.TrimSpace(*opts.FullName) != c.FullName {
			c.FullName = strings.TrimSpace(*opts.FullName)
			changes["full_name"] = c.FullName
		}
		if opts.Role != nil && strings.TrimSpace(*opts.Role) != c.Role {
			c.Role = strings.TrimSpace(*opts.Role)
			changes["role"] = c.Role
		}
		out = c
		if len(changes) == 0 {
			return nil
		}
		c.UpdatedAt = e.timestamp()
		if err := gw.UpdateCrewMember(ctx, c); err != nil {
			return err
		}
		out = c
		return e.writer().Append(ctx, gw, events.CrewUpdated, "crew", c.ID, opts.ActorID, changes)
	})
	if err != nil {
		return domain.CrewMember{}, err
	}
	return out, nil
}

// SoftDeleteCrewMember fails while the member has any assignment, whatever
// the status of the flight it belongs to.
func (e Engine) SoftDeleteCrewMember(ctx context.Context, id int64, actorID string) (domain.CrewMember, error) {
	var out domain.CrewMember
	err := e.mutate(ctx, "delete_crew", []string{lock.CrewKey(id)}, func(gw repo.Gateway) error {
		c, err := activeCrewMember(ctx, gw, id)
		if err != nil {
			return err
		}
		n, err := gw.CountAssignmentsForCrew(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.Conflict(domain.CodeCrewAssigned, "crew member %d has %d flight assignment(s)", id, n)
		}
		now := e.timestamp()
		c.State = domain.Deleted
		c.DeletedAt = &now
		c.UpdatedAt = now
		if err := gw.UpdateCrewMember(ctx, c); err != nil {
			return err
		}
		out = c
		return e.writer().Append(ctx, gw, events.CrewDeleted, "crew", id, actorID, nil)
	})
	if err != nil {
		return domain.CrewMember{}, err
	}
	return out, nil
}

// GetCrewMember returns a crew member by id, including soft-deleted ones.
func (e Engine) GetCrewMember(ctx context.Context, id int64) (domain.CrewMember, error) {
	c, err := e.Store.GetCrewMember(ctx, id)
	if err != nil {
		return domain.CrewMember{}, notFoundAs(err, func() error { return crewNotFound(id) })
	}
	return c, nil
}

func (e Engine) ListCrewMembers(ctx context.Context) ([]domain.CrewMember, error) {
	items, err := e.Store.ListCrewMembers(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.CrewMember{}
	}
	return items, nil
}

// AddCrewMember assigns a crew member to a flight that is still open.
func (e Engine) AddCrewMember(ctx context.Context, flightID, crewMemberID int64, actorID string) (domain.CrewAssignment, error) {
	var out domain.CrewAssignment
	keys := []string{lock.FlightKey(flightID), lock.CrewKey(crewMemberID)}
	err := e.mutate(ctx, "add_crew", keys, func(gw repo.Gateway) error {
		if _, err := openFlight(ctx, gw, flightID); err != nil {
			return err
		}
		c, err := activeCrewMember(ctx, gw, crewMemberID)
		if err != nil {
			return err
		}
		if _, err := gw.GetAssignment(ctx, flightID, crewMemberID); err == nil {
			return domain.Conflict(domain.CodeDuplicateAssignment, "crew member %d already assigned to flight %d", crewMemberID, flightID)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		a := domain.CrewAssignment{
			FlightID:     flightID,
			CrewMemberID: crewMemberID,
			CreatedAt:    e.timestamp(),
		}
		if err := gw.InsertAssignment(ctx, &a); err != nil {
			return err
		}
		a.CrewMember = &c
		out = a
		return e.writer().Append(ctx, gw, events.CrewAssigned, "flight", flightID, actorID, events.EventPayload{
			"crew_member_id": crewMemberID,
			"assignment_id":  a.ID,
		})
	})
	if err != nil {
		return domain.CrewAssignment{}, err
	}
	return out, nil
}

// RemoveCrewMember deletes the assignment row and returns it as it was.
func (e Engine) RemoveCrewMember(ctx context.Context, flightID, crewMemberID int64, actorID string) (domain.CrewAssignment, error) {
	var out domain.CrewAssignment
	keys := []string{lock.FlightKey(flightID), lock.CrewKey(crewMemberID)}
	err := e.mutate(ctx, "remove_crew", keys, func(gw repo.Gateway) error {
		if _, err := openFlight(ctx, gw, flightID); err != nil {
			return err
		}
		a, err := gw.GetAssignment(ctx, flightID, crewMemberID)
		if err != nil {
			return notFoundAs(err, func() error {
				return domain.NotFound(domain.CodeAssignmentNotFound, "crew member %d is not assigned to flight %d", crewMemberID, flightID)
			})
		}
		if err := gw.DeleteAssignment(ctx, a.ID); err != nil {
			return err
		}
		out = a
		return e.writer().Append(ctx, gw, events.CrewUnassigned, "flight", flightID, actorID, events.EventPayload{
			"crew_member_id": crewMemberID,
			"assignment_id":  a.ID,
		})
	})
	if err != nil {
		return domain.CrewAssignment{}, err
	}
	return out, nil
}

// GetCrewForFlight lists a flight's assignments in insertion order.
func (e Engine) GetCrewForFlight(ctx context.Context, flightID int64) ([]domain.CrewAssignment, error) {
	f, err := e.Store.GetFlight(ctx, flightID)
	if err != nil {
		return nil, notFoundAs(err, func() error { return flightNotFound(flightID) })
	}
	if f.IsDeleted() {
		return nil, flightNotFound(flightID)
	}
	return e.Store.ListAssignments(ctx, flightID)
}

// openFlight loads a flight whose roster may still change.
func openFlight(ctx context.Context, gw repo.Gateway, id int64) (domain.Flight, error) {
	f, err := gw.GetFlight(ctx, id)
	if err != nil {
		return domain.Flight{}, notFoundAs(err, func() error { return flightNotFound(id) })
	}
	if f.IsDeleted() {
		return domain.Flight{}, flightNotFound(id)
	}
	if f.Finalized() {
		return domain.Flight{}, domain.InvalidTransition(domain.CodeFlightFinalized, "flight %s is %s and its crew can no longer change", f.Code, f.Status)
	}
	return f, nil
}

func activeCrewMember(ctx context.Context, gw repo.Gateway, id int64) (domain.CrewMember, error) {
	c, err := gw.GetCrewMember(ctx, id)
	if err != nil {
		return domain.CrewMember{}, notFoundAs(err, func() error { return crewNotFound(id) })
	}
	if c.IsDeleted() {
		return domain.CrewMember{}, crewNotFound(id)
	}
	return c, nil
}
