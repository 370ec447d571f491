package engine

import (
	"context"
	"errors"
	"strings"

	"skytrack/internal/domain"
	"skytrack/internal/events"
	"skytrack/internal/lock"
	"skytrack/internal/metrics"
	"skytrack/internal/repo"
)

// PlaneRegistry tracks plane status. Only the flight transition logic in
// this package calls SetStatus.
type PlaneRegistry struct {
	now     func() string
	events  events.Writer
	metrics *metrics.Metrics
}

// SetStatus writes status unconditionally. An event is recorded only when
// the stored status actually changes.
func (r PlaneRegistry) SetStatus(ctx context.Context, gw repo.Gateway, planeID int64, status domain.PlaneStatus, actorID string) error {
	p, err := gw.GetPlane(ctx, planeID)
	if err != nil {
		return notFoundAs(err, func() error { return planeNotFound(planeID) })
	}
	if err := gw.SetPlaneStatus(ctx, planeID, status, r.now()); err != nil {
		return notFoundAs(err, func() error { return planeNotFound(planeID) })
	}
	if p.Status == status {
		return nil
	}
	r.metrics.PlaneStatusChanged(string(status))
	return r.events.Append(ctx, gw, events.PlaneStatusChanged, "plane", planeID, actorID, events.EventPayload{
		"from": p.Status,
		"to":   status,
	})
}

func (r PlaneRegistry) IsAvailable(ctx context.Context, gw repo.Gateway, planeID int64) (bool, error) {
	p, err := gw.GetPlane(ctx, planeID)
	if err != nil {
		return false, notFoundAs(err, func() error { return planeNotFound(planeID) })
	}
	return p.Status == domain.PlaneAvailable, nil
}

// FindConflictingActiveFlight returns a non-finalized, non-deleted flight
// other than excludingFlightID that is bound to the plane, or nil.
func (r PlaneRegistry) FindConflictingActiveFlight(ctx context.Context, gw repo.Gateway, planeID, excludingFlightID int64) (*domain.Flight, error) {
	return gw.ActiveFlightForPlane(ctx, planeID, excludingFlightID)
}

// ensureBindable checks that flightID may take the plane: it exists, no
// other active flight holds it and it is AVAILABLE. The holder check runs
// first so an airborne holder is reported as plane_in_use.
func (r PlaneRegistry) ensureBindable(ctx context.Context, gw repo.Gateway, planeID, flightID int64) error {
	ok, err := r.IsAvailable(ctx, gw, planeID)
	if err != nil {
		return err
	}
	other, err := r.FindConflictingActiveFlight(ctx, gw, planeID, flightID)
	if err != nil {
		return err
	}
	if other != nil {
		return domain.Conflict(domain.CodePlaneInUse, "plane %d already assigned to active flight %s", planeID, other.Code)
	}
	if !ok {
		return domain.Conflict(domain.CodePlaneUnavailable, "plane %d is not available", planeID)
	}
	return nil
}

// PlaneCreateOptions are parameters for registering a plane.
type PlaneCreateOptions struct {
	Model        string
	Registration string
	Status       domain.PlaneStatus
	ActorID      string
}

func (e Engine) CreatePlane(ctx context.Context, opts PlaneCreateOptions) (domain.Plane, error) {
	opts.Model = strings.TrimSpace(opts.Model)
	opts.Registration = strings.TrimSpace(opts.Registration)
	if opts.Model == "" || opts.Registration == "" {
		return domain.Plane{}, domain.Validation(domain.CodeInvalidField, "model and registration are required")
	}
	if opts.Status == "" {
		opts.Status = domain.PlaneAvailable
	}
	if opts.Status != domain.PlaneAvailable && opts.Status != domain.PlaneMaintenance {
		return domain.Plane{}, domain.Validation(domain.CodeInvalidField, "plane can only be registered as %s or %s", domain.PlaneAvailable, domain.PlaneMaintenance)
	}
	now := e.timestamp()
	p := domain.Plane{
		Model:        opts.Model,
		Registration: opts.Registration,
		Status:       opts.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := e.mutate(ctx, "create_plane", nil, func(gw repo.Gateway) error {
		if _, err := gw.GetPlaneByRegistration(ctx, p.Registration); err == nil {
			return domain.Conflict(domain.CodeDuplicateRegistration, "registration %s already exists", p.Registration)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := gw.InsertPlane(ctx, &p); err != nil {
			return err
		}
		return e.writer().Append(ctx, gw, events.PlaneCreated, "plane", p.ID, opts.ActorID, events.EventPayload{
			"registration": p.Registration,
			"status":       p.Status,
		})
	})
	if err != nil {
		return domain.Plane{}, err
	}
	return p, nil
}

// PlaneUpdateOptions changes descriptive plane fields. Status is not
// editable here; it follows the flights bound to the plane.
type PlaneUpdateOptions struct {
	ID           int64
	Model        *string
	Registration *string
	ActorID      string
}

func (e Engine) UpdatePlane(ctx context.Context, opts PlaneUpdateOptions) (domain.Plane, error) {
	var out domain.Plane
	err := e.mutate(ctx, "update_plane", []string{lock.PlaneKey(opts.ID)}, func(gw repo.Gateway) error {
		p, err := gw.GetPlane(ctx, opts.ID)
		if err != nil {
			return notFoundAs(err, func() error { return planeNotFound(opts.ID) })
		}
		changes := events.EventPayload{}
		if opts.Model != nil && strings.TrimSpace(*opts.Model) != p.Model {
			if strings.TrimSpace(*opts.Model) == "" {
				return domain.Validation(domain.CodeInvalidField, "model cannot be empty")
			}
			p.Model = strings.TrimSpace(*opts.Model)
			changes["model"] = p.Model
		}
		if opts.Registration != nil && strings.TrimSpace(*opts.Registration) != p.Registration {
			reg := strings.TrimSpace(*opts.Registration)
			if reg == "" {
				return domain.Validation(domain.CodeInvalidField, "registration cannot be empty")
			}
			if other, err := gw.GetPlaneByRegistration(ctx, reg); err == nil && other.ID != p.ID {
				return domain.Conflict(domain.CodeDuplicateRegistration, "registration %s already exists", reg)
			} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
				return err
			}
			p.Registration = reg
			changes["registration"] = reg
		}
		out = p
		if len(changes) == 0 {
			return nil
		}
		p.UpdatedAt = e.timestamp()
		if err := gw.UpdatePlane(ctx, p); err != nil {
			return err
		}
		out = p
		return e.writer().Append(ctx, gw, events.PlaneUpdated, "plane", p.ID, opts.ActorID, changes)
	})
	if err != nil {
		return domain.Plane{}, err
	}
	return out, nil
}

func (e Engine) GetPlane(ctx context.Context, id int64) (domain.Plane, error) {
	p, err := e.Store.GetPlane(ctx, id)
	if err != nil {
		return domain.Plane{}, notFoundAs(err, func() error { return planeNotFound(id) })
	}
	return p, nil
}

func (e Engine) ListPlanes(ctx context.Context) ([]domain.Plane, error) {
	items, err := e.Store.ListPlanes(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Plane{}
	}
	return items, nil
}
