package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"skytrack/internal/domain"
	"skytrack/internal/events"
	"skytrack/internal/lock"
	"skytrack/internal/repo"
)

// FlightCreateOptions are parameters for scheduling a flight.
type FlightCreateOptions struct {
	Code          string
	Origin        string
	Destination   string
	DepartureTime time.Time
	ArrivalTime   time.Time
	// Status defaults to PROGRAMADO. Any non-finalized status is accepted.
	Status  domain.FlightStatus
	PlaneID *int64
	ActorID string
}

func (e Engine) CreateFlight(ctx context.Context, opts FlightCreateOptions) (domain.Flight, error) {
	opts.Code = strings.TrimSpace(opts.Code)
	if !domain.ValidFlightCode(opts.Code) {
		return domain.Flight{}, domain.Validation(domain.CodeInvalidCode, "flight code %q must match SK<digits>", opts.Code)
	}
	if opts.DepartureTime.IsZero() || opts.ArrivalTime.IsZero() {
		return domain.Flight{}, domain.Validation(domain.CodeInvalidTime, "departure and arrival times are required")
	}
	opts.Origin = strings.TrimSpace(opts.Origin)
	opts.Destination = strings.TrimSpace(opts.Destination)
	if opts.Origin == "" || opts.Destination == "" {
		return domain.Flight{}, domain.Validation(domain.CodeInvalidField, "origin and destination are required")
	}
	if opts.Status == "" {
		opts.Status = domain.StatusScheduled
	}
	if !opts.Status.Valid() {
		return domain.Flight{}, domain.Validation(domain.CodeInvalidField, "unknown flight status %q", opts.Status)
	}
	if opts.Status.Finalized() {
		return domain.Flight{}, domain.InvalidTransition(domain.CodeInvalidTransition, "flight cannot be created as %s", opts.Status)
	}
	if opts.Status == domain.StatusInFlight && opts.PlaneID == nil {
		return domain.Flight{}, domain.InvalidTransition(domain.CodeEnRouteWithoutPlane, "flight %s cannot be %s without a plane", opts.Code, opts.Status)
	}

	now := e.timestamp()
	f := domain.Flight{
		Code:          opts.Code,
		Origin:        opts.Origin,
		Destination:   opts.Destination,
		DepartureTime: opts.DepartureTime.UTC(),
		ArrivalTime:   opts.ArrivalTime.UTC(),
		Status:        opts.Status,
		PlaneID:       opts.PlaneID,
		State:         domain.Active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	var keys []string
	if opts.PlaneID != nil {
		keys = append(keys, lock.PlaneKey(*opts.PlaneID))
	}
	err := e.mutate(ctx, "create_flight", keys, func(gw repo.Gateway) error {
		if err := ensureCodeFree(ctx, gw, f.Code, 0); err != nil {
			return err
		}
		if f.PlaneID != nil {
			if err := e.PlaneRegistry().ensureBindable(ctx, gw, *f.PlaneID, 0); err != nil {
				return err
			}
		}
		if err := gw.InsertFlight(ctx, &f); err != nil {
			return err
		}
		if err := e.applyPlaneEffects(ctx, gw, nil, f, opts.ActorID); err != nil {
			return err
		}
		return e.writer().Append(ctx, gw, events.FlightCreated, "flight", f.ID, opts.ActorID, events.EventPayload{
			"code":     f.Code,
			"status":   f.Status,
			"plane_id": planeRef(f.PlaneID),
		})
	})
	if err != nil {
		return domain.Flight{}, err
	}
	e.Metrics.Transition("", string(f.Status))
	return f, nil
}

// FlightUpdateOptions is a partial update. Nil fields keep their current
// value. PlaneID binds a plane; UnbindPlane clears the binding and wins over
// a nil PlaneID only.
type FlightUpdateOptions struct {
	ID            int64
	Code          *string
	Origin        *string
	Destination   *string
	DepartureTime *time.Time
	ArrivalTime   *time.Time
	Status        *domain.FlightStatus
	PlaneID       *int64
	UnbindPlane   bool
	ActorID       string
}

func (opts FlightUpdateOptions) resultingPlane(cur *int64) *int64 {
	switch {
	case opts.PlaneID != nil:
		id := *opts.PlaneID
		return &id
	case opts.UnbindPlane:
		return nil
	}
	return cur
}

// apply returns the flight with the patch applied and the names of the
// fields whose value changed.
func (opts FlightUpdateOptions) apply(f domain.Flight) (domain.Flight, []string) {
	var changed []string
	if opts.Code != nil && strings.TrimSpace(*opts.Code) != f.Code {
		f.Code = strings.TrimSpace(*opts.Code)
		changed = append(changed, "code")
	}
	if opts.Origin != nil && strings.TrimSpace(*opts.Origin) != f.Origin {
		f.Origin = strings.TrimSpace(*opts.Origin)
		changed = append(changed, "origin")
	}
	if opts.Destination != nil && strings.TrimSpace(*opts.Destination) != f.Destination {
		f.Destination = strings.TrimSpace(*opts.Destination)
		changed = append(changed, "destination")
	}
	if opts.DepartureTime != nil && !opts.DepartureTime.Equal(f.DepartureTime) {
		f.DepartureTime = opts.DepartureTime.UTC()
		changed = append(changed, "departure_time")
	}
	if opts.ArrivalTime != nil && !opts.ArrivalTime.Equal(f.ArrivalTime) {
		f.ArrivalTime = opts.ArrivalTime.UTC()
		changed = append(changed, "arrival_time")
	}
	if opts.Status != nil && *opts.Status != f.Status {
		f.Status = *opts.Status
		changed = append(changed, "status")
	}
	if next := opts.resultingPlane(f.PlaneID); !samePlane(next, f.PlaneID) {
		f.PlaneID = next
		changed = append(changed, "plane_id")
	}
	return f, changed
}

func (e Engine) UpdateFlight(ctx context.Context, opts FlightUpdateOptions) (domain.Flight, error) {
	if opts.Status != nil && !opts.Status.Valid() {
		return domain.Flight{}, domain.Validation(domain.CodeInvalidField, "unknown flight status %q", *opts.Status)
	}
	if opts.Code != nil && !domain.ValidFlightCode(strings.TrimSpace(*opts.Code)) {
		return domain.Flight{}, domain.Validation(domain.CodeInvalidCode, "flight code %q must match SK<digits>", *opts.Code)
	}
	if (opts.Origin != nil && strings.TrimSpace(*opts.Origin) == "") || (opts.Destination != nil && strings.TrimSpace(*opts.Destination) == "") {
		return domain.Flight{}, domain.Validation(domain.CodeInvalidField, "origin and destination cannot be empty")
	}
	if (opts.DepartureTime != nil && opts.DepartureTime.IsZero()) || (opts.ArrivalTime != nil && opts.ArrivalTime.IsZero()) {
		return domain.Flight{}, domain.Validation(domain.CodeInvalidTime, "departure and arrival times must be valid instants")
	}

	var extra []int64
	if opts.PlaneID != nil {
		extra = append(extra, *opts.PlaneID)
	}
	var out domain.Flight
	var from, to domain.FlightStatus
	err := e.mutateFlight(ctx, "update_flight", opts.ID, extra, func(gw repo.Gateway) error {
		cur, err := gw.GetFlight(ctx, opts.ID)
		if err != nil {
			return notFoundAs(err, func() error { return flightNotFound(opts.ID) })
		}
		if cur.IsDeleted() {
			return flightNotFound(opts.ID)
		}
		next, changed := opts.apply(cur)
		if len(changed) == 0 {
			out = cur
			return nil
		}
		if cur.Finalized() {
			return domain.InvalidTransition(domain.CodeFlightFinalized, "flight %s is %s and cannot be modified", cur.Code, cur.Status)
		}
		if err := ensureFlightTransition(cur.Status, next.Status); err != nil {
			return err
		}
		if next.Status == domain.StatusInFlight && next.PlaneID == nil {
			return domain.InvalidTransition(domain.CodeEnRouteWithoutPlane, "flight %s cannot be %s without a plane", cur.Code, next.Status)
		}
		if next.Code != cur.Code {
			if err := ensureCodeFree(ctx, gw, next.Code, cur.ID); err != nil {
				return err
			}
		}
		planeChanged := !samePlane(cur.PlaneID, next.PlaneID)
		takingOff := next.Status == domain.StatusInFlight && cur.Status != domain.StatusInFlight
		if next.PlaneID != nil && (planeChanged || takingOff) {
			if err := e.PlaneRegistry().ensureBindable(ctx, gw, *next.PlaneID, cur.ID); err != nil {
				return err
			}
		}

		next.UpdatedAt = e.timestamp()
		if err := gw.UpdateFlight(ctx, next); err != nil {
			return err
		}
		if err := e.applyPlaneEffects(ctx, gw, &cur, next, opts.ActorID); err != nil {
			return err
		}
		out, from, to = next, cur.Status, next.Status
		return e.writer().Append(ctx, gw, events.FlightUpdated, "flight", cur.ID, opts.ActorID, events.EventPayload{
			"changed":  changed,
			"from":     cur.Status,
			"to":       next.Status,
			"plane_id": planeRef(next.PlaneID),
		})
	})
	if err != nil {
		return domain.Flight{}, err
	}
	e.Metrics.Transition(string(from), string(to))
	return out, nil
}

// SoftDeleteFlight marks the flight deleted and releases its plane. Flights
// that are airborne or have landed are kept as operational records. A
// CANCELADO flight released its plane to AVAILABLE when it was cancelled, so
// deleting it leaves the plane untouched.
func (e Engine) SoftDeleteFlight(ctx context.Context, id int64, actorID string) (domain.Flight, error) {
	var out domain.Flight
	err := e.mutateFlight(ctx, "delete_flight", id, nil, func(gw repo.Gateway) error {
		cur, err := gw.GetFlight(ctx, id)
		if err != nil {
			return notFoundAs(err, func() error { return flightNotFound(id) })
		}
		if cur.IsDeleted() {
			return flightNotFound(id)
		}
		if cur.Status == domain.StatusInFlight || cur.Status == domain.StatusLanded {
			return domain.InvalidTransition(domain.CodeFlightActiveOrLanded, "flight %s is %s and cannot be deleted", cur.Code, cur.Status)
		}
		now := e.timestamp()
		next := cur
		next.State = domain.Deleted
		next.DeletedAt = &now
		next.UpdatedAt = now
		if err := gw.UpdateFlight(ctx, next); err != nil {
			return err
		}
		if err := e.applyPlaneEffects(ctx, gw, &cur, next, actorID); err != nil {
			return err
		}
		out = next
		return e.writer().Append(ctx, gw, events.FlightDeleted, "flight", id, actorID, events.EventPayload{
			"code":     cur.Code,
			"status":   cur.Status,
			"plane_id": planeRef(cur.PlaneID),
		})
	})
	if err != nil {
		return domain.Flight{}, err
	}
	return out, nil
}

// GetFlight returns a flight by id, including soft-deleted ones.
func (e Engine) GetFlight(ctx context.Context, id int64) (domain.Flight, error) {
	f, err := e.Store.GetFlight(ctx, id)
	if err != nil {
		return domain.Flight{}, notFoundAs(err, func() error { return flightNotFound(id) })
	}
	return f, nil
}

// ListFlights returns non-deleted flights matching every supplied filter,
// ordered by id.
func (e Engine) ListFlights(ctx context.Context, f repo.FlightFilter) ([]domain.Flight, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, domain.Validation(domain.CodeInvalidField, "unknown flight status %q", f.Status)
	}
	items, err := e.Store.ListFlights(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Flight{}
	}
	return items, nil
}

func ensureCodeFree(ctx context.Context, gw repo.Gateway, code string, selfID int64) error {
	other, err := gw.GetFlightByCode(ctx, code)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID == selfID:
		return nil
	}
	return domain.Conflict(domain.CodeDuplicateCode, "flight code %s already exists", code)
}
