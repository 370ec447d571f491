package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skytrack/internal/domain"
	"skytrack/internal/events"
	"skytrack/internal/lock"
	"skytrack/internal/logger"
	"skytrack/internal/metrics"
	"skytrack/internal/repo"
)

// Engine owns the flight lifecycle and its coupling to planes and crew.
// Every mutation runs under named locks and inside one Store transaction.
type Engine struct {
	Store   repo.Store
	Locker  lock.Locker
	Events  events.Writer
	Log     logger.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func New(store repo.Store) Engine {
	return Engine{
		Store:  store,
		Locker: lock.NewLocal(),
		Events: events.Writer{Now: time.Now},
		Log:    logger.NewNop(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() logger.Logger {
	if e.Log != nil {
		return e.Log
	}
	return logger.NewNop()
}

func (e Engine) locker() lock.Locker {
	if e.Locker != nil {
		return e.Locker
	}
	return defaultLocker
}

var defaultLocker = lock.NewLocal()

func (e Engine) writer() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// PlaneRegistry returns the plane component bound to this engine's clock,
// event writer and metrics.
func (e Engine) PlaneRegistry() PlaneRegistry {
	return PlaneRegistry{now: e.timestamp, events: e.writer(), metrics: e.Metrics}
}

// mutate acquires keys, runs fn in one transaction and records the outcome.
func (e Engine) mutate(ctx context.Context, op string, keys []string, fn func(repo.Gateway) error) error {
	start := time.Now()
	err := e.lockAndRun(ctx, keys, fn)
	e.observe(op, start, err)
	return err
}

func (e Engine) lockAndRun(ctx context.Context, keys []string, fn func(repo.Gateway) error) error {
	release, err := lock.AcquireAll(ctx, e.locker(), keys...)
	if err != nil {
		return domain.Unavailable(err)
	}
	defer release()
	return e.Store.Atomic(ctx, fn)
}

// mutateFlight locks the flight first, reads its current plane binding and
// then locks that plane together with any extra planes before running fn.
// The binding cannot move while the flight key is held.
func (e Engine) mutateFlight(ctx context.Context, op string, flightID int64, extraPlanes []int64, fn func(repo.Gateway) error) error {
	start := time.Now()
	err := func() error {
		release, err := e.locker().Lock(ctx, lock.FlightKey(flightID))
		if err != nil {
			return domain.Unavailable(fmt.Errorf("acquire %s: %w", lock.FlightKey(flightID), err))
		}
		defer release()
		var keys []string
		cur, err := e.Store.GetFlight(ctx, flightID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return flightNotFound(flightID)
		case err != nil:
			return err
		}
		if cur.PlaneID != nil {
			keys = append(keys, lock.PlaneKey(*cur.PlaneID))
		}
		for _, id := range extraPlanes {
			keys = append(keys, lock.PlaneKey(id))
		}
		return e.lockAndRun(ctx, keys, fn)
	}()
	e.observe(op, start, err)
	return err
}

func (e Engine) observe(op string, start time.Time, err error) {
	kind := ""
	if err != nil {
		kind = string(domain.KindOf(err))
		if kind == "" {
			kind = "internal"
		}
	}
	e.Metrics.ObserveOperation(op, start, kind)
	switch {
	case err == nil:
		e.log().Debug("engine operation", "op", op, "duration", time.Since(start))
	case kind == string(domain.KindUnavailable) || kind == "internal":
		e.log().Error("engine operation failed", "op", op, "error", err)
	default:
		e.log().Info("engine operation rejected", "op", op, "kind", kind, "code", domain.CodeOf(err), "error", err.Error())
	}
}

// ListEvents returns the audit log, newest first.
func (e Engine) ListEvents(ctx context.Context, f repo.EventFilter) ([]domain.Event, error) {
	items, err := e.Store.ListEvents(ctx, f)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Event{}
	}
	return items, nil
}

func flightNotFound(id int64) error {
	return domain.NotFound(domain.CodeFlightNotFound, "flight %d not found", id)
}

func planeNotFound(id int64) error {
	return domain.NotFound(domain.CodePlaneNotFound, "plane %d not found", id)
}

func crewNotFound(id int64) error {
	return domain.NotFound(domain.CodeCrewNotFound, "crew member %d not found", id)
}

// notFoundAs turns repo.ErrNotFound into the typed error built by nf.
func notFoundAs(err error, nf func() error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return nf()
	}
	return err
}

func samePlane(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func planeRef(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
