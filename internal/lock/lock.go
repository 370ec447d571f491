// Package lock provides named mutual exclusion for engine operations that
// must not interleave on the same plane, flight or crew member.
package lock

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Locker acquires a named lock. The returned release func is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

func PlaneKey(id int64) string  { return fmt.Sprintf("plane:%d", id) }
func FlightKey(id int64) string { return fmt.Sprintf("flight:%d", id) }
func CrewKey(id int64) string   { return fmt.Sprintf("crew:%d", id) }

// Local is an in-process keyed mutex. Waiters honour context cancellation.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// AcquireAll takes every key in a fixed global order (flight, crew, plane;
// ascending within each class) and returns one release for all of them.
// Duplicate and empty keys are ignored.
func AcquireAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	ordered := orderKeys(keys)
	releases := make([]func(), 0, len(ordered))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, k := range ordered {
		release, err := l.Lock(ctx, k)
		if err != nil {
			releaseAll()
			return nil, fmt.Errorf("acquire %s: %w", k, err)
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

var classRank = map[byte]int{'f': 0, 'c': 1, 'p': 2}

func orderKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	var out []string
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := classRank[out[i][0]], classRank[out[j][0]]
		if ri != rj {
			return ri < rj
		}
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}
