package serving

import (
	"iter"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vineetp6/serving/pkg/types"
)

// Registry is the concurrent map from model name to its version set.
// Mutation (publish, state transitions) takes a short exclusive section;
// the request path only ever takes the read lock, and never blocks on an
// in-flight engine call.
type Registry struct {
	mu     sync.RWMutex
	models map[string][]*servable // ascending by version

	// retain caps the number of available versions per name; oldest
	// excess versions are marked retiring on publish. 0 means unlimited.
	retain int

	loadsTotal   atomic.Uint64
	unloadsTotal atomic.Uint64
}

func newRegistry(retain int) *Registry {
	return &Registry{
		models: make(map[string][]*servable),
		retain: retain,
	}
}

// Publish inserts a fully loaded engine as an available servable. The
// loading -> available transition happens entirely inside the exclusive
// section, so concurrent lookups observe either no entry or an available
// one, never an intermediate state. Returns the versions pushed into
// retiring by the retain policy; the caller owns draining them.
func (r *Registry) Publish(id ServableID, engine Engine) ([]*servable, error) {
	sv := &servable{id: id, engine: engine, state: StateLoading}
	sv.touch()

	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.models[id.Name]
	for _, existing := range set {
		if existing.id.Version == id.Version {
			return nil, ErrDuplicateVersion(id)
		}
	}

	sv.state = StateAvailable
	idx, _ := slices.BinarySearchFunc(set, sv, func(a, b *servable) int {
		return int(a.id.Version - b.id.Version)
	})
	r.models[id.Name] = slices.Insert(set, idx, sv)
	r.loadsTotal.Add(1)

	var retired []*servable
	if r.retain > 0 {
		available := 0
		for _, s := range r.models[id.Name] {
			if s.state == StateAvailable {
				available++
			}
		}
		// Oldest available versions first.
		for _, s := range r.models[id.Name] {
			if available <= r.retain {
				break
			}
			if s.state == StateAvailable && s != sv {
				s.state = StateRetiring
				retired = append(retired, s)
				available--
			}
		}
	}
	return retired, nil
}

// Lookup returns the entry for (name, version) in any state.
func (r *Registry) Lookup(name string, version int64) (*servable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.find(name, version)
}

// Resolve selects a servable per the selection policy and attributes one
// in-flight call to it before the read lock is released, so a concurrent
// retire+unload either sees the count or never made the entry selectable.
func (r *Registry) Resolve(name string, version int64) (*servable, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.models[name]
	if len(set) == 0 {
		return nil, ErrModelNotFound(name)
	}
	sv, err := selectVersion(name, set, version)
	if err != nil {
		return nil, err
	}
	sv.acquire()
	return sv, nil
}

// MarkRetiring moves (name, version) to the retiring state. Idempotent:
// an entry already at or past retiring is left alone.
func (r *Registry) MarkRetiring(name string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sv, ok := r.find(name, version)
	if !ok {
		return r.missing(name, version)
	}
	if sv.state.rank() < StateRetiring.rank() {
		sv.state = StateRetiring
	}
	return nil
}

// MarkUnloaded completes the lifecycle for (name, version) and drops the
// registry entry. Fails with StillInUse while any call is attributed to
// the servable, and rejects entries that were never retired.
func (r *Registry) MarkUnloaded(name string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sv, ok := r.find(name, version)
	if !ok {
		return r.missing(name, version)
	}
	if sv.state != StateRetiring {
		return ErrInvalidArgument("cannot unload %s in state %s: retire first", sv.id, sv.state)
	}
	if n := sv.inflight.Load(); n > 0 {
		return ErrStillInUse(sv.id, n)
	}
	sv.state = StateUnloaded
	set := r.models[name]
	set = slices.DeleteFunc(set, func(s *servable) bool { return s == sv })
	if len(set) == 0 {
		delete(r.models, name)
	} else {
		r.models[name] = set
	}
	r.unloadsTotal.Add(1)
	return nil
}

// AvailableVersions yields the currently available versions of name in
// ascending order. The sequence is restartable; each iteration starts
// from a fresh snapshot.
func (r *Registry) AvailableVersions(name string) iter.Seq[int64] {
	return func(yield func(int64) bool) {
		r.mu.RLock()
		versions := make([]int64, 0, len(r.models[name]))
		for _, sv := range r.models[name] {
			if sv.state == StateAvailable {
				versions = append(versions, sv.id.Version)
			}
		}
		r.mu.RUnlock()
		for _, v := range versions {
			if !yield(v) {
				return
			}
		}
	}
}

// Models lists every known name with its versions and states, sorted by
// name for stable output.
func (r *Registry) Models() []types.ModelVersions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]types.ModelVersions, 0, len(names))
	for _, name := range names {
		mv := types.ModelVersions{Name: name}
		for _, sv := range r.models[name] {
			mv.Versions = append(mv.Versions, types.VersionStatus{
				Version: sv.id.Version,
				State:   string(sv.state),
			})
		}
		out = append(out, mv)
	}
	return out
}

// snapshot returns per-servable accounting for status reporting.
func (r *Registry) snapshot() []types.ServableStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.ServableStatus
	for _, set := range r.models {
		for _, sv := range set {
			out = append(out, types.ServableStatus{
				Name:       sv.id.Name,
				Version:    sv.id.Version,
				State:      string(sv.state),
				Inflight:   sv.inflight.Load(),
				CallsTotal: sv.callsTotal.Load(),
				LastUsed:   sv.lastUsedUnix.Load(),
			})
		}
	}
	slices.SortFunc(out, func(a, b types.ServableStatus) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}
			return 1
		}
		return int(a.Version - b.Version)
	})
	return out
}

// lookupErr builds the resolution error for a missing (name, version).
func (r *Registry) lookupErr(name string, version int64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.missing(name, version)
}

// find expects at least the read lock held.
func (r *Registry) find(name string, version int64) (*servable, bool) {
	for _, sv := range r.models[name] {
		if sv.id.Version == version {
			return sv, true
		}
	}
	return nil, false
}

// missing expects at least the read lock held.
func (r *Registry) missing(name string, version int64) error {
	if len(r.models[name]) == 0 {
		return ErrModelNotFound(name)
	}
	return ErrVersionNotAvailable(name, version)
}
