package serving

import (
	"strconv"
	"sync/atomic"
	"time"
)

// State represents the lifecycle state of one servable version.
// Transitions are strictly forward: loading -> available -> retiring ->
// unloaded. No backward transition exists; a reload publishes a new entry.
type State string

const (
	StateLoading   State = "loading"
	StateAvailable State = "available"
	StateRetiring  State = "retiring"
	StateUnloaded  State = "unloaded"
)

// rank orders states along the forward-only lifecycle.
func (s State) rank() int {
	switch s {
	case StateLoading:
		return 0
	case StateAvailable:
		return 1
	case StateRetiring:
		return 2
	case StateUnloaded:
		return 3
	}
	return -1
}

// ServableID identifies one loaded model version.
type ServableID struct {
	Name    string
	Version int64
}

func (id ServableID) String() string {
	return id.Name + "/" + strconv.FormatInt(id.Version, 10)
}

// servable is one registry entry: an immutable identity plus the engine
// handle and the mutable accounting shared between the request path and
// the lifecycle coordinator. The state field is guarded by the registry
// lock; inflight and callsTotal are atomics so the hot path never takes
// the write lock.
type servable struct {
	id     ServableID
	engine Engine
	state  State

	inflight     atomic.Int64
	callsTotal   atomic.Uint64
	lastUsedUnix atomic.Int64
}

// acquire attributes one in-flight call to the servable. Callers must
// hold at least the registry read lock and have checked the state first,
// so the count can never rise after unload gating has observed zero.
func (s *servable) acquire() {
	s.inflight.Add(1)
}

// release returns the in-flight reference taken by acquire.
func (s *servable) release() {
	if n := s.inflight.Add(-1); n < 0 {
		panic("serving: in-flight counter went negative for " + s.id.String())
	}
}

func (s *servable) touch() {
	s.lastUsedUnix.Store(time.Now().Unix())
}
