// Package seals hosts the stationary task emitters. A Seal binds a Behavior to
// an anchor; the Manager ticks every seal, routes worker callbacks back to the
// owning seal, and replicates seal records to observers.
package seals

import (
	"errors"
	"sync"

	"golemcraft.ai/internal/sim/filter"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/traits"
)

var (
	ErrOccupied      = errors.New("seals: anchor already has a seal")
	ErrCannotPlace   = errors.New("seals: behavior cannot be placed here")
	ErrUnknownType   = errors.New("seals: unknown behavior type")
	ErrDuplicateType = errors.New("seals: behavior type already registered")
	ErrNotFound      = errors.New("seals: no seal at anchor")
	ErrLocked        = errors.New("seals: seal is locked by its owner")
	ErrBadConfig     = errors.New("seals: invalid configuration")
)

// Behavior is the strategy bound to a seal. Instances are created per seal via
// New on the registered prototype and may keep per-seal state; the manager
// serializes every call for one seal.
//
// Callbacks must not call Queue.Complete or Queue.Remove: those re-enter the
// manager through the removal hook. Use Queue.Suspend instead.
type Behavior interface {
	Key() string
	New() Behavior

	Tick(env *Env, s *Seal)
	CanPlaceAt(env *Env, a geom.Anchor) bool

	CanWorkerPerform(env *Env, s *Seal, w Worker, t *tasks.Task) bool
	OnStart(env *Env, s *Seal, w Worker, t *tasks.Task)
	// OnComplete performs one step of work and reports whether the task is done.
	OnComplete(env *Env, s *Seal, w Worker, t *tasks.Task) bool
	OnSuspend(env *Env, s *Seal, t tasks.Task)

	Required() traits.Set
	Forbidden() traits.Set

	MarshalConfig() ([]byte, error)
	UnmarshalConfig(b []byte) error
}

// Areal behaviors scan a working volume around the block the seal faces.
type Areal interface {
	DefaultArea() geom.Vec3i
}

// Filtered behaviors carry an item filter.
type Filtered interface {
	NewFilter(size int) *filter.Filter
}

// FilterAdjuster lets a behavior normalize a filter after configuration.
type FilterAdjuster interface {
	AdjustFilter(f *filter.Filter)
}

// Toggled behaviors expose named boolean switches.
type Toggled interface {
	Toggles() map[string]bool
	SetToggle(name string, v bool) bool
}

// MaxAreaExtent caps each half-extent of a working volume.
const MaxAreaExtent = 8

// Seal is a placed emitter.
type Seal struct {
	Anchor   geom.Anchor
	Behavior Behavior

	Priority int
	Color    int
	Locked   bool
	// Inhibit suspends scanning and every outstanding task while set.
	Inhibit bool
	Owner   string

	Area   geom.Vec3i
	Filter *filter.Filter

	PlacedTick uint64

	mu sync.Mutex
}

func (s *Seal) Key() string { return s.Behavior.Key() }

// Box is the working volume (only meaningful for Areal behaviors).
func (s *Seal) Box() geom.Box { return geom.WorkBox(s.Anchor, s.Area) }

func (s *Seal) Areal() bool {
	_, ok := s.Behavior.(Areal)
	return ok
}

// Emit inserts a task originating from this seal and returns its id.
func (s *Seal) Emit(env *Env, target tasks.Target, data int) uint64 {
	return env.Queue.Insert(tasks.Task{
		Origin:      s.Anchor,
		Target:      target,
		Priority:    s.Priority,
		Data:        data,
		CreatedTick: env.Tick,
	})
}

// EmitLinked is Emit for a task tied to a provision request.
func (s *Seal) EmitLinked(env *Env, target tasks.Target, data int, request uint64) uint64 {
	return env.Queue.Insert(tasks.Task{
		Origin:        s.Anchor,
		Target:        target,
		Priority:      s.Priority,
		Data:          data,
		LinkedRequest: request,
		CreatedTick:   env.Tick,
	})
}

// Accepts runs s through the seal filter. Seals without a filter accept all.
func (s *Seal) Accepts(env *Env, st items.Stack) bool {
	if st.IsEmpty() {
		return false
	}
	if s.Filter == nil {
		return true
	}
	return s.Filter.Accepts(st, env.Tagger())
}

func clampArea(v geom.Vec3i) geom.Vec3i {
	c := func(n int) int {
		if n < 0 {
			return 0
		}
		if n > MaxAreaExtent {
			return MaxAreaExtent
		}
		return n
	}
	return geom.Vec3i{X: c(v.X), Y: c(v.Y), Z: c(v.Z)}
}
