// Package kinds holds the concrete seal behaviors and their registration.
package kinds

import (
	"sort"

	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/traits"
	"golemcraft.ai/internal/sim/ttlcache"
)

// trackTTL bounds how long a target stays marked as taken if the cache sweep
// never sees its task disappear.
const trackTTL = 2 * tasks.DefaultLifespan

// base supplies the no-op parts of seals.Behavior.
type base struct{}

func (base) Required() traits.Set                          { return traits.Set{} }
func (base) Forbidden() traits.Set                         { return traits.Set{} }
func (base) MarshalConfig() ([]byte, error)                { return nil, nil }
func (base) UnmarshalConfig([]byte) error                  { return nil }
func (base) OnSuspend(*seals.Env, *seals.Seal, tasks.Task) {}

func (base) OnStart(_ *seals.Env, _ *seals.Seal, w seals.Worker, t *tasks.Task) {
	w.Pursue(t.Target)
}

// tracker remembers which target each open task points at, so a seal never
// emits two tasks for the same target.
type tracker[K comparable] struct {
	byTask *ttlcache.Map[uint64, K]
}

func newTracker[K comparable]() *tracker[K] {
	return &tracker[K]{byTask: ttlcache.New[uint64, K](trackTTL)}
}

func (tr *tracker[K]) has(k K) bool {
	_, ok := tr.byTask.FindKey(func(v K) bool { return v == k })
	return ok
}

func (tr *tracker[K]) add(taskID uint64, k K, now uint64) { tr.byTask.Put(taskID, k, now) }

func (tr *tracker[K]) drop(taskID uint64) { tr.byTask.Delete(taskID) }

func (tr *tracker[K]) len() int { return tr.byTask.Len() }

// sweep drops entries whose task no longer lives, on the cache sweep cadence.
func (tr *tracker[K]) sweep(env *seals.Env) {
	if !env.SweepDue() {
		return
	}
	tr.byTask.Expire(env.Tick)
	tr.byTask.DeleteFunc(func(id uint64, _ K) bool { return !env.Queue.Exists(id) })
}

// switches implements seals.Toggled over a fixed set of names.
type switches struct {
	vals map[string]bool
}

func newSwitches(defaults map[string]bool) switches {
	s := switches{vals: map[string]bool{}}
	for k, v := range defaults {
		s.vals[k] = v
	}
	return s
}

func (s *switches) Toggles() map[string]bool {
	out := make(map[string]bool, len(s.vals))
	for k, v := range s.vals {
		out[k] = v
	}
	return out
}

func (s *switches) SetToggle(name string, v bool) bool {
	if _, ok := s.vals[name]; !ok {
		return false
	}
	s.vals[name] = v
	return true
}

func (s *switches) on(name string) bool { return s.vals[name] }

func solidAt(env *seals.Env, p geom.Vec3i) bool {
	b := env.World.Block(p)
	if b.IsAir() {
		return false
	}
	if env.Catalog == nil {
		return true
	}
	def, ok := env.Catalog.Block(b.ID)
	return ok && def.Solid
}

// solidAnchor: area seals are painted on a solid block.
func solidAnchor(env *seals.Env, a geom.Anchor) bool {
	return solidAt(env, a.Pos)
}

// containerAnchor: inventory seals are painted on a block with an inventory.
func containerAnchor(env *seals.Env, a geom.Anchor) bool {
	_, ok := env.World.InventoryAt(a.Pos)
	return ok
}

func inBox(s *seals.Seal, p geom.Vec3i) bool { return s.Box().Contains(p) }

// giveOrDrop moves stacks into the worker, spawning leftovers at p.
func giveOrDrop(env *seals.Env, w seals.Worker, p geom.Vec3i, stacks []items.Stack) {
	for _, st := range stacks {
		if rest := w.Inventory().Insert(st, false); !rest.IsEmpty() {
			env.World.SpawnItem(p, rest)
		}
	}
}

func sameKind(tmpl items.Stack) func(items.Stack) bool {
	return func(s items.Stack) bool { return s.SameKind(tmpl) }
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
