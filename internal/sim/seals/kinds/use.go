package kinds

import (
	"golemcraft.ai/internal/sim/filter"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/traits"
)

const KeyUse = "USE"

// Use has a worker click the block in front of the seal. With a non-empty
// filter the worker must hold an accepted item; otherwise it clicks
// empty-handed. Only one task is outstanding at a time.
type Use struct {
	base
	switches
	watched uint64
}

func NewUse() *Use {
	return &Use{switches: newSwitches(map[string]bool{
		"require_empty": false,
		"secondary":     true,
		"crouch":        false,
	})}
}

func (*Use) Key() string          { return KeyUse }
func (*Use) New() seals.Behavior  { return NewUse() }
func (*Use) Required() traits.Set { return traits.Of(traits.Deft) }

func (*Use) NewFilter(size int) *filter.Filter {
	f := filter.New(size)
	f.Whitelist = true
	return f
}

func (u *Use) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return solidAnchor(env, a) }

func (u *Use) ready(env *seals.Env, s *seals.Seal) bool {
	empty := env.World.Block(s.Anchor.Front()).IsAir()
	return empty == u.on("require_empty")
}

func (u *Use) needsItem(s *seals.Seal) bool { return s.Filter != nil && !s.Filter.Empty() }

func (u *Use) Tick(env *seals.Env, s *seals.Seal) {
	if u.watched != 0 {
		if env.Queue.Exists(u.watched) {
			return
		}
		u.watched = 0
	}
	if !u.ready(env, s) {
		return
	}
	u.watched = s.Emit(env, tasks.AtPos(s.Anchor.Front()), 0)
}

func (u *Use) CanWorkerPerform(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	if !u.ready(env, s) {
		return false
	}
	if !u.needsItem(s) {
		return true
	}
	if s.Accepts(env, w.Held()) {
		return true
	}
	return items.Count(w.Inventory(), func(x items.Stack) bool { return s.Accepts(env, x) }) > 0
}

func (u *Use) OnStart(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) {
	w.Pursue(t.Target)
	if !u.needsItem(s) || s.Accepts(env, w.Held()) {
		return
	}
	got := items.ExtractMatching(w.Inventory(), 1, func(x items.Stack) bool { return s.Accepts(env, x) }, false)
	if got.IsEmpty() {
		return
	}
	if old := w.Held(); !old.IsEmpty() {
		if rest := w.Inventory().Insert(old, false); !rest.IsEmpty() {
			env.World.SpawnItem(w.Pos(), rest)
		}
	}
	w.SetHeld(got)
}

func (u *Use) OnComplete(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	if u.watched == t.ID {
		u.watched = 0
	}
	var held items.Stack
	if u.needsItem(s) {
		held = w.Held()
		if !s.Accepts(env, held) {
			return true
		}
	}
	rest, _ := env.World.Interact(t.Target.Pos, held, u.on("secondary"), u.on("crouch"))
	if u.needsItem(s) {
		w.SetHeld(rest)
	}
	return true
}

func (u *Use) OnSuspend(_ *seals.Env, _ *seals.Seal, t tasks.Task) {
	if u.watched == t.ID {
		u.watched = 0
	}
}
