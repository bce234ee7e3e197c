package kinds

import (
	"golemcraft.ai/internal/sim/filter"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/tasks"
)

const KeyPickup = "PICKUP"

// Pickup collects loose item entities inside its working volume.
type Pickup struct {
	base
	switches
	targeted *tracker[string]
}

func NewPickup() *Pickup {
	return &Pickup{
		switches: newSwitches(map[string]bool{"partial": true}),
		targeted: newTracker[string](),
	}
}

func (*Pickup) Key() string             { return KeyPickup }
func (*Pickup) New() seals.Behavior     { return NewPickup() }
func (*Pickup) DefaultArea() geom.Vec3i { return geom.Vec3i{X: 1, Y: 1, Z: 1} }

func (*Pickup) NewFilter(size int) *filter.Filter { return filter.New(size) }

func (p *Pickup) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return solidAnchor(env, a) }

func (p *Pickup) Tick(env *seals.Env, s *seals.Seal) {
	p.targeted.sweep(env)
	budget := env.Budget()
	for _, e := range env.World.EntitiesIn(s.Box()) {
		if budget == 0 {
			return
		}
		if e.Kind != seals.EntityItem || p.targeted.has(e.ID) || !s.Accepts(env, e.Item) {
			continue
		}
		id := s.Emit(env, tasks.OnEntity(e.ID), 0)
		p.targeted.add(id, e.ID, env.Tick)
		budget--
	}
}

func (p *Pickup) CanWorkerPerform(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	e, ok := env.World.Entity(t.Target.EntityID)
	if !ok || e.Kind != seals.EntityItem || !inBox(s, e.Pos) || !s.Accepts(env, e.Item) {
		return false
	}
	room := items.Capacity(w.Inventory(), e.Item, e.Item.Count)
	if p.on("partial") {
		return room > 0
	}
	return room >= e.Item.Count
}

func (p *Pickup) OnComplete(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	p.targeted.drop(t.ID)
	e, ok := env.World.Entity(t.Target.EntityID)
	if !ok {
		return true
	}
	rest := w.Inventory().Insert(e.Item, false)
	if rest.IsEmpty() {
		env.World.RemoveEntity(e.ID)
	} else {
		env.World.SetEntityItem(e.ID, rest)
	}
	return true
}

func (p *Pickup) OnSuspend(_ *seals.Env, _ *seals.Seal, t tasks.Task) { p.targeted.drop(t.ID) }
