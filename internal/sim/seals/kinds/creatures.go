package kinds

import (
	"sort"

	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/traits"
)

const (
	KeyGuard   = "GUARD"
	KeyButcher = "BUTCHER"

	guardStrike = 4
)

// Guard emits a confrontation task for every qualifying creature in its
// volume. Each OnComplete is one strike; the task finishes when the target dies.
type Guard struct {
	base
	switches
	targeted *tracker[string]
}

func NewGuard() *Guard {
	return &Guard{
		switches: newSwitches(map[string]bool{"hostile": true, "animals": false, "players": false}),
		targeted: newTracker[string](),
	}
}

func (*Guard) Key() string             { return KeyGuard }
func (*Guard) New() seals.Behavior     { return NewGuard() }
func (*Guard) DefaultArea() geom.Vec3i { return geom.Vec3i{X: 4, Y: 2, Z: 4} }
func (*Guard) Required() traits.Set    { return traits.Of(traits.Fighter) }

func (g *Guard) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return solidAnchor(env, a) }

func (g *Guard) qualifies(env *seals.Env, s *seals.Seal, e seals.Entity) bool {
	if e.Kind != seals.EntityCreature || e.HP <= 0 || e.ID == s.Owner {
		return false
	}
	switch e.Class {
	case catalogs.ClassHostile:
		return g.on("hostile")
	case catalogs.ClassPassive:
		return g.on("animals")
	case catalogs.ClassPlayer:
		return g.on("players") && env.Config.PvPAllowed
	}
	return false
}

func (g *Guard) Tick(env *seals.Env, s *seals.Seal) {
	g.targeted.sweep(env)
	for _, e := range env.World.EntitiesIn(s.Box()) {
		if g.targeted.has(e.ID) || !g.qualifies(env, s, e) {
			continue
		}
		id := s.Emit(env, tasks.OnEntity(e.ID), 0)
		g.targeted.add(id, e.ID, env.Tick)
	}
}

func (g *Guard) CanWorkerPerform(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	e, ok := env.World.Entity(t.Target.EntityID)
	return ok && inBox(s, e.Pos) && g.qualifies(env, s, e)
}

func (g *Guard) OnComplete(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	t.Data++
	if !env.World.Damage(t.Target.EntityID, guardStrike) {
		if _, alive := env.World.Entity(t.Target.EntityID); alive {
			return false
		}
	}
	g.targeted.drop(t.ID)
	return true
}

func (g *Guard) OnSuspend(_ *seals.Env, _ *seals.Seal, t tasks.Task) { g.targeted.drop(t.ID) }

// Butcher culls passive adults once a species outnumbers the threshold, with
// at most one cull task outstanding.
type Butcher struct {
	base
	wait    bool
	current uint64
}

func NewButcher() *Butcher { return &Butcher{} }

func (*Butcher) Key() string             { return KeyButcher }
func (*Butcher) New() seals.Behavior     { return NewButcher() }
func (*Butcher) DefaultArea() geom.Vec3i { return geom.Vec3i{X: 3, Y: 1, Z: 3} }
func (*Butcher) Required() traits.Set    { return traits.Of(traits.Fighter) }

func (b *Butcher) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return solidAnchor(env, a) }

// herds groups living passive adults in the volume by species.
func herds(env *seals.Env, s *seals.Seal) map[string][]seals.Entity {
	out := map[string][]seals.Entity{}
	for _, e := range env.World.EntitiesIn(s.Box()) {
		if e.Kind != seals.EntityCreature || e.Class != catalogs.ClassPassive || !e.Adult || e.HP <= 0 {
			continue
		}
		out[e.Species] = append(out[e.Species], e)
	}
	return out
}

func threshold(env *seals.Env) int {
	if env.Config.ButcherThreshold <= 0 {
		return 2
	}
	return env.Config.ButcherThreshold
}

func (b *Butcher) Tick(env *seals.Env, s *seals.Seal) {
	if b.wait {
		if env.Queue.Exists(b.current) {
			return
		}
		b.wait, b.current = false, 0
	}
	groups := herds(env, s)
	for _, species := range sortedKeys(groups) {
		members := groups[species]
		if len(members) <= threshold(env) {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		b.current = s.Emit(env, tasks.OnEntity(members[0].ID), 0)
		b.wait = true
		return
	}
}

func (b *Butcher) CanWorkerPerform(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	e, ok := env.World.Entity(t.Target.EntityID)
	if !ok || !inBox(s, e.Pos) {
		return false
	}
	return len(herds(env, s)[e.Species]) > threshold(env)
}

func (b *Butcher) OnComplete(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	e, ok := env.World.Entity(t.Target.EntityID)
	if ok {
		env.World.Damage(e.ID, e.HP)
	}
	b.release(t.ID)
	return true
}

func (b *Butcher) release(id uint64) {
	if b.current == id {
		b.wait, b.current = false, 0
	}
}

func (b *Butcher) OnSuspend(_ *seals.Env, _ *seals.Seal, t tasks.Task) { b.release(t.ID) }
