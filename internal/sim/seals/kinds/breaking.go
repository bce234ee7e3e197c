package kinds

import (
	"golemcraft.ai/internal/sim/filter"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/traits"
)

const (
	KeyLumber  = "LUMBER"
	KeyBreaker = "BREAKER"
)

// Lumber fells log blocks in its volume, one block per task.
type Lumber struct {
	base
	working *tracker[geom.Vec3i]
}

func NewLumber() *Lumber { return &Lumber{working: newTracker[geom.Vec3i]()} }

func (*Lumber) Key() string             { return KeyLumber }
func (*Lumber) New() seals.Behavior     { return NewLumber() }
func (*Lumber) DefaultArea() geom.Vec3i { return geom.Vec3i{X: 3, Y: 4, Z: 3} }

func (l *Lumber) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return solidAnchor(env, a) }

func isLog(env *seals.Env, p geom.Vec3i) bool {
	return env.Catalog != nil && env.Catalog.BlockHasTag(env.World.Block(p).ID, "log")
}

func (l *Lumber) Tick(env *seals.Env, s *seals.Seal) {
	l.working.sweep(env)
	budget := env.Budget()
	s.Box().Each(func(p geom.Vec3i) bool {
		if p == s.Anchor.Pos || l.working.has(p) || !isLog(env, p) {
			return true
		}
		id := s.Emit(env, tasks.AtPos(p), 0)
		l.working.add(id, p, env.Tick)
		budget--
		return budget > 0
	})
}

func (l *Lumber) CanWorkerPerform(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	return isLog(env, t.Target.Pos)
}

func (l *Lumber) OnComplete(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	l.working.drop(t.ID)
	if drops, ok := env.World.BreakBlock(t.Target.Pos); ok {
		giveOrDrop(env, w, t.Target.Pos, drops)
	}
	return true
}

func (l *Lumber) OnSuspend(_ *seals.Env, _ *seals.Seal, t tasks.Task) { l.working.drop(t.ID) }

// Breaker breaks filter-accepted blocks in its volume over several attempts.
// Task data is the hardness left; each attempt removes the configured step.
type Breaker struct {
	base
	working *tracker[geom.Vec3i]
}

func NewBreaker() *Breaker { return &Breaker{working: newTracker[geom.Vec3i]()} }

func (*Breaker) Key() string                       { return KeyBreaker }
func (*Breaker) New() seals.Behavior               { return NewBreaker() }
func (*Breaker) DefaultArea() geom.Vec3i           { return geom.Vec3i{X: 1, Y: 1, Z: 1} }
func (*Breaker) NewFilter(size int) *filter.Filter { return filter.New(size) }
func (*Breaker) Required() traits.Set              { return traits.Of(traits.Breaker) }

func (b *Breaker) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return solidAnchor(env, a) }

// hardness returns the remaining effort for p, or 0 if it is not a target.
func (b *Breaker) hardness(env *seals.Env, s *seals.Seal, p geom.Vec3i) int {
	if p == s.Anchor.Pos {
		return 0
	}
	blk := env.World.Block(p)
	if blk.IsAir() || env.Catalog == nil {
		return 0
	}
	def, ok := env.Catalog.Block(blk.ID)
	if !ok || !def.Breakable {
		return 0
	}
	if s.Filter != nil && !s.Filter.Accepts(items.Of(blk.ID, 1), env.Tagger()) {
		return 0
	}
	return max(def.Hardness, 1)
}

func step(env *seals.Env) int {
	if env.Config.BreakerStep <= 0 {
		return 1
	}
	return env.Config.BreakerStep
}

func (b *Breaker) Tick(env *seals.Env, s *seals.Seal) {
	b.working.sweep(env)
	budget := env.Budget()
	s.Box().Each(func(p geom.Vec3i) bool {
		if b.working.has(p) {
			return true
		}
		h := b.hardness(env, s, p)
		if h == 0 {
			return true
		}
		id := s.Emit(env, tasks.AtPos(p), h)
		b.working.add(id, p, env.Tick)
		budget--
		return budget > 0
	})
}

func (b *Breaker) CanWorkerPerform(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	return b.hardness(env, s, t.Target.Pos) > 0
}

func (b *Breaker) OnComplete(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	t.Data -= step(env)
	if t.Data > 0 {
		return false
	}
	b.working.drop(t.ID)
	if drops, ok := env.World.BreakBlock(t.Target.Pos); ok {
		giveOrDrop(env, w, t.Target.Pos, drops)
	}
	return true
}

func (b *Breaker) OnSuspend(_ *seals.Env, _ *seals.Seal, t tasks.Task) { b.working.drop(t.ID) }
