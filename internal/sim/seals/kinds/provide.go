package kinds

import (
	"errors"

	"golemcraft.ai/internal/sim/filter"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/provision"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/tasks"
)

const (
	KeyStock   = "STOCK"
	KeyProvide = "PROVIDE"
)

// Stock keeps its container at the per-slot quantities of a whitelist filter
// by posting provision requests for the shortfall. It never emits tasks.
type Stock struct {
	base
}

func NewStock() *Stock { return &Stock{} }

func (*Stock) Key() string         { return KeyStock }
func (*Stock) New() seals.Behavior { return NewStock() }

func (*Stock) NewFilter(size int) *filter.Filter {
	f := filter.New(size)
	f.Whitelist = true
	return f
}

func (*Stock) AdjustFilter(f *filter.Filter) { f.Whitelist = true }

func (st *Stock) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return containerAnchor(env, a) }

func (st *Stock) Tick(env *seals.Env, s *seals.Seal) {
	if env.Board == nil || s.Filter == nil {
		return
	}
	inv, ok := env.World.InventoryAt(s.Anchor.Pos)
	if !ok {
		return
	}
	dest := provision.ToSeal(s.Anchor)
	pending := env.Board.OpenFor(dest, env.Tick)
	tags := env.Tagger()
	budget := env.Budget()
	for i, slot := range s.Filter.Slots {
		if budget == 0 {
			return
		}
		if slot.Template.IsEmpty() || slot.Quantity <= 0 {
			continue
		}
		have := items.Count(inv, func(x items.Stack) bool { return s.Filter.MatchIndex(x, tags) == i })
		for _, r := range pending {
			if r.Item.SameKind(slot.Template) {
				have += r.Item.Count
			}
		}
		deficit := slot.Quantity - have
		if deficit <= 0 {
			continue
		}
		want := slot.Template.WithCount(deficit)
		n := items.Capacity(inv, want, deficit)
		if n <= 0 {
			continue
		}
		_, err := env.Board.Add(provision.Request{
			Item:    want.WithCount(n),
			Dest:    dest,
			At:      s.Anchor.Pos,
			Color:   s.Color,
			Timeout: env.Tick + uint64(env.Config.ProvisionTimeout),
		})
		if err != nil && !errors.Is(err, provision.ErrDuplicate) {
			continue
		}
		budget--
	}
}

func (*Stock) CanWorkerPerform(*seals.Env, *seals.Seal, seals.Worker, *tasks.Task) bool {
	return false
}

func (*Stock) OnComplete(*seals.Env, *seals.Seal, seals.Worker, *tasks.Task) bool { return true }

// Provide serves provision requests in range from its container with a
// two-phase task: phase 0 picks the items up, phase 1 delivers them. Task data
// packs the amount and the phase (amount<<1 | phase).
type Provide struct {
	base
	switches
	serving *tracker[uint64]
}

func NewProvide() *Provide {
	return &Provide{
		switches: newSwitches(map[string]bool{"leave_one": false}),
		serving:  newTracker[uint64](),
	}
}

func (*Provide) Key() string                       { return KeyProvide }
func (*Provide) New() seals.Behavior               { return NewProvide() }
func (*Provide) NewFilter(size int) *filter.Filter { return filter.New(size) }

func (p *Provide) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return containerAnchor(env, a) }

func packPhase(amount, phase int) int { return amount<<1 | phase }
func unpackPhase(data int) (int, int) { return data >> 1, data & 1 }

func (p *Provide) stocked(inv items.Inventory, want items.Stack) int {
	n := items.Count(inv, sameKind(want))
	if p.on("leave_one") {
		n--
	}
	return n
}

// serves reports whether a provider with color c may answer a request.
func serves(c int, r provision.Request) bool {
	return c == 0 || c == r.Color
}

func (p *Provide) Tick(env *seals.Env, s *seals.Seal) {
	p.serving.sweep(env)
	if env.Board == nil {
		return
	}
	inv, ok := env.World.InventoryAt(s.Anchor.Pos)
	if !ok {
		return
	}
	budget := env.Budget()
	for _, r := range env.Board.Open(s.Anchor.Pos, env.Config.ProvisionRange, env.Tick) {
		if budget == 0 {
			return
		}
		if r.Dest == provision.ToSeal(s.Anchor) || p.serving.has(r.ID) || !serves(s.Color, r) {
			continue
		}
		if !s.Accepts(env, r.Item) {
			continue
		}
		avail := p.stocked(inv, r.Item)
		if avail <= 0 {
			continue
		}
		amount := min(avail, r.Item.Count)
		id := s.EmitLinked(env, tasks.AtPos(s.Anchor.Pos), packPhase(amount, 0), r.ID)
		if err := env.Board.Link(r.ID, id, env.Tick); err != nil {
			env.Queue.Suspend(id)
			continue
		}
		p.serving.add(id, r.ID, env.Tick)
		budget--
	}
}

func (p *Provide) request(env *seals.Env, t *tasks.Task) (provision.Request, bool) {
	if env.Board == nil || t.LinkedRequest == 0 {
		return provision.Request{}, false
	}
	r, ok := env.Board.Get(t.LinkedRequest)
	if !ok || r.Invalid() || r.LinkedTask != t.ID {
		return provision.Request{}, false
	}
	return r, true
}

func destinationTarget(d provision.Destination) tasks.Target {
	switch d.Kind {
	case provision.DestSeal:
		return tasks.AtPos(d.Seal.Pos)
	case provision.DestEntity:
		return tasks.OnEntity(d.EntityID)
	default:
		return tasks.AtPos(d.Pos)
	}
}

func (p *Provide) CanWorkerPerform(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	r, ok := p.request(env, t)
	if !ok {
		return false
	}
	_, phase := unpackPhase(t.Data)
	if phase == 0 {
		inv, ok := env.World.InventoryAt(s.Anchor.Pos)
		return ok && p.stocked(inv, r.Item) > 0 && items.Capacity(w.Inventory(), r.Item, 1) > 0
	}
	if items.Count(w.Inventory(), sameKind(r.Item)) == 0 {
		return false
	}
	switch r.Dest.Kind {
	case provision.DestSeal:
		_, ok := env.World.InventoryAt(r.Dest.Seal.Pos)
		return ok
	case provision.DestEntity:
		_, ok := entityPos(env, r.Dest.EntityID)
		return ok
	}
	return true
}

// entityPos locates an entity destination, which may be a golem.
func entityPos(env *seals.Env, id string) (geom.Vec3i, bool) {
	if w, ok := env.Worker(id); ok {
		return w.Pos(), true
	}
	e, ok := env.World.Entity(id)
	return e.Pos, ok
}

func (p *Provide) OnComplete(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	p.serving.drop(t.ID)
	r, ok := p.request(env, t)
	if !ok {
		return true
	}
	amount, phase := unpackPhase(t.Data)
	if phase == 0 {
		p.pickup(env, s, w, t, r, amount)
		return true
	}
	p.deliver(env, w, r, amount)
	return true
}

func (p *Provide) pickup(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task, r provision.Request, amount int) {
	inv, ok := env.World.InventoryAt(s.Anchor.Pos)
	if !ok {
		env.Board.Expire(r.ID)
		return
	}
	n := min(amount, p.stocked(inv, r.Item))
	n = items.Capacity(w.Inventory(), r.Item, n)
	if n <= 0 {
		env.Board.Expire(r.ID)
		return
	}
	taken := items.ExtractMatching(inv, n, sameKind(r.Item), false)
	if rest := w.Inventory().Insert(taken, false); !rest.IsEmpty() {
		inv.Insert(rest, false)
		taken.Count -= rest.Count
	}
	if taken.Count <= 0 {
		env.Board.Expire(r.ID)
		return
	}
	next := s.EmitLinked(env, destinationTarget(r.Dest), packPhase(taken.Count, 1), r.ID)
	if err := env.Board.Link(r.ID, next, env.Tick); err != nil {
		env.Queue.Suspend(next)
		return
	}
	if env.Queue.Reserve(next, w.ID()) {
		w.Chain(next)
	}
	p.serving.add(next, r.ID, env.Tick)
}

func (p *Provide) deliver(env *seals.Env, w seals.Worker, r provision.Request, amount int) {
	goods := items.ExtractMatching(w.Inventory(), amount, sameKind(r.Item), false)
	if goods.IsEmpty() {
		env.Board.Expire(r.ID)
		return
	}
	switch r.Dest.Kind {
	case provision.DestSeal:
		if inv, ok := env.World.InventoryAt(r.Dest.Seal.Pos); ok {
			goods = inv.Insert(goods, false)
		}
		if !goods.IsEmpty() {
			goods = w.Inventory().Insert(goods, false)
		}
		if !goods.IsEmpty() {
			env.World.SpawnItem(r.Dest.Seal.Front(), goods)
		}
	case provision.DestEntity:
		if dw, ok := env.Worker(r.Dest.EntityID); ok {
			goods = dw.Inventory().Insert(goods, false)
			if !goods.IsEmpty() {
				env.World.SpawnItem(dw.Pos(), goods)
			}
		} else if e, ok := env.World.Entity(r.Dest.EntityID); ok {
			env.World.SpawnItem(e.Pos, goods)
		} else {
			w.Inventory().Insert(goods, false)
		}
	default:
		env.World.SpawnItem(r.Dest.Pos, goods)
	}
	env.Board.Fulfill(r.ID, env.Tick)
}

func (p *Provide) OnSuspend(_ *seals.Env, _ *seals.Seal, t tasks.Task) { p.serving.drop(t.ID) }
