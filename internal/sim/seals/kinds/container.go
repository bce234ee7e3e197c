package kinds

import (
	"golemcraft.ai/internal/sim/filter"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/tasks"
)

const (
	KeyEmpty = "EMPTY"
	KeyFill  = "FILL"
)

// Empty withdraws filter-accepted items from the container it is painted on.
// Task data is the slot index.
type Empty struct {
	base
	switches
	cursor int
	slots  *tracker[int]
}

func NewEmpty() *Empty {
	return &Empty{
		switches: newSwitches(map[string]bool{"leave_one": false, "cycle": true}),
		slots:    newTracker[int](),
	}
}

func (*Empty) Key() string                       { return KeyEmpty }
func (*Empty) New() seals.Behavior               { return NewEmpty() }
func (*Empty) NewFilter(size int) *filter.Filter { return filter.New(size) }

func (e *Empty) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return containerAnchor(env, a) }

func (e *Empty) keep() int {
	if e.on("leave_one") {
		return 1
	}
	return 0
}

func (e *Empty) available(env *seals.Env, s *seals.Seal, inv items.Inventory, i int) int {
	st := inv.Slot(i)
	if st.IsEmpty() || !s.Accepts(env, st) {
		return 0
	}
	return st.Count - e.keep()
}

func (e *Empty) Tick(env *seals.Env, s *seals.Seal) {
	e.slots.sweep(env)
	inv, ok := env.World.InventoryAt(s.Anchor.Pos)
	if !ok || inv.Size() == 0 {
		return
	}
	start := 0
	if e.on("cycle") {
		start = e.cursor % inv.Size()
	}
	budget := env.Budget()
	for k := 0; k < inv.Size() && budget > 0; k++ {
		i := (start + k) % inv.Size()
		if e.slots.has(i) || e.available(env, s, inv, i) <= 0 {
			continue
		}
		id := s.Emit(env, tasks.AtPos(s.Anchor.Pos), i)
		e.slots.add(id, i, env.Tick)
		e.cursor = i + 1
		budget--
	}
}

func (e *Empty) CanWorkerPerform(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	inv, ok := env.World.InventoryAt(s.Anchor.Pos)
	if !ok || t.Data >= inv.Size() {
		return false
	}
	n := e.available(env, s, inv, t.Data)
	return n > 0 && items.Capacity(w.Inventory(), inv.Slot(t.Data), n) > 0
}

func (e *Empty) OnComplete(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	e.slots.drop(t.ID)
	inv, ok := env.World.InventoryAt(s.Anchor.Pos)
	if !ok || t.Data >= inv.Size() {
		return true
	}
	n := e.available(env, s, inv, t.Data)
	if n <= 0 {
		return true
	}
	if q := slotQuantity(env, s, inv.Slot(t.Data)); q > 0 && q < n {
		n = q
	}
	n = items.Capacity(w.Inventory(), inv.Slot(t.Data), n)
	if n <= 0 {
		return true
	}
	taken := inv.Extract(t.Data, n, false)
	if rest := w.Inventory().Insert(taken, false); !rest.IsEmpty() {
		inv.Insert(rest, false)
	}
	return true
}

func (e *Empty) OnSuspend(_ *seals.Env, _ *seals.Seal, t tasks.Task) { e.slots.drop(t.ID) }

// slotQuantity is the per-task cap configured on the filter slot matching st.
func slotQuantity(env *seals.Env, s *seals.Seal, st items.Stack) int {
	if s.Filter == nil {
		return 0
	}
	i := s.Filter.MatchIndex(st, env.Tagger())
	if i < 0 {
		return 0
	}
	return s.Filter.Slots[i].Quantity
}

// Fill deposits filter-accepted items carried by a worker into the container
// it is painted on. At most one task is outstanding.
type Fill struct {
	base
	watched uint64
}

func NewFill() *Fill { return &Fill{} }

func (*Fill) Key() string                       { return KeyFill }
func (*Fill) New() seals.Behavior               { return NewFill() }
func (*Fill) NewFilter(size int) *filter.Filter { return filter.New(size) }

func (f *Fill) CanPlaceAt(env *seals.Env, a geom.Anchor) bool { return containerAnchor(env, a) }

func hasRoom(inv items.Inventory) bool {
	for i := 0; i < inv.Size(); i++ {
		st := inv.Slot(i)
		if st.IsEmpty() || items.Capacity(inv, st.WithCount(1), 1) > 0 {
			return true
		}
	}
	return false
}

func (f *Fill) Tick(env *seals.Env, s *seals.Seal) {
	if f.watched != 0 && env.Queue.Exists(f.watched) {
		return
	}
	f.watched = 0
	inv, ok := env.World.InventoryAt(s.Anchor.Pos)
	if !ok || !hasRoom(inv) {
		return
	}
	f.watched = s.Emit(env, tasks.AtPos(s.Anchor.Pos), 0)
}

// deliverable is the first worker slot holding an accepted stack that fits.
func (f *Fill) deliverable(env *seals.Env, s *seals.Seal, w seals.Worker, inv items.Inventory) int {
	wi := w.Inventory()
	for i := 0; i < wi.Size(); i++ {
		st := wi.Slot(i)
		if st.IsEmpty() || !s.Accepts(env, st) {
			continue
		}
		if items.Capacity(inv, st, st.Count) > 0 {
			return i
		}
	}
	return -1
}

func (f *Fill) CanWorkerPerform(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	inv, ok := env.World.InventoryAt(s.Anchor.Pos)
	return ok && f.deliverable(env, s, w, inv) >= 0
}

func (f *Fill) OnComplete(env *seals.Env, s *seals.Seal, w seals.Worker, t *tasks.Task) bool {
	if f.watched == t.ID {
		f.watched = 0
	}
	inv, ok := env.World.InventoryAt(s.Anchor.Pos)
	if !ok {
		return true
	}
	wi := w.Inventory()
	for i := 0; i < wi.Size(); i++ {
		st := wi.Slot(i)
		if st.IsEmpty() || !s.Accepts(env, st) {
			continue
		}
		taken := wi.Extract(i, st.Count, false)
		if rest := inv.Insert(taken, false); !rest.IsEmpty() {
			wi.Insert(rest, false)
		}
	}
	return true
}

func (f *Fill) OnSuspend(_ *seals.Env, _ *seals.Seal, t tasks.Task) {
	if f.watched == t.ID {
		f.watched = 0
	}
}
