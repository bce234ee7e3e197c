package kinds_test

import (
	"testing"

	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/provision"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/seals/kinds"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/traits"
	"golemcraft.ai/internal/sim/tuning"
	"golemcraft.ai/internal/sim/world/store"
)

type testWorker struct {
	id       string
	pos      geom.Vec3i
	tr       traits.Set
	inv      *items.SlotInventory
	held     items.Stack
	pursuing tasks.Target
	chained  uint64
}

func newWorker(id string, ts ...traits.Trait) *testWorker {
	return &testWorker{id: id, tr: traits.Of(ts...), inv: items.NewSlotInventory(9)}
}

func (w *testWorker) ID() string                 { return w.id }
func (w *testWorker) Pos() geom.Vec3i            { return w.pos }
func (w *testWorker) Traits() traits.Set         { return w.tr }
func (w *testWorker) Inventory() items.Inventory { return w.inv }
func (w *testWorker) Held() items.Stack          { return w.held }
func (w *testWorker) SetHeld(s items.Stack)      { w.held = s }
func (w *testWorker) Pursue(t tasks.Target)      { w.pursuing = t }
func (w *testWorker) Chain(id uint64)            { w.chained = id }

type fixture struct {
	st  *store.Store
	q   *tasks.Queue
	env *seals.Env
	mgr *seals.Manager
	now uint64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalogs.Default()
	f := &fixture{st: store.New(cat), q: tasks.NewQueue(0)}
	f.env = &seals.Env{
		World:   f.st,
		Queue:   f.q,
		Board:   provision.NewBoard(),
		Catalog: cat,
		Config:  seals.ConfigFromTuning(tuning.Defaults()),
	}
	reg := seals.NewRegistry(nil)
	kinds.RegisterDefaults(reg, nil)
	f.mgr = seals.NewManager(reg, f.env, nil)
	f.q.SetOnRemove(f.mgr.OnTaskRemoved)
	return f
}

func (f *fixture) place(t *testing.T, key string, a geom.Anchor) *seals.Seal {
	t.Helper()
	s, err := f.mgr.Place(key, a, seals.PlaceOpts{})
	if err != nil {
		t.Fatalf("place %s: %v", key, err)
	}
	return s
}

// enroll makes workers resolvable by id, the way the dispatcher does.
func (f *fixture) enroll(ws ...*testWorker) {
	byID := map[string]*testWorker{}
	for _, w := range ws {
		byID[w.id] = w
	}
	f.env.Workers = func(id string) (seals.Worker, bool) {
		w, ok := byID[id]
		if !ok {
			return nil, false
		}
		return w, true
	}
}

// linkedTo returns the pending task serving request rid.
func (f *fixture) linkedTo(t *testing.T, rid uint64) *tasks.Task {
	t.Helper()
	for _, c := range f.pending() {
		if c.LinkedRequest == rid {
			return c
		}
	}
	t.Fatalf("no pending task for request %d", rid)
	return nil
}

// carry runs both provision phases of request rid with w.
func (f *fixture) carry(t *testing.T, w *testWorker, rid uint64) {
	t.Helper()
	f.finish(t, w, f.claim(t, w, f.linkedTo(t, rid).ID))
	if w.chained == 0 {
		t.Fatalf("request %d: delivery not chained", rid)
	}
	next := w.chained
	w.chained = 0
	f.finish(t, w, f.claim(t, w, next))
}

// tick advances seals and the queue by one step.
func (f *fixture) tick() {
	f.now++
	f.mgr.Tick(f.now)
	f.q.Tick(func(t *tasks.Task) bool { return true })
}

func (f *fixture) pending() []*tasks.Task {
	return f.q.Candidates(geom.Vec3i{}, tasks.CandidateOpts{})
}

// claim reserves and starts a task the way the dispatcher does.
func (f *fixture) claim(t *testing.T, w *testWorker, id uint64) *tasks.Task {
	t.Helper()
	task, ok := f.q.Get(id)
	if !ok {
		t.Fatalf("task %d missing", id)
	}
	if !f.mgr.Eligible(w, task) || !f.mgr.CanPerform(w, task) {
		t.Fatalf("worker %s cannot perform task %d", w.id, id)
	}
	if task.State != tasks.Reserved && !f.q.Reserve(id, w.id) {
		t.Fatalf("reserve %d failed", id)
	}
	f.mgr.Start(w, task)
	return task
}

// finish runs OnComplete until done and returns the number of attempts.
func (f *fixture) finish(t *testing.T, w *testWorker, task *tasks.Task) int {
	t.Helper()
	for n := 1; n <= 100; n++ {
		done, ok := f.mgr.Complete(w, task)
		if !ok {
			t.Fatalf("task %d failed", task.ID)
		}
		if done {
			f.q.Complete(task.ID)
			return n
		}
	}
	t.Fatalf("task %d never finished", task.ID)
	return 0
}

var (
	floor = geom.Anchor{Pos: geom.Vec3i{}, Face: geom.Up}
	front = floor.Front()
)
