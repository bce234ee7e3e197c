package kinds_test

import (
	"testing"

	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/provision"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/seals/kinds"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/traits"
)

func TestPickup_OneTaskPerTickDistinctEntities(t *testing.T) {
	f := newFixture(t)
	f.st.SetBlock(floor.Pos, seals.Block{ID: "STONE"})
	f.place(t, kinds.KeyPickup, floor)
	a := f.st.SpawnItem(front, items.Of("COAL", 3))
	b := f.st.SpawnItem(front.Add(geom.Vec3i{X: 1}), items.Of("LOG", 1))
	f.st.SpawnItem(front.Add(geom.Vec3i{X: 5}), items.Of("LOG", 1))

	f.tick()
	if n := f.q.Len(); n != 1 {
		t.Fatalf("after tick 1 queue=%d want=1", n)
	}
	f.tick()
	if n := f.q.Len(); n != 2 {
		t.Fatalf("after tick 2 queue=%d want=2", n)
	}
	f.tick()
	if n := f.q.Len(); n != 2 {
		t.Fatalf("outside entity targeted: queue=%d", n)
	}
	seen := map[string]bool{}
	for _, task := range f.q.All() {
		seen[task.Target.EntityID] = true
	}
	if !seen[a] || !seen[b] {
		t.Fatalf("targets=%v want %s and %s", seen, a, b)
	}

	w := newWorker("g1")
	task := f.claim(t, w, f.q.All()[0].ID)
	if w.pursuing != task.Target {
		t.Fatalf("worker not pursuing target")
	}
	f.finish(t, w, task)
	if _, ok := f.st.Entity(task.Target.EntityID); ok {
		t.Fatalf("picked-up entity still in world")
	}
	if items.Count(w.inv, nil) == 0 {
		t.Fatalf("worker inventory empty")
	}
}

func TestBreaker_ProgressiveCompletion(t *testing.T) {
	f := newFixture(t)
	f.st.SetBlock(floor.Pos, seals.Block{ID: "STONE"})
	s := f.place(t, kinds.KeyBreaker, floor)
	zero := geom.Vec3i{}
	f.mgr.Configure(floor, "", seals.Update{Area: &zero})
	if s.Box().Volume() != 1 {
		t.Fatalf("box=%+v", s.Box())
	}
	f.st.SetBlock(front, seals.Block{ID: "IRON_ORE"}) // hardness 5
	f.tick()
	cands := f.pending()
	if len(cands) != 1 {
		t.Fatalf("candidates=%d", len(cands))
	}

	if f.mgr.Eligible(newWorker("weak"), cands[0]) {
		t.Fatalf("worker without BREAKER trait is eligible")
	}
	w := newWorker("g1", traits.Breaker)
	task := f.claim(t, w, cands[0].ID)
	last := task.Data
	falses := 0
	for {
		done, ok := f.mgr.Complete(w, task)
		if !ok {
			t.Fatalf("complete failed")
		}
		if task.Data >= last && !done {
			t.Fatalf("payload did not decrease: %d -> %d", last, task.Data)
		}
		last = task.Data
		if done {
			break
		}
		falses++
	}
	if falses != 4 {
		t.Fatalf("false returns=%d want=4", falses)
	}
	if !f.st.Block(front).IsAir() || items.Count(w.inv, nil) != 1 {
		t.Fatalf("block not broken or drop missing")
	}
}

func TestStockProvide_TwoPhaseDelivery(t *testing.T) {
	f := newFixture(t)
	stockAt := geom.Anchor{Pos: geom.Vec3i{X: 0, Z: 10}, Face: geom.Up}
	provAt := geom.Anchor{Pos: geom.Vec3i{X: 5, Z: 10}, Face: geom.Up}
	f.st.SetBlock(stockAt.Pos, seals.Block{ID: "CHEST"})
	f.st.SetBlock(provAt.Pos, seals.Block{ID: "CHEST"})
	stockInv, _ := f.st.InventoryAt(stockAt.Pos)
	provInv, _ := f.st.InventoryAt(provAt.Pos)
	stockInv.Insert(items.Of("LOG", 3), false)
	provInv.Insert(items.Of("LOG", 20), false)

	stock := f.place(t, kinds.KeyStock, stockAt)
	if !stock.Filter.Whitelist {
		t.Fatalf("stock filter must be a whitelist")
	}
	fl := stock.Filter.Clone()
	fl.Whitelist = false
	fl.Set(0, items.Of("LOG", 1), 10)
	if err := f.mgr.Configure(stockAt, "", seals.Update{Filter: fl}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if !stock.Filter.Whitelist {
		t.Fatalf("stock filter polarity not forced")
	}
	f.place(t, kinds.KeyProvide, provAt)

	f.tick()
	reqs := f.env.Board.All()
	if len(reqs) != 1 || reqs[0].Item.Count != 7 {
		t.Fatalf("requests=%+v want one for 7", reqs)
	}
	f.tick()
	cands := f.pending()
	if len(cands) != 1 || cands[0].LinkedRequest != reqs[0].ID {
		t.Fatalf("phase 0 task missing: %+v", cands)
	}

	w := newWorker("g1")
	phase0 := f.claim(t, w, cands[0].ID)
	f.finish(t, w, phase0)
	if w.chained == 0 {
		t.Fatalf("phase 1 not chained to worker")
	}
	r, _ := f.env.Board.Get(reqs[0].ID)
	if r.State != provision.Relinked || r.LinkedTask != w.chained {
		t.Fatalf("request=%+v", r)
	}
	if st, _ := f.q.StateOf(w.chained); st != tasks.Reserved {
		t.Fatalf("phase 1 state=%s", st)
	}

	phase1 := f.claim(t, w, w.chained)
	f.finish(t, w, phase1)
	r, _ = f.env.Board.Get(reqs[0].ID)
	if r.State != provision.Fulfilled || r.Links != 2 {
		t.Fatalf("request=%+v", r)
	}
	log := func(x items.Stack) bool { return x.Item == "LOG" }
	if got := items.Count(stockInv, log); got != 10 {
		t.Fatalf("stocked=%d want=10", got)
	}
	if got := items.Count(provInv, log); got != 13 {
		t.Fatalf("provider=%d want=13", got)
	}

	f.tick()
	if open := f.env.Board.OpenFor(provision.ToSeal(stockAt), f.now); len(open) != 0 {
		t.Fatalf("stock re-requested at target level: %+v", open)
	}
}

func TestProvide_ColorMustMatch(t *testing.T) {
	f := newFixture(t)
	provAt := geom.Anchor{Pos: geom.Vec3i{X: 5}, Face: geom.Up}
	f.st.SetBlock(provAt.Pos, seals.Block{ID: "CHEST"})
	inv, _ := f.st.InventoryAt(provAt.Pos)
	inv.Insert(items.Of("COAL", 4), false)
	f.place(t, kinds.KeyProvide, provAt)
	red := 3
	f.mgr.Configure(provAt, "", seals.Update{Color: &red})

	f.env.Board.Add(provision.Request{Item: items.Of("COAL", 1), Dest: provision.ToPos(geom.Vec3i{}), Color: 5})
	f.tick()
	if f.q.Len() != 0 {
		t.Fatalf("provider served a foreign color")
	}
	f.env.Board.Add(provision.Request{Item: items.Of("COAL", 2), Dest: provision.ToPos(geom.Vec3i{X: 1}), Color: 3})
	f.tick()
	if f.q.Len() != 1 {
		t.Fatalf("provider ignored matching color: queue=%d", f.q.Len())
	}
}

func TestButcher_ThresholdAndWait(t *testing.T) {
	f := newFixture(t)
	f.st.SetBlock(floor.Pos, seals.Block{ID: "STONE"})
	f.place(t, kinds.KeyButcher, floor)
	for i := 0; i < 2; i++ {
		f.st.SpawnCreature("COW", front.Add(geom.Vec3i{X: i}), true)
	}
	f.st.SpawnCreature("COW", front.Add(geom.Vec3i{Z: 1}), false)
	f.tick()
	if f.q.Len() != 0 {
		t.Fatalf("culled at threshold")
	}

	f.st.SpawnCreature("COW", front.Add(geom.Vec3i{X: 2}), true)
	f.tick()
	f.tick()
	if f.q.Len() != 1 {
		t.Fatalf("queue=%d want exactly one outstanding cull", f.q.Len())
	}

	w := newWorker("g1", traits.Fighter)
	task := f.claim(t, w, f.pending()[0].ID)
	f.finish(t, w, task)
	f.tick()
	if f.q.Len() != 0 {
		t.Fatalf("culled below threshold")
	}
}

func TestGuard_TargetsAndPvP(t *testing.T) {
	f := newFixture(t)
	f.st.SetBlock(floor.Pos, seals.Block{ID: "STONE"})
	f.place(t, kinds.KeyGuard, floor)
	zombie, _ := f.st.SpawnCreature("ZOMBIE", front, true)
	f.st.SpawnCreature("PLAYER", front.Add(geom.Vec3i{X: 1}), true)
	f.st.SpawnCreature("COW", front.Add(geom.Vec3i{X: 2}), true)

	f.tick()
	if f.q.Len() != 1 || f.q.All()[0].Target.EntityID != zombie {
		t.Fatalf("tasks=%+v want only the zombie", f.q.All())
	}

	f.mgr.Configure(floor, "", seals.Update{Toggles: map[string]bool{"players": true}})
	f.tick()
	if f.q.Len() != 1 {
		t.Fatalf("player targeted with pvp off")
	}
	f.env.Config.PvPAllowed = true
	f.tick()
	if f.q.Len() != 2 {
		t.Fatalf("player not targeted with pvp on: queue=%d", f.q.Len())
	}

	w := newWorker("g1", traits.Fighter)
	var zt *tasks.Task
	for _, c := range f.pending() {
		if c.Target.EntityID == zombie {
			zt = c
		}
	}
	task := f.claim(t, w, zt.ID)
	if strikes := f.finish(t, w, task); strikes != 5 {
		t.Fatalf("strikes=%d want=5", strikes)
	}
	if _, alive := f.st.Entity(zombie); alive {
		t.Fatalf("zombie survived")
	}
}

func TestHarvest_ReapThenReplant(t *testing.T) {
	f := newFixture(t)
	f.st.SetBlock(floor.Pos, seals.Block{ID: "FARMLAND"})
	f.place(t, kinds.KeyHarvest, floor)
	f.st.SetBlock(front, seals.Block{ID: "WHEAT", Age: 3})
	f.tick()
	if f.q.Len() != 0 {
		t.Fatalf("immature crop harvested")
	}
	f.st.SetBlock(front, seals.Block{ID: "WHEAT", Age: 7})
	f.tick()
	w := newWorker("g1")
	f.finish(t, w, f.claim(t, w, f.pending()[0].ID))
	if !f.st.Block(front).IsAir() {
		t.Fatalf("crop not reaped")
	}

	f.tick()
	cands := f.pending()
	if len(cands) != 1 || cands[0].Data != 1 {
		t.Fatalf("replant task missing: %+v", cands)
	}
	if f.mgr.Eligible(newWorker("oaf", traits.Clumsy), cands[0]) {
		t.Fatalf("clumsy worker allowed near crops")
	}
	f.finish(t, w, f.claim(t, w, cands[0].ID))
	if b := f.st.Block(front); b.ID != "WHEAT" || b.Age != 0 {
		t.Fatalf("replanted=%+v", b)
	}
	if got := items.Count(w.inv, func(x items.Stack) bool { return x.Item == "WHEAT" }); got != 1 {
		t.Fatalf("produce=%d want=1", got)
	}
}

func TestUse_SingleOutstanding(t *testing.T) {
	f := newFixture(t)
	f.st.SetBlock(floor.Pos, seals.Block{ID: "STONE"})
	f.st.SetBlock(front, seals.Block{ID: "LEVER"})
	f.place(t, kinds.KeyUse, floor)
	f.tick()
	f.tick()
	if f.q.Len() != 1 {
		t.Fatalf("queue=%d want=1", f.q.Len())
	}
	if f.mgr.Eligible(newWorker("g0"), f.pending()[0]) {
		t.Fatalf("USE needs DEFT")
	}
	w := newWorker("g1", traits.Deft)
	f.finish(t, w, f.claim(t, w, f.pending()[0].ID))
	if f.st.Block(front).Age != 1 {
		t.Fatalf("lever not flipped")
	}
	f.tick()
	if f.q.Len() != 1 {
		t.Fatalf("use seal did not re-arm")
	}
}

func TestEmpty_LeaveOneAndFill(t *testing.T) {
	f := newFixture(t)
	src := geom.Anchor{Pos: geom.Vec3i{X: 1}, Face: geom.North}
	dst := geom.Anchor{Pos: geom.Vec3i{X: 3}, Face: geom.North}
	f.st.SetBlock(src.Pos, seals.Block{ID: "BARREL"})
	f.st.SetBlock(dst.Pos, seals.Block{ID: "BARREL"})
	srcInv, _ := f.st.InventoryAt(src.Pos)
	dstInv, _ := f.st.InventoryAt(dst.Pos)
	srcInv.Insert(items.Of("COAL", 5), false)

	f.place(t, kinds.KeyEmpty, src)
	f.mgr.Configure(src, "", seals.Update{Toggles: map[string]bool{"leave_one": true}})
	f.place(t, kinds.KeyFill, dst)

	f.tick()
	w := newWorker("g1")
	var emptyTask *tasks.Task
	for _, c := range f.pending() {
		if c.Origin == src {
			emptyTask = c
		}
	}
	f.finish(t, w, f.claim(t, w, emptyTask.ID))
	if got := items.Count(srcInv, nil); got != 1 {
		t.Fatalf("source left=%d want=1", got)
	}

	var fillTask *tasks.Task
	for _, c := range f.pending() {
		if c.Origin == dst {
			fillTask = c
		}
	}
	if fillTask == nil {
		t.Fatalf("fill task missing")
	}
	f.finish(t, w, f.claim(t, w, fillTask.ID))
	if got := items.Count(dstInv, nil); got != 4 {
		t.Fatalf("deposited=%d want=4", got)
	}
	if items.Count(w.inv, nil) != 0 {
		t.Fatalf("worker kept items")
	}
}

func TestLumber_FellsLogs(t *testing.T) {
	f := newFixture(t)
	f.st.SetBlock(floor.Pos, seals.Block{ID: "DIRT"})
	f.place(t, kinds.KeyLumber, floor)
	for y := 1; y <= 3; y++ {
		f.st.SetBlock(geom.Vec3i{X: 1, Y: y}, seals.Block{ID: "BIRCH_LOG"})
	}
	f.st.SetBlock(geom.Vec3i{X: -1, Y: 1}, seals.Block{ID: "STONE"})
	w := newWorker("g1")
	for i := 0; i < 3; i++ {
		f.tick()
		f.finish(t, w, f.claim(t, w, f.pending()[0].ID))
	}
	f.tick()
	if f.q.Len() != 0 {
		t.Fatalf("non-log targeted")
	}
	if got := items.Count(w.inv, func(x items.Stack) bool { return x.Item == "BIRCH_LOG" }); got != 3 {
		t.Fatalf("logs=%d want=3", got)
	}
}

func TestHarvest_SeedProvisionedToWorker(t *testing.T) {
	f := newFixture(t)
	f.st.SetBlock(floor.Pos, seals.Block{ID: "FARMLAND"})
	f.place(t, kinds.KeyHarvest, floor)
	if err := f.mgr.Configure(floor, "", seals.Update{Toggles: map[string]bool{"provision": true}}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	provAt := geom.Anchor{Pos: geom.Vec3i{X: 6}, Face: geom.Up}
	f.st.SetBlock(provAt.Pos, seals.Block{ID: "CHEST"})
	provInv, _ := f.st.InventoryAt(provAt.Pos)
	provInv.Insert(items.Of("WHEAT_SEEDS", 4), false)
	f.place(t, kinds.KeyProvide, provAt)

	f.st.SetBlock(front, seals.Block{ID: "WHEAT", Age: 7})
	f.tick()
	reaper := newWorker("g1")
	f.finish(t, reaper, f.claim(t, reaper, f.pending()[0].ID))
	f.tick()
	replant := f.pending()[0]

	planter, carrier := newWorker("g2"), newWorker("g3")
	f.enroll(reaper, planter, carrier)
	if f.mgr.CanPerform(planter, replant) {
		t.Fatalf("worker without seeds may replant")
	}
	reqs := f.env.Board.All()
	if len(reqs) != 1 || reqs[0].Dest != provision.ToEntity("g2") || reqs[0].Item.Item != "WHEAT_SEEDS" {
		t.Fatalf("requests=%+v want seeds for g2", reqs)
	}

	f.tick()
	f.carry(t, carrier, reqs[0].ID)
	if r, _ := f.env.Board.Get(reqs[0].ID); r.State != provision.Fulfilled {
		t.Fatalf("request state=%s want FULFILLED", r.State)
	}
	seeds := func(x items.Stack) bool { return x.Item == "WHEAT_SEEDS" }
	if got := items.Count(planter.inv, seeds); got != 1 {
		t.Fatalf("planter seeds=%d want=1", got)
	}
	if got := items.Count(carrier.inv, seeds); got != 0 {
		t.Fatalf("carrier kept %d seeds", got)
	}
	if ground := f.st.EntitiesIn(geom.Around(front, 2)); len(ground) != 0 {
		t.Fatalf("seeds dropped on the ground: %+v", ground)
	}

	f.finish(t, planter, f.claim(t, planter, replant.ID))
	if b := f.st.Block(front); b.ID != "WHEAT" || b.Age != 0 {
		t.Fatalf("replanted=%+v", b)
	}
}

func TestProvide_DeliversToPositionAndCreature(t *testing.T) {
	f := newFixture(t)
	provAt := geom.Anchor{Pos: geom.Vec3i{X: 5}, Face: geom.Up}
	f.st.SetBlock(provAt.Pos, seals.Block{ID: "CHEST"})
	inv, _ := f.st.InventoryAt(provAt.Pos)
	inv.Insert(items.Of("COAL", 6), false)
	f.place(t, kinds.KeyProvide, provAt)

	drop := geom.Vec3i{X: 2, Y: 1}
	cowAt := geom.Vec3i{X: -3, Y: 1}
	cow, err := f.st.SpawnCreature("COW", cowAt, true)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	posReq, _ := f.env.Board.Add(provision.Request{Item: items.Of("COAL", 2), Dest: provision.ToPos(drop), At: provAt.Pos})
	cowReq, _ := f.env.Board.Add(provision.Request{Item: items.Of("COAL", 1), Dest: provision.ToEntity(cow), At: provAt.Pos})
	f.tick()
	f.tick()

	w := newWorker("g1")
	f.enroll(w)
	f.carry(t, w, posReq)
	f.carry(t, w, cowReq)

	for _, c := range []struct {
		rid  uint64
		at   geom.Vec3i
		want int
	}{{posReq, drop, 2}, {cowReq, cowAt, 1}} {
		if r, _ := f.env.Board.Get(c.rid); r.State != provision.Fulfilled {
			t.Fatalf("request %d state=%s", c.rid, r.State)
		}
		got := 0
		for _, e := range f.st.EntitiesIn(geom.Around(c.at, 0)) {
			if e.Kind == seals.EntityItem && e.Item.Item == "COAL" {
				got += e.Item.Count
			}
		}
		if got != c.want {
			t.Fatalf("request %d: %d coal at %v want %d", c.rid, got, c.at, c.want)
		}
	}
	if got := items.Count(w.inv, func(x items.Stack) bool { return x.Item == "COAL" }); got != 0 {
		t.Fatalf("carrier kept %d coal", got)
	}
}

func TestProvide_EmptyPickupExpiresRequest(t *testing.T) {
	f := newFixture(t)
	provAt := geom.Anchor{Pos: geom.Vec3i{X: 5}, Face: geom.Up}
	f.st.SetBlock(provAt.Pos, seals.Block{ID: "CHEST"})
	inv, _ := f.st.InventoryAt(provAt.Pos)
	inv.Insert(items.Of("COAL", 2), false)
	f.place(t, kinds.KeyProvide, provAt)

	rid, _ := f.env.Board.Add(provision.Request{Item: items.Of("COAL", 2), Dest: provision.ToPos(geom.Vec3i{X: 1}), At: provAt.Pos})
	f.tick()
	w := newWorker("g1")
	task := f.claim(t, w, f.linkedTo(t, rid).ID)
	coal := func(x items.Stack) bool { return x.Item == "COAL" }
	items.ExtractMatching(inv, 2, coal, false)

	f.finish(t, w, task)
	if r, _ := f.env.Board.Get(rid); r.State != provision.Expired {
		t.Fatalf("request state=%s want EXPIRED", r.State)
	}
	if w.chained != 0 {
		t.Fatalf("delivery chained with nothing picked up")
	}
	if len(f.pending()) != 0 {
		t.Fatalf("stray tasks: %+v", f.pending())
	}
}
