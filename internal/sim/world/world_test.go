package world

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"golemcraft.ai/internal/observerproto"
	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/seals/kinds"
	"golemcraft.ai/internal/sim/traits"
	"golemcraft.ai/internal/sim/tuning"
)

type memTickLog struct{ entries []TickLogEntry }

func (m *memTickLog) WriteTick(e TickLogEntry) error { m.entries = append(m.entries, e); return nil }

type memAuditLog struct{ entries []AuditEntry }

func (m *memAuditLog) WriteAudit(e AuditEntry) error { m.entries = append(m.entries, e); return nil }

func newTestWorld(t *testing.T) *World {
	t.Helper()
	tun := tuning.Defaults()
	w, err := New(ConfigFromTuning("test", tun), catalogs.Default(), tun, nil)
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

var pickupAt = geom.Anchor{Pos: geom.Vec3i{X: 6}, Face: geom.Up}

func setupPickup(t *testing.T, w *World) string {
	t.Helper()
	res := w.StepOnce(
		SetBlock{Pos: pickupAt.Pos, Block: "STONE"},
		PlaceSeal{Actor: "owner-1", Type: kinds.KeyPickup, Anchor: pickupAt},
		SpawnItem{Pos: pickupAt.Front(), Stack: items.Of("COAL", 4)},
		SpawnGolem{Name: "alpha", Pos: geom.Vec3i{}, Traits: traits.Of(traits.Hauler)},
	)
	for i, r := range res {
		if r.Err != nil {
			t.Fatalf("setup cmd %d: %v", i, r.Err)
		}
	}
	return res[3].ID
}

func TestWorld_PickupEndToEnd(t *testing.T) {
	w := newTestWorld(t)
	ticks := &memTickLog{}
	audits := &memAuditLog{}
	w.SetTickLogger(ticks)
	w.SetAuditLogger(audits)

	gid := setupPickup(t, w)
	for i := 0; i < 12; i++ {
		w.StepOnce()
	}

	g, ok := w.golems.Get(gid)
	if !ok {
		t.Fatalf("golem %s missing", gid)
	}
	if got := items.Count(g.Inventory(), nil); got != 4 {
		t.Fatalf("golem carries=%d want=4", got)
	}
	m := w.Metrics()
	if m.Tick != 13 || m.Seals != 1 || m.Golems != 1 || m.Tasks.Totals.Completed != 1 {
		t.Fatalf("metrics=%+v", m)
	}
	if len(audits.entries) != 1 || audits.entries[0].Action != "PLACE" || audits.entries[0].Actor != "owner-1" {
		t.Fatalf("audits=%+v", audits.entries)
	}
	var completed bool
	for _, e := range ticks.entries {
		for _, r := range e.Removed {
			if r.Reason == "COMPLETED" && r.Worker == gid {
				completed = true
			}
		}
	}
	if !completed {
		t.Fatalf("no completion in tick log: %+v", ticks.entries)
	}
}

func TestWorld_CommandErrors(t *testing.T) {
	w := newTestWorld(t)
	w.StepOnce(SetBlock{Pos: pickupAt.Pos, Block: "STONE"})
	res := w.StepOnce(
		PlaceSeal{Type: kinds.KeyPickup, Anchor: pickupAt},
		PlaceSeal{Type: kinds.KeyPickup, Anchor: pickupAt},
		PlaceSeal{Type: "NOPE", Anchor: geom.Anchor{Pos: geom.Vec3i{X: 9}, Face: geom.Up}},
		PlaceSeal{Type: kinds.KeyEmpty, Anchor: geom.Anchor{Pos: geom.Vec3i{X: 12}, Face: geom.Up}},
		RemoveGolem{ID: "ghost"},
		SetBlock{Pos: geom.Vec3i{}, Block: "UNOBTAINIUM"},
	)
	want := []error{nil, seals.ErrOccupied, seals.ErrUnknownType, seals.ErrCannotPlace, ErrGolemNotFound, ErrBadCommand}
	for i, r := range res {
		if want[i] == nil && r.Err != nil || want[i] != nil && !errors.Is(r.Err, want[i]) {
			t.Fatalf("cmd %d: err=%v want=%v", i, r.Err, want[i])
		}
	}
}

func TestWorld_LockedSealRejectsStrangers(t *testing.T) {
	w := newTestWorld(t)
	setupPickup(t, w)
	lock := true
	res := w.StepOnce(
		ConfigureSeal{Actor: "owner-1", Anchor: pickupAt, Update: seals.Update{Locked: &lock}},
		RemoveSeal{Actor: "intruder", Anchor: pickupAt},
	)
	if res[0].Err != nil || !errors.Is(res[1].Err, seals.ErrLocked) {
		t.Fatalf("results=%+v", res)
	}
	if res := w.StepOnce(RemoveSeal{Actor: "owner-1", Anchor: pickupAt}); res[0].Err != nil {
		t.Fatalf("owner remove: %v", res[0].Err)
	}
}

func TestWorld_SnapshotRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	gid := setupPickup(t, w)
	w.StepOnce()
	snap := w.ExportSnapshot(w.CurrentTick() - 1)
	snap.Seals = append(snap.Seals, snap.Seals[0])
	snap.Seals[1].Pos = [3]int{50, 0, 0}
	snap.Seals[1].Type = "RETIRED_BEHAVIOR"

	w2 := newTestWorld(t)
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if w2.CurrentTick() != snap.Header.Tick+1 {
		t.Fatalf("tick=%d want=%d", w2.CurrentTick(), snap.Header.Tick+1)
	}
	if w2.seals.Len() != 1 {
		t.Fatalf("seals=%d want=1 (unknown type dropped)", w2.seals.Len())
	}
	if _, ok := w2.golems.Get(gid); !ok {
		t.Fatalf("golem not restored")
	}
	if w2.queue.NextID() < snap.Counters.NextTask {
		t.Fatalf("task counter moved backwards")
	}
	if err := w2.ImportSnapshot(snap); !errors.Is(err, ErrEmptyWorld) {
		t.Fatalf("second import err=%v", err)
	}
}

func TestWorld_ObserverReplication(t *testing.T) {
	w := newTestWorld(t)
	setupPickup(t, w)

	data := make(chan []byte, 16)
	tick := make(chan []byte, 2)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "O1", TickOut: tick, DataOut: data, Center: geom.Vec3i{}, Radius: 10})

	var seal observerproto.SealMsg
	if err := json.Unmarshal(<-data, &seal); err != nil || seal.Type != observerproto.TypeSeal || seal.Seal.Type != kinds.KeyPickup {
		t.Fatalf("sync msg=%+v err=%v", seal, err)
	}

	far := geom.Anchor{Pos: geom.Vec3i{X: 40}, Face: geom.Up}
	w.StepOnce(SetBlock{Pos: far.Pos, Block: "STONE"}, PlaceSeal{Type: kinds.KeyLumber, Anchor: far})
	select {
	case b := <-data:
		t.Fatalf("out-of-range seal replicated: %s", b)
	default:
	}

	w.StepOnce(RemoveSeal{Anchor: pickupAt})
	var gone observerproto.SealRemovedMsg
	if err := json.Unmarshal(<-data, &gone); err != nil || gone.Type != observerproto.TypeSealRemoved || gone.Pos != pickupAt.Pos.Array() {
		t.Fatalf("tombstone=%+v err=%v", gone, err)
	}

	var tm observerproto.TickMsg
	var last []byte
	for len(tick) > 0 {
		last = <-tick
	}
	if err := json.Unmarshal(last, &tm); err != nil || tm.Type != observerproto.TypeTick || len(tm.Golems) != 1 {
		t.Fatalf("tick=%+v err=%v", tm, err)
	}

	w.handleObserverSubscribe(ObserverSubscribeRequest{SessionID: "O1", Center: far.Pos, Radius: 4})
	if err := json.Unmarshal(<-data, &seal); err != nil || seal.Seal.Type != kinds.KeyLumber {
		t.Fatalf("resync msg=%+v err=%v", seal, err)
	}

	w.handleObserverLeave("O1")
	if _, ok := <-data; ok {
		t.Fatalf("data channel left open")
	}
}

func TestWorld_RunLoopServesCommands(t *testing.T) {
	tun := tuning.Defaults()
	cfg := ConfigFromTuning("loop", tun)
	cfg.TickRateHz = 200
	w, err := New(cfg, catalogs.Default(), tun, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if r, err := w.Submit(ctx, SetBlock{Pos: pickupAt.Pos, Block: "STONE"}); err != nil || r.Err != nil {
		t.Fatalf("set block: %v %v", err, r.Err)
	}
	if r, err := w.Submit(ctx, PlaceSeal{Type: kinds.KeyPickup, Anchor: pickupAt}); err != nil || r.Err != nil {
		t.Fatalf("place: %v %v", err, r.Err)
	}
	recs, err := w.Seals(ctx)
	if err != nil || len(recs) != 1 || recs[0].Type != kinds.KeyPickup {
		t.Fatalf("seals=%+v err=%v", recs, err)
	}
	snap, err := w.SnapshotNow(ctx)
	if err != nil || len(snap.Seals) != 1 {
		t.Fatalf("snapshot=%+v err=%v", snap.Header, err)
	}

	w.Stop()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}
