package store

import (
	"testing"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
)

func TestBreakBlock_CropAndContainerDrops(t *testing.T) {
	s := New(nil)
	crop := geom.Vec3i{X: 1}
	s.SetBlock(crop, seals.Block{ID: "WHEAT", Age: 7})
	drops, ok := s.BreakBlock(crop)
	if !ok || len(drops) != 2 || drops[0].Item != "WHEAT" || drops[1].Item != "WHEAT_SEEDS" {
		t.Fatalf("crop drops=%v ok=%v", drops, ok)
	}
	if !s.Block(crop).IsAir() {
		t.Fatalf("crop not cleared")
	}

	chest := geom.Vec3i{X: 2}
	s.SetBlock(chest, seals.Block{ID: "CHEST"})
	inv, ok := s.InventoryAt(chest)
	if !ok || inv.Size() != 27 {
		t.Fatalf("chest inventory missing")
	}
	inv.Insert(items.Of("COAL", 5), false)
	drops, _ = s.BreakBlock(chest)
	if len(drops) != 2 || drops[1].Count != 5 {
		t.Fatalf("chest drops=%v", drops)
	}
	if _, ok := s.InventoryAt(chest); ok {
		t.Fatalf("container survived its block")
	}

	s.SetBlock(geom.Vec3i{}, seals.Block{ID: "BEDROCK"})
	if _, ok := s.BreakBlock(geom.Vec3i{}); ok {
		t.Fatalf("bedrock broke")
	}
}

func TestDamage_KillLeavesDrop(t *testing.T) {
	s := New(nil)
	id, err := s.SpawnCreature("COW", geom.Vec3i{X: 3}, true)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if s.Damage(id, 4) {
		t.Fatalf("cow died early")
	}
	if !s.Damage(id, 6) {
		t.Fatalf("cow survived")
	}
	ents := s.EntitiesIn(geom.Around(geom.Vec3i{X: 3}, 0))
	if len(ents) != 1 || ents[0].Kind != seals.EntityItem || ents[0].Item.Item != "RAW_BEEF" {
		t.Fatalf("entities=%+v", ents)
	}
	if _, err := s.SpawnCreature("DRAGON", geom.Vec3i{}, true); err == nil {
		t.Fatalf("unknown species spawned")
	}
}

func TestInteract(t *testing.T) {
	s := New(nil)
	lever := geom.Vec3i{Y: 1}
	s.SetBlock(lever, seals.Block{ID: "LEVER"})
	if _, ok := s.Interact(lever, items.Stack{}, true, false); !ok || s.Block(lever).Age != 1 {
		t.Fatalf("lever did not flip")
	}

	spot := geom.Vec3i{X: 5}
	rest, ok := s.Interact(spot, items.Of("WHEAT_SEEDS", 3), true, false)
	if !ok || rest.Count != 2 || s.Block(spot).ID != "WHEAT" {
		t.Fatalf("planting rest=%v ok=%v block=%v", rest, ok, s.Block(spot))
	}
	if _, ok := s.Interact(spot, items.Stack{}, false, false); !ok || !s.Block(spot).IsAir() {
		t.Fatalf("primary click did not break")
	}
	if n := len(s.EntitiesIn(geom.Around(spot, 0))); n != 1 {
		t.Fatalf("break drops=%d want=1 (seed)", n)
	}
}

func TestExportImport(t *testing.T) {
	s := New(nil)
	s.SetBlock(geom.Vec3i{X: 1}, seals.Block{ID: "BARREL"})
	inv, _ := s.InventoryAt(geom.Vec3i{X: 1})
	inv.Insert(items.Of("LOG", 12), false)
	s.SetBlock(geom.Vec3i{X: 2}, seals.Block{ID: "WHEAT", Age: 3})
	s.SpawnItem(geom.Vec3i{X: 4}, items.Of("COAL", 2))
	cow, _ := s.SpawnCreature("COW", geom.Vec3i{X: 6}, false)

	var snap snapshot.SnapshotV1
	s.Export(&snap)

	r := New(nil)
	r.Import(snap)
	if got := r.Block(geom.Vec3i{X: 2}); got.ID != "WHEAT" || got.Age != 3 {
		t.Fatalf("crop=%+v", got)
	}
	rinv, ok := r.InventoryAt(geom.Vec3i{X: 1})
	if !ok || items.Count(rinv, nil) != 12 {
		t.Fatalf("barrel contents lost")
	}
	e, ok := r.Entity(cow)
	if !ok || e.Class != "PASSIVE" || e.Adult {
		t.Fatalf("cow=%+v ok=%v", e, ok)
	}
	if id := r.SpawnItem(geom.Vec3i{}, items.Of("COAL", 1)); id == cow || r.RemoveEntity(id) == false {
		t.Fatalf("entity id counter not restored: %s", id)
	}
}
