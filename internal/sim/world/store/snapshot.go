package store

import (
	"sort"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
)

func posLess(a, b geom.Vec3i) bool { return (geom.Anchor{Pos: a}).Less(geom.Anchor{Pos: b}) }

// Export writes blocks, entities and containers into snap.
func (s *Store) Export(snap *snapshot.SnapshotV1) {
	snap.Blocks = snap.Blocks[:0]
	for p, b := range s.blocks {
		snap.Blocks = append(snap.Blocks, snapshot.BlockV1{Pos: p.Array(), ID: b.ID, Age: b.Age})
	}
	sort.Slice(snap.Blocks, func(i, j int) bool {
		return posLess(geom.FromArray(snap.Blocks[i].Pos), geom.FromArray(snap.Blocks[j].Pos))
	})

	snap.Containers = snap.Containers[:0]
	for p, inv := range s.containers {
		c := snapshot.ContainerV1{Pos: p.Array()}
		for _, st := range inv.Slots {
			c.Slots = append(c.Slots, seals.StackToV1(st))
		}
		snap.Containers = append(snap.Containers, c)
	}
	sort.Slice(snap.Containers, func(i, j int) bool {
		return posLess(geom.FromArray(snap.Containers[i].Pos), geom.FromArray(snap.Containers[j].Pos))
	})

	snap.Entities = snap.Entities[:0]
	for _, e := range s.entities {
		snap.Entities = append(snap.Entities, snapshot.EntityV1{
			ID:      e.ID,
			Kind:    string(e.Kind),
			Species: e.Species,
			Pos:     e.Pos.Array(),
			Item:    seals.StackToV1(e.Item),
			HP:      e.HP,
			Adult:   e.Adult,
			Owner:   e.Owner,
		})
	}
	sort.Slice(snap.Entities, func(i, j int) bool { return snap.Entities[i].ID < snap.Entities[j].ID })
	snap.Counters.NextEntity = s.nextEntity
}

// Import replaces the store contents with snap.
func (s *Store) Import(snap snapshot.SnapshotV1) {
	s.blocks = map[geom.Vec3i]seals.Block{}
	s.containers = map[geom.Vec3i]*items.SlotInventory{}
	s.entities = map[string]*seals.Entity{}
	for _, b := range snap.Blocks {
		s.SetBlock(geom.FromArray(b.Pos), seals.Block{ID: b.ID, Age: b.Age})
	}
	for _, c := range snap.Containers {
		inv, ok := s.containers[geom.FromArray(c.Pos)]
		if !ok {
			continue
		}
		for i, st := range c.Slots {
			if i < len(inv.Slots) {
				inv.Slots[i] = seals.StackFromV1(st)
			}
		}
	}
	for _, e := range snap.Entities {
		ent := &seals.Entity{
			ID:      e.ID,
			Kind:    seals.EntityKind(e.Kind),
			Species: e.Species,
			Pos:     geom.FromArray(e.Pos),
			Item:    seals.StackFromV1(e.Item),
			HP:      e.HP,
			Adult:   e.Adult,
			Owner:   e.Owner,
		}
		if def, ok := s.cat.Creature(e.Species); ok {
			ent.Class = def.Class
		}
		s.entities[e.ID] = ent
	}
	s.nextEntity = snap.Counters.NextEntity
}
