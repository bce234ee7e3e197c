// Package store is the in-memory world state seals and golems act on: blocks,
// containers and entities (dropped items and creatures).
package store

import (
	"fmt"
	"sort"

	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
)

// Store is not safe for concurrent use; the world loop owns it.
type Store struct {
	cat *catalogs.Catalogs

	blocks     map[geom.Vec3i]seals.Block
	containers map[geom.Vec3i]*items.SlotInventory
	entities   map[string]*seals.Entity

	nextEntity uint64
}

var _ seals.Access = (*Store)(nil)

func New(cat *catalogs.Catalogs) *Store {
	if cat == nil {
		cat = catalogs.Default()
	}
	return &Store{
		cat:        cat,
		blocks:     map[geom.Vec3i]seals.Block{},
		containers: map[geom.Vec3i]*items.SlotInventory{},
		entities:   map[string]*seals.Entity{},
	}
}

func (s *Store) Catalogs() *catalogs.Catalogs { return s.cat }

func (s *Store) Block(p geom.Vec3i) seals.Block {
	b, ok := s.blocks[p]
	if !ok {
		return seals.Block{ID: "AIR"}
	}
	return b
}

// SetBlock replaces the block at p. Replacing a container spills its contents.
func (s *Store) SetBlock(p geom.Vec3i, b seals.Block) {
	old := s.Block(p)
	if old.ID != b.ID {
		if inv, ok := s.containers[p]; ok {
			delete(s.containers, p)
			for _, st := range inv.Slots {
				if !st.IsEmpty() {
					s.SpawnItem(p, st)
				}
			}
		}
	}
	if b.IsAir() {
		delete(s.blocks, p)
		return
	}
	s.blocks[p] = b
	if def, ok := s.cat.Block(b.ID); ok && def.ContainerSlots > 0 {
		if _, ok := s.containers[p]; !ok {
			s.containers[p] = items.NewSlotInventory(def.ContainerSlots)
		}
	}
}

// BreakBlock clears p and returns its drops, including container contents.
func (s *Store) BreakBlock(p geom.Vec3i) ([]items.Stack, bool) {
	b := s.Block(p)
	if b.IsAir() {
		return nil, false
	}
	def, ok := s.cat.Block(b.ID)
	if !ok || !def.Breakable {
		return nil, false
	}
	var drops []items.Stack
	switch {
	case def.Crop != nil:
		if b.Age >= def.Crop.MaxAge {
			drops = append(drops, items.Of(def.Crop.Produce, 1))
		}
		drops = append(drops, items.Of(def.Crop.Seed, 1))
	case def.DropsItem != "":
		drops = append(drops, items.Of(def.DropsItem, 1))
	}
	if inv, ok := s.containers[p]; ok {
		delete(s.containers, p)
		for _, st := range inv.Slots {
			if !st.IsEmpty() {
				drops = append(drops, st)
			}
		}
	}
	delete(s.blocks, p)
	return drops, true
}

// GrowCrops ages every immature crop by one stage.
func (s *Store) GrowCrops() int {
	n := 0
	for p, b := range s.blocks {
		def, ok := s.cat.Block(b.ID)
		if !ok || def.Crop == nil || b.Age >= def.Crop.MaxAge {
			continue
		}
		b.Age++
		s.blocks[p] = b
		n++
	}
	return n
}

func (s *Store) InventoryAt(p geom.Vec3i) (items.Inventory, bool) {
	inv, ok := s.containers[p]
	if !ok {
		return nil, false
	}
	return inv, true
}

func (s *Store) newEntityID(prefix string) string {
	s.nextEntity++
	return fmt.Sprintf("%s%06d", prefix, s.nextEntity)
}

func (s *Store) SpawnItem(p geom.Vec3i, st items.Stack) string {
	if st.IsEmpty() {
		return ""
	}
	id := s.newEntityID("I")
	s.entities[id] = &seals.Entity{ID: id, Kind: seals.EntityItem, Pos: p, Item: st}
	return id
}

// SpawnCreature adds a creature of a catalog species.
func (s *Store) SpawnCreature(species string, p geom.Vec3i, adult bool) (string, error) {
	def, ok := s.cat.Creature(species)
	if !ok {
		return "", fmt.Errorf("unknown creature %q", species)
	}
	id := s.newEntityID("C")
	s.entities[id] = &seals.Entity{
		ID:      id,
		Kind:    seals.EntityCreature,
		Species: species,
		Class:   def.Class,
		Pos:     p,
		HP:      def.HP,
		Adult:   adult,
	}
	return id, nil
}

func (s *Store) Entity(id string) (seals.Entity, bool) {
	e, ok := s.entities[id]
	if !ok {
		return seals.Entity{}, false
	}
	return *e, true
}

func (s *Store) EntitiesIn(box geom.Box) []seals.Entity {
	var out []seals.Entity
	for _, e := range s.entities {
		if box.Contains(e.Pos) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) RemoveEntity(id string) bool {
	if _, ok := s.entities[id]; !ok {
		return false
	}
	delete(s.entities, id)
	return true
}

func (s *Store) SetEntityItem(id string, st items.Stack) bool {
	e, ok := s.entities[id]
	if !ok || e.Kind != seals.EntityItem {
		return false
	}
	if st.IsEmpty() {
		delete(s.entities, id)
		return true
	}
	e.Item = st
	return true
}

func (s *Store) MoveEntity(id string, p geom.Vec3i) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	e.Pos = p
	return true
}

// Damage hurts a creature; a creature at 0 HP is removed and leaves its drop.
func (s *Store) Damage(id string, amount int) bool {
	e, ok := s.entities[id]
	if !ok || e.Kind != seals.EntityCreature || amount <= 0 {
		return false
	}
	e.HP -= amount
	if e.HP > 0 {
		return false
	}
	delete(s.entities, id)
	if def, ok := s.cat.Creature(e.Species); ok && def.Drops != "" {
		s.SpawnItem(e.Pos, items.Of(def.Drops, 1))
	}
	return true
}

// Interact clicks the block at p:
//   - interactive blocks (levers) flip their state;
//   - secondary click with a placeable item or seed on air places it;
//   - secondary crouch-click on a container deposits held;
//   - primary click breaks the block and drops its items at p.
func (s *Store) Interact(p geom.Vec3i, held items.Stack, secondary, crouch bool) (items.Stack, bool) {
	b := s.Block(p)
	def, known := s.cat.Block(b.ID)
	if !secondary {
		drops, ok := s.BreakBlock(p)
		for _, d := range drops {
			s.SpawnItem(p, d)
		}
		return held, ok
	}
	if known && def.Interactive && !crouch {
		b.Age = 1 - b.Age
		s.blocks[p] = b
		return held, true
	}
	if crouch && !held.IsEmpty() {
		if inv, ok := s.containers[p]; ok {
			rest := inv.Insert(held, false)
			return rest, rest.Count != held.Count
		}
	}
	if held.IsEmpty() || !b.IsAir() {
		return held, false
	}
	place := s.cat.Items.Defs[held.Item].PlaceAs
	if place == "" {
		if crop, ok := s.cat.CropBySeed(held.Item); ok {
			place = crop
		}
	}
	if place == "" {
		return held, false
	}
	s.SetBlock(p, seals.Block{ID: place})
	held.Count--
	if held.Count <= 0 {
		held = items.Stack{}
	}
	return held, true
}

// Counts reports sizes for metrics.
func (s *Store) Counts() (blocks, containers, entities int) {
	return len(s.blocks), len(s.containers), len(s.entities)
}
