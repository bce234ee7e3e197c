// Package golem models the workers that consume the task queue and the
// dispatcher that matches them to tasks.
package golem

import (
	"github.com/google/uuid"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/tasks"
	"golemcraft.ai/internal/sim/traits"
)

const InventorySlots = 9

// Golem is a worker. It holds at most one task at a time plus an optional
// chained follow-up it already owns the reservation for.
type Golem struct {
	Name       string
	Home       geom.Vec3i
	HomeRadius int

	id     string
	pos    geom.Vec3i
	traits traits.Set
	inv    *items.SlotInventory
	held   items.Stack

	task    uint64
	target  tasks.Target
	chained uint64
}

func New(name string, pos geom.Vec3i, ts traits.Set) *Golem {
	return &Golem{
		Name:   name,
		Home:   pos,
		id:     uuid.NewString(),
		pos:    pos,
		traits: ts,
		inv:    items.NewSlotInventory(InventorySlots),
	}
}

func (g *Golem) ID() string                 { return g.id }
func (g *Golem) Pos() geom.Vec3i            { return g.pos }
func (g *Golem) Traits() traits.Set         { return g.traits }
func (g *Golem) Inventory() items.Inventory { return g.inv }
func (g *Golem) Held() items.Stack          { return g.held }
func (g *Golem) SetHeld(s items.Stack)      { g.held = s }
func (g *Golem) Pursue(t tasks.Target)      { g.target = t }
func (g *Golem) Chain(id uint64)            { g.chained = id }

func (g *Golem) SetPos(p geom.Vec3i) { g.pos = p }

// Task is the id of the task being worked on, 0 when idle.
func (g *Golem) Task() uint64 { return g.task }

func (g *Golem) Target() tasks.Target { return g.target }

func (g *Golem) Idle() bool { return g.task == 0 }

func (g *Golem) Slots() *items.SlotInventory { return g.inv }

// InHome reports whether p is within the golem's home radius. A zero radius
// means the golem roams freely.
func (g *Golem) InHome(p geom.Vec3i) bool {
	return g.HomeRadius <= 0 || geom.Chebyshev(g.Home, p) <= g.HomeRadius
}

func (g *Golem) clear() {
	g.task = 0
	g.target = tasks.Target{}
}

var _ seals.Worker = (*Golem)(nil)

// Record converts g for a snapshot. Task bindings are not persisted.
func (g *Golem) Record() snapshot.GolemV1 {
	inv := make([]snapshot.StackV1, len(g.inv.Slots))
	for i, s := range g.inv.Slots {
		inv[i] = seals.StackToV1(s)
	}
	return snapshot.GolemV1{
		ID:         g.id,
		Name:       g.Name,
		Pos:        g.pos.Array(),
		Home:       g.Home.Array(),
		HomeRadius: g.HomeRadius,
		Traits:     g.traits.Sorted(),
		Inventory:  inv,
		Held:       seals.StackToV1(g.held),
	}
}

// FromRecord rebuilds a golem from a snapshot record.
func FromRecord(r snapshot.GolemV1) *Golem {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	n := len(r.Inventory)
	if n == 0 {
		n = InventorySlots
	}
	inv := items.NewSlotInventory(n)
	for i, s := range r.Inventory {
		inv.Slots[i] = seals.StackFromV1(s)
	}
	return &Golem{
		Name:       r.Name,
		Home:       geom.FromArray(r.Home),
		HomeRadius: r.HomeRadius,
		id:         id,
		pos:        geom.FromArray(r.Pos),
		traits:     traits.Parse(r.Traits),
		inv:        inv,
		held:       seals.StackFromV1(r.Held),
	}
}
