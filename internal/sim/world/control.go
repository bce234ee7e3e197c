package world

import (
	"context"
	"errors"
	"fmt"

	"golemcraft.ai/internal/sim/geom"
	"golemcraft.ai/internal/sim/golem"
	"golemcraft.ai/internal/sim/items"
	"golemcraft.ai/internal/sim/seals"
	"golemcraft.ai/internal/sim/traits"
)

var (
	ErrGolemNotFound = errors.New("world: no such golem")
	ErrBadCommand    = errors.New("world: bad command")
	ErrStopped       = errors.New("world: stopped")
)

// Command is a state change applied at the next tick boundary.
type Command interface {
	apply(w *World) Result
}

// Result reports the outcome of a command. ID carries the id of anything the
// command created (golem, entity).
type Result struct {
	Tick uint64
	ID   string
	Err  error
}

type ControlRequest struct {
	Cmd  Command
	Resp chan Result
}

type PlaceSeal struct {
	Actor    string
	Type     string
	Anchor   geom.Anchor
	Priority int
	Color    int
	Area     *geom.Vec3i
}

func (c PlaceSeal) apply(w *World) Result {
	_, err := w.seals.Place(c.Type, c.Anchor, seals.PlaceOpts{
		Owner:    c.Actor,
		Priority: c.Priority,
		Color:    c.Color,
		Area:     c.Area,
	})
	return Result{ID: c.Anchor.String(), Err: err}
}

type RemoveSeal struct {
	Actor  string
	Anchor geom.Anchor
}

func (c RemoveSeal) apply(w *World) Result {
	s, ok := w.seals.Get(c.Anchor)
	if !ok {
		return Result{Err: seals.ErrNotFound}
	}
	if s.Locked && c.Actor != "" && c.Actor != s.Owner {
		return Result{Err: seals.ErrLocked}
	}
	w.seals.Remove(c.Anchor, c.Actor, "removed by request")
	return Result{ID: c.Anchor.String()}
}

type ConfigureSeal struct {
	Actor  string
	Anchor geom.Anchor
	Update seals.Update
}

func (c ConfigureSeal) apply(w *World) Result {
	return Result{ID: c.Anchor.String(), Err: w.seals.Configure(c.Anchor, c.Actor, c.Update)}
}

type SpawnGolem struct {
	Name       string
	Pos        geom.Vec3i
	Traits     traits.Set
	HomeRadius int
}

func (c SpawnGolem) apply(w *World) Result {
	g := golem.New(c.Name, c.Pos, c.Traits)
	g.HomeRadius = c.HomeRadius
	w.golems.Add(g)
	return Result{ID: g.ID()}
}

type RemoveGolem struct {
	ID string
}

func (c RemoveGolem) apply(w *World) Result {
	if !w.golems.Remove(c.ID) {
		return Result{Err: ErrGolemNotFound}
	}
	return Result{ID: c.ID}
}

// SetBlock edits the world directly (admin and demo setup).
type SetBlock struct {
	Pos   geom.Vec3i
	Block string
}

func (c SetBlock) apply(w *World) Result {
	if c.Block != "" && c.Block != "AIR" {
		if _, ok := w.catalogs.Block(c.Block); !ok {
			return Result{Err: fmt.Errorf("%w: unknown block %q", ErrBadCommand, c.Block)}
		}
	}
	w.store.SetBlock(c.Pos, seals.Block{ID: c.Block})
	return Result{}
}

type SpawnItem struct {
	Pos   geom.Vec3i
	Stack items.Stack
}

func (c SpawnItem) apply(w *World) Result {
	if c.Stack.IsEmpty() {
		return Result{Err: fmt.Errorf("%w: empty stack", ErrBadCommand)}
	}
	return Result{ID: w.store.SpawnItem(c.Pos, c.Stack)}
}

type SpawnCreature struct {
	Species string
	Pos     geom.Vec3i
	Adult   bool
}

func (c SpawnCreature) apply(w *World) Result {
	id, err := w.store.SpawnCreature(c.Species, c.Pos, c.Adult)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrBadCommand, err)}
	}
	return Result{ID: id}
}

// Stock inserts a stack into the container at Pos.
type Stock struct {
	Pos   geom.Vec3i
	Stack items.Stack
}

func (c Stock) apply(w *World) Result {
	inv, ok := w.store.InventoryAt(c.Pos)
	if !ok || c.Stack.IsEmpty() {
		return Result{Err: fmt.Errorf("%w: no container at %s", ErrBadCommand, c.Pos)}
	}
	if rest := inv.Insert(c.Stack, false); !rest.IsEmpty() {
		return Result{Err: fmt.Errorf("%w: container full (%d left)", ErrBadCommand, rest.Count)}
	}
	return Result{}
}

// Submit queues cmd for the next tick and waits for its result.
func (w *World) Submit(ctx context.Context, cmd Command) (Result, error) {
	resp := make(chan Result, 1)
	select {
	case w.control <- ControlRequest{Cmd: cmd, Resp: resp}:
	case <-w.stop:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-w.stop:
		return Result{}, ErrStopped
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// call runs fn on the loop goroutine between ticks.
func (w *World) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case w.query <- func() { fn(); close(done) }:
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
