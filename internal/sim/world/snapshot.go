package world

import (
	"fmt"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/golem"
)

// ExportSnapshot captures seals, golems, the world store and id counters.
// Tasks and provision requests are transient and are not saved; seals re-emit
// their work after a restart.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		TickRate:           w.cfg.TickRateHz,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,
		Seals:              w.seals.Export(),
	}
	for _, g := range w.golems.All() {
		snap.Golems = append(snap.Golems, g.Record())
	}
	w.store.Export(&snap)
	snap.Counters.NextTask = w.queue.NextID()
	snap.Counters.NextRequest = w.board.NextID()
	return snap
}

// ImportSnapshot loads s into a fresh world and sets the tick to s.Tick+1 (the
// next tick to simulate). Seal records of unknown type are dropped with a
// warning.
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	if w.seals.Len() > 0 || w.golems.Len() > 0 {
		return ErrEmptyWorld
	}
	w.tick.Store(s.Header.Tick + 1)
	w.env.Tick = s.Header.Tick + 1
	w.store.Import(s)
	loaded, skipped := w.seals.Import(s.Seals)
	for _, r := range s.Golems {
		w.golems.Add(golem.FromRecord(r))
	}
	w.queue.SetNextID(s.Counters.NextTask)
	w.board.SetNextID(s.Counters.NextRequest)
	w.lastCreated = w.queue.Stats().Totals.Created
	w.logger.Printf("snapshot tick=%d: %d seal(s) loaded, %d skipped, %d golem(s)", s.Header.Tick, loaded, skipped, len(s.Golems))
	return nil
}
