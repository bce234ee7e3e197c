package world

import (
	"context"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/provision"
	"golemcraft.ai/internal/sim/tasks"
)

// Seals returns the records of every live seal.
func (w *World) Seals(ctx context.Context) ([]snapshot.SealV1, error) {
	var out []snapshot.SealV1
	err := w.call(ctx, func() { out = w.seals.Export() })
	return out, err
}

func (w *World) Golems(ctx context.Context) ([]snapshot.GolemV1, error) {
	var out []snapshot.GolemV1
	err := w.call(ctx, func() {
		for _, g := range w.golems.All() {
			out = append(out, g.Record())
		}
	})
	return out, err
}

func (w *World) Tasks(ctx context.Context) ([]tasks.Task, error) {
	var out []tasks.Task
	err := w.call(ctx, func() { out = w.queue.All() })
	return out, err
}

func (w *World) Requests(ctx context.Context) ([]provision.Request, error) {
	var out []provision.Request
	err := w.call(ctx, func() { out = w.board.All() })
	return out, err
}

// SnapshotNow exports the state as of the last completed tick.
func (w *World) SnapshotNow(ctx context.Context) (snapshot.SnapshotV1, error) {
	var snap snapshot.SnapshotV1
	err := w.call(ctx, func() {
		t := w.tick.Load()
		if t > 0 {
			t--
		}
		snap = w.ExportSnapshot(t)
	})
	return snap, err
}
