package indexdb

import (
	"context"
	"path/filepath"
	"testing"

	"golemcraft.ai/internal/persistence/snapshot"
	"golemcraft.ai/internal/sim/catalogs"
	"golemcraft.ai/internal/sim/golem"
	"golemcraft.ai/internal/sim/tuning"
	"golemcraft.ai/internal/sim/world"
)

func TestSQLiteIndex_WritesAndQueries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.UpsertCatalogs("w1", catalogs.Default(), tuning.Defaults()); err != nil {
		t.Fatalf("catalogs: %v", err)
	}

	_ = idx.WriteTick(world.TickLogEntry{
		Tick:     10,
		Created:  3,
		Dispatch: golem.Stats{Started: 2, Completed: 1},
		Removed: []world.TaskEvent{
			{TaskID: 1, Origin: [3]int{1, 2, 3}, Face: "UP", Target: "entity:I000001", Reason: "COMPLETED", Worker: "g1"},
			{TaskID: 2, Origin: [3]int{1, 2, 3}, Face: "UP", Target: "pos:4,2,3", Reason: "EXPIRED"},
		},
	})
	_ = idx.WriteTick(world.TickLogEntry{Tick: 11, Created: 1, Dispatch: golem.Stats{Completed: 2, Abandoned: 1}})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 10, Actor: "alice", Action: "PLACE", Pos: [3]int{1, 2, 3}, Face: "UP", Type: "PICKUP"})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 10, Actor: "bob", Action: "REMOVE", Pos: [3]int{1, 2, 3}, Face: "UP", Type: "PICKUP"})
	idx.RecordSnapshot("/data/snap/10.snap.zst", snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, Tick: 10},
		Seals:  make([]snapshot.SealV1, 2),
		Golems: make([]snapshot.GolemV1, 1),
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.WriteTick(world.TickLogEntry{Tick: 12}); err != nil {
		t.Fatalf("write after close should be a no-op, got %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("reader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	meta, err := r.Meta(ctx)
	if err != nil || meta["world_id"] != "w1" || meta["schema_version"] != schemaVersion {
		t.Fatalf("meta=%v err=%v", meta, err)
	}

	evs, err := r.TaskEvents(ctx, TaskEventQuery{Worker: "g1"})
	if err != nil || len(evs) != 1 || evs[0].TaskID != 1 || evs[0].Origin != [3]int{1, 2, 3} {
		t.Fatalf("events=%+v err=%v", evs, err)
	}
	expired, err := r.TaskEvents(ctx, TaskEventQuery{Reason: "expired"})
	if err != nil || len(expired) != 1 || expired[0].TaskID != 2 {
		t.Fatalf("expired=%+v err=%v", expired, err)
	}

	audits, err := r.Audits(ctx, AuditQuery{})
	if err != nil || len(audits) != 2 || audits[0].Seq != 0 || audits[1].Seq != 1 || audits[1].Actor != "bob" {
		t.Fatalf("audits=%+v err=%v", audits, err)
	}

	snaps, err := r.Snapshots(ctx, 0)
	if err != nil || len(snaps) != 1 || snaps[0].Seals != 2 || snaps[0].Golems != 1 {
		t.Fatalf("snapshots=%+v err=%v", snaps, err)
	}

	tp, err := r.Throughput(ctx, 0, 100)
	if err != nil {
		t.Fatalf("throughput: %v", err)
	}
	if tp.Ticks != 2 || tp.Created != 4 || tp.Completed != 3 || tp.Abandoned != 1 || tp.Removed != 2 {
		t.Fatalf("throughput=%+v", tp)
	}
}
